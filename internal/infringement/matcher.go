package infringement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Matcher compares one clue against the patent summary. Failures are
// isolated: an error result carries the clue id and the rest of the run
// continues.
type Matcher struct {
	exec *StepExecutor
}

func NewMatcher(exec *StepExecutor) *Matcher {
	return &Matcher{exec: exec}
}

func (m *Matcher) Match(ctx context.Context, sum PatentSummary, clueID, clueText string) MatchResult {
	if missing := sum.requiredFieldsMissing(); len(missing) > 0 {
		return MatchResult{ClueID: clueID, Err: &MatchError{
			Kind:   MatchErrMissingPatentData,
			ClueID: clueID,
			Err:    fmt.Errorf("patent summary missing fields: %s", strings.Join(missing, ", ")),
		}}
	}
	clueText = strings.TrimSpace(clueText)
	if clueText == "" {
		return MatchResult{ClueID: clueID, Err: &MatchError{
			Kind:   MatchErrEmptyEvidence,
			ClueID: clueID,
			Err:    errors.New("empty clue text"),
		}}
	}

	out := MatchResult{}
	metrics, err := m.exec.Run(ctx, "match_evidence", buildMatchPrompt(sum, clueID, clueText), &out, func() error {
		return validateMatch(&out, len(sum.Claims))
	})
	if err != nil {
		kind := MatchErrMalformed
		var ce *CallError
		if errors.As(err, &ce) && ce.Kind == CallErrTransport {
			kind = MatchErrTransport
		}
		log.Printf("infringement match_failed clue=%s kind=%s attempts=%d err=%q", clueID, kind, metrics.Attempts, err.Error())
		return MatchResult{ClueID: clueID, Err: &MatchError{Kind: kind, ClueID: clueID, Err: err}}
	}
	out.ClueID = clueID
	log.Printf("infringement match_done clue=%s risk=%d literal=%s equivalents=%s claims=%d attempts=%d",
		clueID, out.RiskScore, out.LiteralLikelihood, out.EquivalentsLikelihood, len(out.ClaimComparisons), metrics.Attempts)
	return out
}

func validateMatch(r *MatchResult, claimCount int) error {
	if r.RiskScore < 0 || r.RiskScore > 100 {
		return fmt.Errorf("risk_score out of range: %d", r.RiskScore)
	}
	r.LiteralLikelihood = normalizeLikelihood(r.LiteralLikelihood)
	r.EquivalentsLikelihood = normalizeLikelihood(r.EquivalentsLikelihood)
	r.ReasoningSummary = clampString(r.ReasoningSummary, maxSummaryChars)
	r.KeyEvidenceFeatures = compactStrings(r.KeyEvidenceFeatures)
	r.Strengths = compactStrings(r.Strengths)
	r.Weaknesses = compactStrings(r.Weaknesses)

	if len(r.ClaimComparisons) == 0 {
		return fmt.Errorf("claim_comparisons required")
	}
	valid := map[string]struct{}{}
	for i := 1; i <= claimCount; i++ {
		valid[fmt.Sprintf("C%d", i)] = struct{}{}
	}
	seen := map[string]struct{}{}
	kept := make([]ClaimComparison, 0, len(r.ClaimComparisons))
	for _, cc := range r.ClaimComparisons {
		cc.ClaimID = strings.ToUpper(strings.TrimSpace(cc.ClaimID))
		if _, ok := valid[cc.ClaimID]; !ok {
			log.Printf("infringement dropping unknown claim_id=%q", cc.ClaimID)
			continue
		}
		if _, dup := seen[cc.ClaimID]; dup {
			return fmt.Errorf("duplicate claim_id %s", cc.ClaimID)
		}
		seen[cc.ClaimID] = struct{}{}
		cc.MatchStatus = normalizeMappingStatus(cc.MatchStatus)
		if len(cc.Elements) == 0 {
			return fmt.Errorf("claim %s has no element mappings", cc.ClaimID)
		}
		for j := range cc.Elements {
			el := &cc.Elements[j]
			el.PatentElement = clampString(el.PatentElement, 500)
			if el.PatentElement == "" {
				return fmt.Errorf("claim %s element %d missing patent_element", cc.ClaimID, j+1)
			}
			el.MappingStatus = normalizeMappingStatus(el.MappingStatus)
			el.EvidenceSnippet = clampString(el.EvidenceSnippet, 1000)
			if el.MappingStatus == MappingMatch && el.EvidenceSnippet == "" {
				return fmt.Errorf("claim %s element %d marked MATCH without evidence_snippet", cc.ClaimID, j+1)
			}
		}
		kept = append(kept, cc)
	}
	if len(kept) == 0 {
		return fmt.Errorf("no valid claim_comparisons returned")
	}
	r.ClaimComparisons = kept
	if r.ReasoningSummary == "" {
		log.Printf("infringement empty reasoning_summary risk=%d", r.RiskScore)
	}
	return nil
}
