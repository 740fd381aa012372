package infringement

import (
	"fmt"
	"strings"
)

// Disclaimer appears in every generated report. The analysis is an
// automated screening aid, not a legal opinion.
const Disclaimer = "DISCLAIMER: This report was generated by an automated analysis pipeline. It is a preliminary screening aid only and does not constitute legal advice or a formal infringement opinion. Consult qualified patent counsel before acting on any finding in this report."

type Likelihood string

const (
	LikelihoodNone   Likelihood = "NONE"
	LikelihoodLow    Likelihood = "LOW"
	LikelihoodMedium Likelihood = "MEDIUM"
	LikelihoodHigh   Likelihood = "HIGH"
)

func normalizeLikelihood(l Likelihood) Likelihood {
	switch strings.ToUpper(strings.TrimSpace(string(l))) {
	case string(LikelihoodHigh):
		return LikelihoodHigh
	case string(LikelihoodMedium):
		return LikelihoodMedium
	case string(LikelihoodLow):
		return LikelihoodLow
	default:
		return LikelihoodNone
	}
}

func likelihoodRank(l Likelihood) int {
	switch l {
	case LikelihoodHigh:
		return 0
	case LikelihoodMedium:
		return 1
	case LikelihoodLow:
		return 2
	default:
		return 3
	}
}

type MappingStatus string

const (
	MappingMatch        MappingStatus = "MATCH"
	MappingPartialMatch MappingStatus = "PARTIAL_MATCH"
	MappingNoMatch      MappingStatus = "NO_MATCH"
	MappingUnclear      MappingStatus = "UNCLEAR"
)

func normalizeMappingStatus(s MappingStatus) MappingStatus {
	switch strings.ToUpper(strings.TrimSpace(string(s))) {
	case string(MappingMatch):
		return MappingMatch
	case string(MappingPartialMatch):
		return MappingPartialMatch
	case string(MappingNoMatch):
		return MappingNoMatch
	default:
		return MappingUnclear
	}
}

// PatentSummary is the structured digest of the asserted patent that every
// downstream comparison runs against. Claims preserve the order they appear
// in the source document.
type PatentSummary struct {
	Title             string   `json:"title"`
	PublicationNumber string   `json:"publication_number"`
	Assignee          string   `json:"assignee"`
	PriorityDate      string   `json:"priority_date"`
	TechnicalField    string   `json:"technical_field"`
	ProblemSolved     string   `json:"problem_solved"`
	SolutionSummary   string   `json:"solution_summary"`
	Claims            []string `json:"claims"`
	NoveltyPoints     []string `json:"novelty_points"`
	Components        []string `json:"components"`
}

// requiredFieldsMissing reports which fields a comparison cannot proceed
// without. Checked before every match call so a bad summary fails all clues
// the same way instead of producing divergent model output.
func (s PatentSummary) requiredFieldsMissing() []string {
	missing := []string{}
	if strings.TrimSpace(s.Title) == "" {
		missing = append(missing, "title")
	}
	if len(s.Claims) == 0 {
		missing = append(missing, "claims")
	}
	if strings.TrimSpace(s.TechnicalField) == "" {
		missing = append(missing, "technical_field")
	}
	if len(s.NoveltyPoints) == 0 {
		missing = append(missing, "novelty_points")
	}
	if len(s.Components) == 0 {
		missing = append(missing, "components")
	}
	return missing
}

type ElementMapping struct {
	PatentElement   string        `json:"patent_element"`
	MappingStatus   MappingStatus `json:"mapping_status"`
	EvidenceSnippet string        `json:"evidence_snippet"`
}

// ClaimComparison maps one patent claim against a single piece of evidence,
// element by element.
type ClaimComparison struct {
	ClaimID     string           `json:"claim_id"`
	MatchStatus MappingStatus    `json:"overall_claim_match_status"`
	Elements    []ElementMapping `json:"elements"`
}

type MatchErrorKind string

const (
	MatchErrMissingPatentData MatchErrorKind = "missing_patent_data"
	MatchErrEmptyEvidence     MatchErrorKind = "empty_evidence"
	MatchErrTransport         MatchErrorKind = "transport_failure"
	MatchErrMalformed         MatchErrorKind = "malformed_response"
)

// MatchError records why a single clue could not be analyzed. One clue
// failing never aborts the run; the error travels with the result so the
// report can show a per-source failure row.
type MatchError struct {
	Kind   MatchErrorKind
	ClueID string
	Err    error
}

func (e *MatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("match clue=%s kind=%s", e.ClueID, e.Kind)
	}
	return fmt.Sprintf("match clue=%s kind=%s: %v", e.ClueID, e.Kind, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

// MatchResult is the per-clue comparison outcome. When Err is set the
// remaining fields are zero and the clue is reported as failed.
type MatchResult struct {
	ClueID                string            `json:"clue_id"`
	RiskScore             int               `json:"risk_score"`
	LiteralLikelihood     Likelihood        `json:"literal_infringement_likelihood"`
	EquivalentsLikelihood Likelihood        `json:"doctrine_of_equivalents_likelihood"`
	KeyEvidenceFeatures   []string          `json:"key_evidence_features"`
	ClaimComparisons      []ClaimComparison `json:"claim_comparisons"`
	ReasoningSummary      string            `json:"reasoning_summary"`
	Strengths             []string          `json:"strengths"`
	Weaknesses            []string          `json:"weaknesses"`

	Reliability *ReliabilityAssessment `json:"reliability,omitempty"`
	Err         *MatchError            `json:"-"`
}

type ReliabilityMethod string

const (
	ReliabilityModel    ReliabilityMethod = "model"
	ReliabilityRules    ReliabilityMethod = "rules"
	ReliabilityBlended  ReliabilityMethod = "blended"
	ReliabilityDisabled ReliabilityMethod = "disabled"
)

// ReliabilityAssessment scores how much weight the match result deserves,
// independent of how risky the match itself looks.
type ReliabilityAssessment struct {
	Score     int               `json:"score"`
	Summary   string            `json:"summary"`
	Concerns  []string          `json:"concerns"`
	Strengths []string          `json:"strengths"`
	Method    ReliabilityMethod `json:"method"`
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampString(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
