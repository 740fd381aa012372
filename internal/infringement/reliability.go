package infringement

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
)

const (
	rulesBaseScore             = 70
	rulesLowRiskPenalty        = 10
	rulesHighRiskBonus         = 5
	rulesEmptyReasoningPenalty = 15

	blendedModelWeight = 0.7
	blendedRulesWeight = 0.3
)

type ReliabilityConfig struct {
	Enabled bool
	Method  ReliabilityMethod
}

// Assessor scores how trustworthy each match result is. The rules method is
// deterministic and works offline; the model method asks the LLM to audit
// the comparison; blended combines the two. A model failure never fails the
// clue: the assessment degrades to the rules score with the failure noted.
type Assessor struct {
	cfg  ReliabilityConfig
	exec *StepExecutor
}

func NewAssessor(cfg ReliabilityConfig, exec *StepExecutor) *Assessor {
	if cfg.Method == "" {
		cfg.Method = ReliabilityRules
	}
	return &Assessor{cfg: cfg, exec: exec}
}

func (a *Assessor) Assess(ctx context.Context, m MatchResult) ReliabilityAssessment {
	if !a.cfg.Enabled {
		return ReliabilityAssessment{Method: ReliabilityDisabled, Summary: "Reliability assessment disabled."}
	}
	switch a.cfg.Method {
	case ReliabilityModel:
		ra, err := a.assessModel(ctx, m)
		if err != nil {
			return a.degradeToRules(m, err)
		}
		ra.Method = ReliabilityModel
		return ra
	case ReliabilityBlended:
		ra, err := a.assessModel(ctx, m)
		if err != nil {
			return a.degradeToRules(m, err)
		}
		rules := rulesScore(m)
		ra.Score = blendScores(ra.Score, rules)
		ra.Method = ReliabilityBlended
		return ra
	default:
		return assessRules(m)
	}
}

// rulesScore is the deterministic heuristic: start at 70, dock extreme-low
// risk findings, credit extreme-high ones, and dock missing reasoning hard.
// Deterministic and idempotent for a given match result.
func rulesScore(m MatchResult) int {
	score := rulesBaseScore
	if m.RiskScore < 30 {
		score -= rulesLowRiskPenalty
	}
	if m.RiskScore > 70 {
		score += rulesHighRiskBonus
	}
	if strings.TrimSpace(m.ReasoningSummary) == "" {
		score -= rulesEmptyReasoningPenalty
	}
	return clampScore(score)
}

func assessRules(m MatchResult) ReliabilityAssessment {
	score := rulesScore(m)
	concerns := []string{}
	strengths := []string{}
	if m.RiskScore < 30 {
		concerns = append(concerns, "Very low risk score; comparison may have under-weighted partial matches.")
	}
	if m.RiskScore > 70 {
		strengths = append(strengths, "High risk score backed by the claim element mapping.")
	}
	if strings.TrimSpace(m.ReasoningSummary) == "" {
		concerns = append(concerns, "Comparison returned no reasoning summary.")
	} else {
		strengths = append(strengths, "Reasoning summary present.")
	}
	return ReliabilityAssessment{
		Score:     score,
		Summary:   fmt.Sprintf("Rule-based reliability estimate: %d/100.", score),
		Concerns:  concerns,
		Strengths: strengths,
		Method:    ReliabilityRules,
	}
}

func (a *Assessor) assessModel(ctx context.Context, m MatchResult) (ReliabilityAssessment, error) {
	if a.exec == nil {
		return ReliabilityAssessment{}, fmt.Errorf("model assessment requested without an executor")
	}
	out := ReliabilityAssessment{}
	_, err := a.exec.Run(ctx, "assess_reliability", buildReliabilityPrompt(m), &out, func() error {
		if out.Score < 0 || out.Score > 100 {
			return fmt.Errorf("score out of range: %d", out.Score)
		}
		out.Summary = clampString(out.Summary, maxSummaryChars)
		if out.Summary == "" {
			return fmt.Errorf("summary required")
		}
		out.Concerns = compactStrings(out.Concerns)
		out.Strengths = compactStrings(out.Strengths)
		return nil
	})
	if err != nil {
		return ReliabilityAssessment{}, err
	}
	return out, nil
}

func (a *Assessor) degradeToRules(m MatchResult, cause error) ReliabilityAssessment {
	log.Printf("infringement reliability_model_failed clue=%s err=%q falling back to rules", m.ClueID, cause.Error())
	ra := assessRules(m)
	ra.Concerns = append(ra.Concerns, fmt.Sprintf("Model reliability audit failed (%v); rule-based score used instead.", cause))
	return ra
}

func blendScores(model, rules int) int {
	return clampScore(int(math.Round(blendedModelWeight*float64(model) + blendedRulesWeight*float64(rules))))
}
