package infringement

import (
	"context"
	"errors"
	"testing"
)

func matchWithRisk(risk int, reasoning string) MatchResult {
	return MatchResult{
		ClueID:           "clue-1",
		RiskScore:        risk,
		ReasoningSummary: reasoning,
		ClaimComparisons: []ClaimComparison{{ClaimID: "C1", MatchStatus: MappingPartialMatch,
			Elements: []ElementMapping{{PatentElement: "sensor", MappingStatus: MappingPartialMatch, EvidenceSnippet: "snippet"}}}},
	}
}

func TestRulesScoreBands(t *testing.T) {
	cases := []struct {
		name      string
		risk      int
		reasoning string
		want      int
	}{
		{"midband", 50, "reasoned", 70},
		{"low risk penalty", 20, "reasoned", 60},
		{"high risk bonus", 80, "reasoned", 75},
		{"boundary 30 no penalty", 30, "reasoned", 70},
		{"boundary 70 no bonus", 70, "reasoned", 70},
		{"empty reasoning", 50, "", 55},
		{"low risk and empty reasoning", 10, "", 45},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := rulesScore(matchWithRisk(c.risk, c.reasoning)); got != c.want {
				t.Fatalf("rulesScore = %d, want %d", got, c.want)
			}
		})
	}
}

func TestRulesScoreIdempotent(t *testing.T) {
	m := matchWithRisk(85, "solid reasoning")
	first := rulesScore(m)
	for i := 0; i < 5; i++ {
		if got := rulesScore(m); got != first {
			t.Fatalf("rulesScore not stable: %d vs %d", got, first)
		}
	}
}

func TestAssessDisabled(t *testing.T) {
	a := NewAssessor(ReliabilityConfig{Enabled: false}, nil)
	ra := a.Assess(context.Background(), matchWithRisk(50, "r"))
	if ra.Method != ReliabilityDisabled {
		t.Fatalf("method = %s", ra.Method)
	}
}

func TestAssessRulesRecordsEmptyReasoningConcern(t *testing.T) {
	a := NewAssessor(ReliabilityConfig{Enabled: true, Method: ReliabilityRules}, nil)
	ra := a.Assess(context.Background(), matchWithRisk(50, ""))
	if ra.Score != 55 || ra.Method != ReliabilityRules {
		t.Fatalf("unexpected assessment: %+v", ra)
	}
	if len(ra.Concerns) == 0 {
		t.Fatal("expected a concern for missing reasoning")
	}
}

func TestAssessModel(t *testing.T) {
	resp := `{"score": 82, "summary": "Snippets support the mappings.", "concerns": [], "strengths": ["verbatim quotes"]}`
	a := NewAssessor(ReliabilityConfig{Enabled: true, Method: ReliabilityModel},
		NewStepExecutor(&fakeLLMCaller{responses: []string{resp}}))
	ra := a.Assess(context.Background(), matchWithRisk(60, "r"))
	if ra.Method != ReliabilityModel || ra.Score != 82 {
		t.Fatalf("unexpected assessment: %+v", ra)
	}
}

func TestAssessModelFailureDegradesToRules(t *testing.T) {
	boom := errors.New("request failed: status 500")
	a := NewAssessor(ReliabilityConfig{Enabled: true, Method: ReliabilityModel},
		NewStepExecutor(&fakeLLMCaller{errs: []error{boom, boom, boom}}))
	ra := a.Assess(context.Background(), matchWithRisk(50, "r"))
	if ra.Method != ReliabilityRules || ra.Score != 70 {
		t.Fatalf("expected rules fallback at 70, got %+v", ra)
	}
	found := false
	for _, c := range ra.Concerns {
		if len(c) > 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("model failure must be recorded as a concern")
	}
}

func TestAssessBlendedWeights(t *testing.T) {
	// model 90, rules 70 -> round(0.7*90 + 0.3*70) = 84
	resp := `{"score": 90, "summary": "Strong audit.", "concerns": [], "strengths": []}`
	a := NewAssessor(ReliabilityConfig{Enabled: true, Method: ReliabilityBlended},
		NewStepExecutor(&fakeLLMCaller{responses: []string{resp}}))
	ra := a.Assess(context.Background(), matchWithRisk(50, "r"))
	if ra.Method != ReliabilityBlended || ra.Score != 84 {
		t.Fatalf("blended score = %d (method %s), want 84", ra.Score, ra.Method)
	}
}

func TestBlendScoresRounding(t *testing.T) {
	// 0.7*75 + 0.3*60 = 70.5 -> 71
	if got := blendScores(75, 60); got != 71 {
		t.Fatalf("blendScores(75,60) = %d, want 71", got)
	}
}
