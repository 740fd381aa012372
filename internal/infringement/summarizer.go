package infringement

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const (
	maxClaimChars   = 2000
	maxSummaryChars = 2000
)

// Summarizer produces the PatentSummary the rest of the pipeline runs
// against. A summarization failure is fatal to the whole job: there is
// nothing to compare evidence to without it.
type Summarizer struct {
	exec *StepExecutor
}

func NewSummarizer(exec *StepExecutor) *Summarizer {
	return &Summarizer{exec: exec}
}

func (s *Summarizer) Summarize(ctx context.Context, patentText string) (PatentSummary, error) {
	patentText = strings.TrimSpace(patentText)
	if patentText == "" {
		return PatentSummary{}, fmt.Errorf("summarize: empty patent text")
	}
	out := PatentSummary{}
	m, err := s.exec.Run(ctx, "summarize_patent", buildSummaryPrompt(patentText), &out, func() error {
		return validateSummary(&out)
	})
	if err != nil {
		return PatentSummary{}, err
	}
	log.Printf("infringement patent_summarized claims=%d novelty_points=%d attempts=%d", len(out.Claims), len(out.NoveltyPoints), m.Attempts)
	return out, nil
}

func validateSummary(s *PatentSummary) error {
	s.Title = clampString(s.Title, 300)
	s.PublicationNumber = strings.TrimSpace(s.PublicationNumber)
	s.Assignee = clampString(s.Assignee, 200)
	s.PriorityDate = strings.TrimSpace(s.PriorityDate)
	s.TechnicalField = clampString(s.TechnicalField, maxSummaryChars)
	s.ProblemSolved = clampString(s.ProblemSolved, maxSummaryChars)
	s.SolutionSummary = clampString(s.SolutionSummary, maxSummaryChars)
	if s.Title == "" {
		return fmt.Errorf("title required")
	}
	if s.TechnicalField == "" {
		return fmt.Errorf("technical_field required")
	}
	if len(s.Claims) < 1 {
		return fmt.Errorf("at least one claim required")
	}
	for i := range s.Claims {
		s.Claims[i] = clampString(s.Claims[i], maxClaimChars)
		if s.Claims[i] == "" {
			return fmt.Errorf("claim %d empty", i+1)
		}
	}
	s.NoveltyPoints = compactStrings(s.NoveltyPoints)
	if len(s.NoveltyPoints) < 1 {
		return fmt.Errorf("novelty_points required")
	}
	s.Components = compactStrings(s.Components)
	if len(s.Components) < 1 {
		return fmt.Errorf("components required")
	}
	return nil
}
