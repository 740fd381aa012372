package infringement

import (
	"fmt"
	"strings"
	"time"
)

// EvidenceRow is one clue's worth of report input. Exactly one of the three
// shapes applies: Skipped set, Match with Err set, or a full Match.
type EvidenceRow struct {
	SourceID   string
	Origin     string
	Skipped    bool
	SkipReason string
	Match      *MatchResult
}

type ReportInput struct {
	JobID       string
	GeneratedAt time.Time
	ModelName   string
	Patent      PatentSummary
	Rows        []EvidenceRow
}

// BuildReportMarkdown renders the full analysis report. Rows render in the
// order given, which the orchestrator keeps aligned with acquisition order.
func BuildReportMarkdown(in ReportInput) string {
	var b strings.Builder
	buildReportHeader(&b, in.JobID, in.GeneratedAt, in.ModelName)
	buildPatentSection(&b, in.Patent)
	buildSummaryTable(&b, in.Rows)
	buildDetailSections(&b, in.Rows)
	buildConclusion(&b, in.Rows)
	fmt.Fprintf(&b, "---\n\n%s\n", Disclaimer)
	return b.String()
}

// BuildFailureReportMarkdown is written when a fatal step aborts the run,
// so a failed job still leaves a document explaining what happened.
func BuildFailureReportMarkdown(jobID string, generatedAt time.Time, failedStep string, cause error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Patent Infringement Evidence Report\n\n")
	fmt.Fprintf(&b, "- Job ID: %s\n", jobID)
	fmt.Fprintf(&b, "- Date: %s\n", generatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Status: **FAILED**\n\n")
	fmt.Fprintf(&b, "## Analysis Failed\n\n")
	fmt.Fprintf(&b, "The analysis could not be completed. Step `%s` failed:\n\n", failedStep)
	fmt.Fprintf(&b, "```\n%v\n```\n\n", cause)
	fmt.Fprintf(&b, "No infringement findings were produced. Re-submit the job after\naddressing the failure above.\n\n")
	fmt.Fprintf(&b, "---\n\n%s\n", Disclaimer)
	return b.String()
}

func buildReportHeader(b *strings.Builder, jobID string, generatedAt time.Time, model string) {
	fmt.Fprintf(b, "# Patent Infringement Evidence Report\n\n")
	fmt.Fprintf(b, "- Job ID: %s\n", jobID)
	fmt.Fprintf(b, "- Date: %s\n", generatedAt.UTC().Format(time.RFC3339))
	if model != "" {
		fmt.Fprintf(b, "- Model: %s\n", model)
	}
	b.WriteString("\n")
}

func buildPatentSection(b *strings.Builder, p PatentSummary) {
	fmt.Fprintf(b, "## Patent Information\n\n")
	fmt.Fprintf(b, "- Title: %s\n", safe(p.Title))
	if p.PublicationNumber != "" {
		fmt.Fprintf(b, "- Publication number: %s\n", p.PublicationNumber)
	}
	if p.Assignee != "" {
		fmt.Fprintf(b, "- Assignee: %s\n", p.Assignee)
	}
	if p.PriorityDate != "" {
		fmt.Fprintf(b, "- Priority date: %s\n", p.PriorityDate)
	}
	fmt.Fprintf(b, "- Technical field: %s\n\n", safe(p.TechnicalField))
	if p.ProblemSolved != "" {
		fmt.Fprintf(b, "**Problem solved:** %s\n\n", p.ProblemSolved)
	}
	if p.SolutionSummary != "" {
		fmt.Fprintf(b, "**Solution:** %s\n\n", p.SolutionSummary)
	}
	fmt.Fprintf(b, "### Claims\n\n")
	for i, c := range p.Claims {
		fmt.Fprintf(b, "%d. %s\n", i+1, safe(c))
	}
	fmt.Fprintf(b, "\n### Novelty Points\n\n")
	for _, n := range p.NoveltyPoints {
		fmt.Fprintf(b, "- %s\n", safe(n))
	}
	fmt.Fprintf(b, "\n### Components\n\n")
	for _, c := range p.Components {
		fmt.Fprintf(b, "- %s\n", safe(c))
	}
	b.WriteString("\n")
}

func buildSummaryTable(b *strings.Builder, rows []EvidenceRow) {
	fmt.Fprintf(b, "## Evidence Summary\n\n")
	fmt.Fprintf(b, "| # | Source | Status | Risk | Literal | Equivalents | Reliability |\n")
	fmt.Fprintf(b, "|---|--------|--------|------|---------|-------------|-------------|\n")
	for i, r := range rows {
		status, risk, lit, equiv, rel := rowCells(r)
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s | %s | %s |\n", i+1, safe(r.SourceID), status, risk, lit, equiv, rel)
	}
	b.WriteString("\n")
}

func rowCells(r EvidenceRow) (status, risk, lit, equiv, rel string) {
	risk, lit, equiv, rel = "—", "—", "—", "—"
	switch {
	case r.Skipped:
		status = "Skipped: " + safe(r.SkipReason)
	case r.Match == nil:
		status = "Skipped"
	case r.Match.Err != nil:
		status = "Failed: " + string(r.Match.Err.Kind)
	default:
		status = "Analyzed"
		risk = fmt.Sprintf("%d", r.Match.RiskScore)
		lit = string(r.Match.LiteralLikelihood)
		equiv = string(r.Match.EquivalentsLikelihood)
		if r.Match.Reliability != nil {
			if r.Match.Reliability.Method == ReliabilityDisabled {
				rel = "disabled"
			} else {
				rel = fmt.Sprintf("%d (%s)", r.Match.Reliability.Score, r.Match.Reliability.Method)
			}
		}
	}
	return status, risk, lit, equiv, rel
}

func buildDetailSections(b *strings.Builder, rows []EvidenceRow) {
	fmt.Fprintf(b, "## Detailed Findings\n\n")
	for i, r := range rows {
		fmt.Fprintf(b, "### %d. %s\n\n", i+1, safe(r.SourceID))
		if r.Origin != "" {
			fmt.Fprintf(b, "Source: %s\n\n", r.Origin)
		}
		switch {
		case r.Skipped:
			fmt.Fprintf(b, "Skipped: %s\n\n", safe(r.SkipReason))
			continue
		case r.Match == nil:
			fmt.Fprintf(b, "Skipped: no analysis produced.\n\n")
			continue
		case r.Match.Err != nil:
			fmt.Fprintf(b, "Analysis failed (%s): %v\n\n", r.Match.Err.Kind, r.Match.Err.Err)
			continue
		}
		m := r.Match
		fmt.Fprintf(b, "- Risk score: **%d/100**\n", m.RiskScore)
		fmt.Fprintf(b, "- Literal infringement likelihood: %s\n", m.LiteralLikelihood)
		fmt.Fprintf(b, "- Doctrine of equivalents likelihood: %s\n\n", m.EquivalentsLikelihood)
		if len(m.KeyEvidenceFeatures) > 0 {
			fmt.Fprintf(b, "**Key evidence features:**\n\n")
			for _, f := range m.KeyEvidenceFeatures {
				fmt.Fprintf(b, "- %s\n", safe(f))
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "**Claim element mapping:**\n\n")
		for _, cc := range m.ClaimComparisons {
			fmt.Fprintf(b, "#### %s — %s\n\n", cc.ClaimID, cc.MatchStatus)
			for _, el := range cc.Elements {
				fmt.Fprintf(b, "- [%s] %s\n", el.MappingStatus, safe(el.PatentElement))
				if el.EvidenceSnippet != "" {
					fmt.Fprintf(b, "  > %s\n", safe(el.EvidenceSnippet))
				}
			}
			b.WriteString("\n")
		}
		if m.ReasoningSummary != "" {
			fmt.Fprintf(b, "**Reasoning:** %s\n\n", m.ReasoningSummary)
		}
		if len(m.Strengths) > 0 {
			fmt.Fprintf(b, "**Strengths:**\n\n")
			for _, s := range m.Strengths {
				fmt.Fprintf(b, "- %s\n", safe(s))
			}
			b.WriteString("\n")
		}
		if len(m.Weaknesses) > 0 {
			fmt.Fprintf(b, "**Weaknesses:**\n\n")
			for _, w := range m.Weaknesses {
				fmt.Fprintf(b, "- %s\n", safe(w))
			}
			b.WriteString("\n")
		}
		if m.Reliability != nil {
			buildReliabilityDetail(b, m.Reliability)
		}
	}
}

func buildReliabilityDetail(b *strings.Builder, ra *ReliabilityAssessment) {
	if ra.Method == ReliabilityDisabled {
		fmt.Fprintf(b, "**Reliability:** assessment disabled.\n\n")
		return
	}
	fmt.Fprintf(b, "**Reliability:** %d/100 (%s). %s\n\n", ra.Score, ra.Method, safe(ra.Summary))
	for _, c := range ra.Concerns {
		fmt.Fprintf(b, "- Concern: %s\n", safe(c))
	}
	for _, s := range ra.Strengths {
		fmt.Fprintf(b, "- Strength: %s\n", safe(s))
	}
	if len(ra.Concerns)+len(ra.Strengths) > 0 {
		b.WriteString("\n")
	}
}

func buildConclusion(b *strings.Builder, rows []EvidenceRow) {
	analyzed, skipped, failed := 0, 0, 0
	maxRisk := -1
	maxSource := ""
	for _, r := range rows {
		switch {
		case r.Skipped, r.Match == nil:
			skipped++
		case r.Match.Err != nil:
			failed++
		default:
			analyzed++
			if r.Match.RiskScore > maxRisk {
				maxRisk = r.Match.RiskScore
				maxSource = r.SourceID
			}
		}
	}
	fmt.Fprintf(b, "## Conclusion\n\n")
	fmt.Fprintf(b, "- Sources analyzed: %d\n", analyzed)
	fmt.Fprintf(b, "- Sources skipped: %d\n", skipped)
	fmt.Fprintf(b, "- Sources failed: %d\n\n", failed)
	if analyzed == 0 {
		fmt.Fprintf(b, "No evidence could be analyzed, so no infringement conclusion is possible.\n\n")
		return
	}
	fmt.Fprintf(b, "Highest risk source: **%s** at **%d/100** (%s).\n\n", safe(maxSource), maxRisk, riskBand(maxRisk))
	return
}

func riskBand(score int) string {
	switch {
	case score >= 70:
		return "high infringement risk"
	case score >= 30:
		return "moderate infringement risk"
	default:
		return "low infringement risk"
	}
}

func safe(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(none)"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}
