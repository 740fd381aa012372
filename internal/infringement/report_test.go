package infringement

import (
	"strings"
	"testing"
	"time"
)

func reportInput() ReportInput {
	match := MatchResult{
		ClueID:                "evidence/manual.pdf",
		RiskScore:             78,
		LiteralLikelihood:     LikelihoodHigh,
		EquivalentsLikelihood: LikelihoodMedium,
		KeyEvidenceFeatures:   []string{"impedance sensing circuit"},
		ClaimComparisons: []ClaimComparison{{
			ClaimID:     "C1",
			MatchStatus: MappingMatch,
			Elements: []ElementMapping{
				{PatentElement: "impedance sensor", MappingStatus: MappingMatch, EvidenceSnippet: "measures cell impedance"},
			},
		}},
		ReasoningSummary: "Both claim elements appear in the manual.",
		Strengths:        []string{"first-party documentation"},
		Reliability:      &ReliabilityAssessment{Score: 75, Summary: "Rule-based reliability estimate: 75/100.", Method: ReliabilityRules},
	}
	failed := MatchResult{ClueID: "evidence/broken.html", Err: &MatchError{Kind: MatchErrTransport, ClueID: "evidence/broken.html"}}
	return ReportInput{
		JobID:       "job-123",
		GeneratedAt: time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
		ModelName:   "test-model",
		Patent:      testSummary(),
		Rows: []EvidenceRow{
			{SourceID: "evidence/manual.pdf", Origin: "/data/manual.pdf", Match: &match},
			{SourceID: "evidence/photo.png", Skipped: true, SkipReason: "unsupported extension .png"},
			{SourceID: "evidence/broken.html", Match: &failed},
		},
	}
}

func TestReportContainsAllSections(t *testing.T) {
	md := BuildReportMarkdown(reportInput())
	for _, want := range []string{
		"# Patent Infringement Evidence Report",
		"- Job ID: job-123",
		"## Patent Information",
		"### Claims",
		"## Evidence Summary",
		"## Detailed Findings",
		"## Conclusion",
		"DISCLAIMER",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestReportSummaryTableOneRowPerClue(t *testing.T) {
	md := BuildReportMarkdown(reportInput())
	if !strings.Contains(md, "| 1 | evidence/manual.pdf | Analyzed | 78 | HIGH | MEDIUM | 75 (rules) |") {
		t.Fatalf("analyzed row missing:\n%s", md)
	}
	if !strings.Contains(md, "Skipped: unsupported extension .png") {
		t.Fatal("skipped row missing reason")
	}
	if !strings.Contains(md, "Failed: transport_failure") {
		t.Fatal("failed row missing kind")
	}
}

func TestReportClaimOrderPreserved(t *testing.T) {
	md := BuildReportMarkdown(reportInput())
	c1 := strings.Index(md, "1. A charging controller")
	c2 := strings.Index(md, "2. The controller of claim 1")
	if c1 < 0 || c2 < 0 || c2 < c1 {
		t.Fatalf("claims missing or reordered: c1=%d c2=%d", c1, c2)
	}
}

func TestReportConclusionNamesHighestRisk(t *testing.T) {
	md := BuildReportMarkdown(reportInput())
	if !strings.Contains(md, "Highest risk source: **evidence/manual.pdf** at **78/100** (high infringement risk).") {
		t.Fatalf("conclusion wrong:\n%s", md)
	}
	if !strings.Contains(md, "- Sources analyzed: 1") || !strings.Contains(md, "- Sources skipped: 1") || !strings.Contains(md, "- Sources failed: 1") {
		t.Fatal("conclusion counts wrong")
	}
}

func TestReportNoAnalyzableEvidence(t *testing.T) {
	in := reportInput()
	in.Rows = in.Rows[1:]
	md := BuildReportMarkdown(in)
	if !strings.Contains(md, "No evidence could be analyzed") {
		t.Fatal("expected no-conclusion wording")
	}
}

func TestReportEndsWithDisclaimer(t *testing.T) {
	md := strings.TrimSpace(BuildReportMarkdown(reportInput()))
	if !strings.HasSuffix(md, Disclaimer) {
		t.Fatal("report must end with the disclaimer")
	}
}

func TestFailureReportNamesStepAndCause(t *testing.T) {
	md := BuildFailureReportMarkdown("job-9", time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC), "summarization", errFixture("model unreachable"))
	for _, want := range []string{"- Job ID: job-9", "Status: **FAILED**", "`summarization`", "model unreachable", "DISCLAIMER"} {
		if !strings.Contains(md, want) {
			t.Errorf("failure report missing %q", want)
		}
	}
}

type errFixture string

func (e errFixture) Error() string { return string(e) }
