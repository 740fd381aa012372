package infringement

import (
	"fmt"
	"strings"
)

func buildSummaryPrompt(patentText string) string {
	var b strings.Builder
	b.WriteString("Return valid JSON only. No markdown fences, no commentary.\n\n")
	b.WriteString(`You are summarizing a patent document for later claim-by-claim
comparison against product evidence.

IMPORTANT: Return valid JSON only. No markdown fences, no commentary, no
preamble. Your entire response must be a single JSON object matching the
schema below.

Extract from the patent text:
- The patent title
- The publication number, assignee, and earliest priority date if the
  document states them (empty string when absent — never guess)
- The technical field in one or two sentences
- The problem the invention solves and a short summary of the solution
- EVERY independent and dependent claim, verbatim or lightly condensed,
  in the order they appear in the document. Do not renumber, merge, or
  drop claims.
- The 3-10 points of novelty the claims turn on
- The concrete components, steps, or structures the claims recite

Required output schema:
{
  "title": "string",
  "publication_number": "string (empty if not stated)",
  "assignee": "string (empty if not stated)",
  "priority_date": "string (empty if not stated)",
  "technical_field": "string (1-2 sentences)",
  "problem_solved": "string",
  "solution_summary": "string",
  "claims": ["string (one entry per claim, document order)"],
  "novelty_points": ["string (3-10 entries)"],
  "components": ["string (1-30 entries)"]
}

PATENT TEXT:
`)
	b.WriteString(patentText)
	return b.String()
}

func buildMatchPrompt(sum PatentSummary, clueID, clueText string) string {
	var b strings.Builder
	b.WriteString("Return valid JSON only. No markdown fences, no commentary.\n\n")
	b.WriteString(`You are comparing one piece of product evidence against an asserted
patent, claim element by claim element.

IMPORTANT: Return valid JSON only. No markdown fences, no commentary, no
preamble. Base every mapping strictly on what the evidence text says;
when the evidence is silent on an element, mark it UNCLEAR rather than
inferring.

PATENT SUMMARY:
Title: ` + sum.Title + "\n")
	if sum.PublicationNumber != "" {
		b.WriteString("Publication number: " + sum.PublicationNumber + "\n")
	}
	b.WriteString("Technical field: " + sum.TechnicalField + "\n")
	if sum.ProblemSolved != "" {
		b.WriteString("Problem solved: " + sum.ProblemSolved + "\n")
	}
	if sum.SolutionSummary != "" {
		b.WriteString("Solution: " + sum.SolutionSummary + "\n")
	}
	b.WriteString("\nCLAIMS (compare against every one):\n")
	for i, c := range sum.Claims {
		fmt.Fprintf(&b, "C%d: %s\n", i+1, c)
	}
	b.WriteString("\nNOVELTY POINTS:\n")
	for _, p := range sum.NoveltyPoints {
		b.WriteString("- " + p + "\n")
	}
	b.WriteString("\nCOMPONENTS:\n")
	for _, c := range sum.Components {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nEVIDENCE (id=" + clueID + "):\n" + clueText + "\n\n")
	b.WriteString(`For each claim, break it into its elements and map every element to the
evidence:
- MATCH: the evidence plainly shows this element. Quote the supporting
  passage in evidence_snippet.
- PARTIAL_MATCH: the evidence shows part of the element or something
  materially similar. Quote what it shows.
- NO_MATCH: the evidence describes something incompatible with the
  element.
- UNCLEAR: the evidence is silent. Leave evidence_snippet empty.

Then assess overall:
1. RISK SCORE (0-100): overall infringement risk this evidence suggests.
   0-29 low, 30-69 moderate, 70-100 high. Be conservative: UNCLEAR
   elements lower the score.
2. LITERAL LIKELIHOOD: NONE | LOW | MEDIUM | HIGH — every element of at
   least one claim maps as MATCH for HIGH.
3. EQUIVALENTS LIKELIHOOD: NONE | LOW | MEDIUM | HIGH — same function,
   same way, same result for elements that are PARTIAL_MATCH.
4. KEY EVIDENCE FEATURES: the 1-8 features of the evidence that drive
   the assessment.
5. REASONING SUMMARY: 2-5 sentences explaining the scores.
6. STRENGTHS and WEAKNESSES of this evidence as proof (0-6 each).

Required output schema:
{
  "risk_score": "integer 0-100",
  "literal_infringement_likelihood": "NONE | LOW | MEDIUM | HIGH",
  "doctrine_of_equivalents_likelihood": "NONE | LOW | MEDIUM | HIGH",
  "key_evidence_features": ["string"],
  "claim_comparisons": [
    {
      "claim_id": "string (C1, C2, ... matching the claim list above)",
      "overall_claim_match_status": "MATCH | PARTIAL_MATCH | NO_MATCH | UNCLEAR",
      "elements": [
        {
          "patent_element": "string",
          "mapping_status": "MATCH | PARTIAL_MATCH | NO_MATCH | UNCLEAR",
          "evidence_snippet": "string (verbatim quote, empty for UNCLEAR)"
        }
      ]
    }
  ],
  "reasoning_summary": "string (2-5 sentences)",
  "strengths": ["string (0-6 entries)"],
  "weaknesses": ["string (0-6 entries)"]
}`)
	return b.String()
}

func buildReliabilityPrompt(m MatchResult) string {
	var b strings.Builder
	b.WriteString("Return valid JSON only. No markdown fences, no commentary.\n\n")
	b.WriteString(`You are auditing an automated patent-infringement comparison for
reliability. You are NOT re-scoring the infringement risk; you are
scoring how much the comparison itself should be trusted.

IMPORTANT: Return valid JSON only. No markdown fences, no commentary.

COMPARISON UNDER REVIEW:
`)
	fmt.Fprintf(&b, "Risk score: %d\n", m.RiskScore)
	fmt.Fprintf(&b, "Literal likelihood: %s\n", m.LiteralLikelihood)
	fmt.Fprintf(&b, "Equivalents likelihood: %s\n", m.EquivalentsLikelihood)
	fmt.Fprintf(&b, "Reasoning: %s\n", m.ReasoningSummary)
	b.WriteString("Claim element mappings:\n")
	for _, cc := range m.ClaimComparisons {
		fmt.Fprintf(&b, "%s (%s):\n", cc.ClaimID, cc.MatchStatus)
		for _, el := range cc.Elements {
			fmt.Fprintf(&b, "  - [%s] %s | snippet: %s\n", el.MappingStatus, el.PatentElement, clampString(el.EvidenceSnippet, 200))
		}
	}
	b.WriteString(`
Consider:
- Do the evidence snippets actually support the mapping statuses?
- Is the reasoning consistent with the per-element mappings?
- Are extreme scores backed by correspondingly strong mappings?
- How much of the assessment rests on UNCLEAR elements?

Required output schema:
{
  "score": "integer 0-100 (100 = fully trustworthy)",
  "summary": "string (1-3 sentences)",
  "concerns": ["string (0-6 entries)"],
  "strengths": ["string (0-6 entries)"]
}`)
	return b.String()
}
