package gemini

import (
	"fmt"
	"strings"

	"AppealScanner/internal/domain"
)

const basePrompt = `You are analyzing a city council meeting agenda PDF.

Your task: extract every housing project appeal on this agenda.

For each appeal found, return a JSON object in the following array format.
If no appeals are found, return an empty array [].

Return ONLY valid JSON — no markdown, no explanation, just the array.

Schema for each appeal object:
{
  "item_number": <integer or null>,
  "page_number": <PDF page number where the item appears, or null>,
  "hearing_type": "<one of: filing, initial, continued, action, public_comment, decision, communication, other>",
  "action_taken": "<what the council did at this meeting, e.g. 'Continued to Feb 24, 2026', or null>",
  "appeal_status": "<overall appeal status, one of: filed, pending, heard, decided, withdrawn>",
  "decision": "<one of: granted, denied, continued, withdrawn — or null if no final decision yet>",
  "title": "<short agenda item title>",
  "description": "<full text of the agenda item>",
  "appeal_description": "<2-4 sentence plain-English summary: what is being appealed, who is appealing, and the main grounds. Write this for a general audience with no technical jargon>",
  "project_name": "<name of the housing project, or null>",
  "project_address": "<street address, or null>",
  "apn": "<Assessor Parcel Number, or null>",
  "appellant_name": "<name of appellant(s), or null>",
  "grounds_category": "<one of: CEQA, design_review, use_permit, neighborhood_impact, procedural, other>",
  "grounds_description": "<summary of the grounds for appeal>",
  "reference_number": "<city-assigned case or file number, or null>"
}`

// BuildPrompt combines the fixed instruction template with a snapshot of the
// city's currently active appeals so the model reports continuations under
// their existing reference numbers instead of re-filing them.
func BuildPrompt(active []domain.ActiveAppealContext) string {
	if len(active) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nKnown active appeals in this city. If an agenda item continues one of these,")
	b.WriteString("\nreuse its reference_number exactly:\n")
	for _, a := range active {
		fmt.Fprintf(&b, "- reference_number: %s", orUnknown(a.ReferenceNumber))
		fmt.Fprintf(&b, " | address: %s", orUnknown(a.ProjectAddress))
		if a.Summary != "" {
			fmt.Fprintf(&b, " | summary: %s", a.Summary)
		}
		if a.LastHearingDate != nil {
			fmt.Fprintf(&b, " | last heard: %s", a.LastHearingDate.Format("2006-01-02"))
			if a.LastHearingAction != "" {
				fmt.Fprintf(&b, " (%s)", a.LastHearingAction)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func orUnknown(v string) string {
	if v == "" {
		return "(unknown)"
	}
	return v
}

// stripFences removes a surrounding markdown code fence if the model wraps the
// JSON anyway.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
