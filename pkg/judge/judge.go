// Package judge calls the external AI collaborator that scores submissions
// against the rubric. The judge owns free-form interpretation of evidence
// only; its output goes straight through contract validation and the
// deterministic pipeline never trusts it directly.
package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/verdant/pkg/engine"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// buildPrompt renders the rubric instructions and the subject description
// into the judging prompt. The rubric section is generated from the
// injected configuration, never hard-coded, so calibration changes reach
// the judge without prompt edits.
func buildPrompt(subject *engine.Subject, r *rubric.Rubric) (system, user string, err error) {
	var b strings.Builder
	b.WriteString("You are an impartial project evaluator for a regenerative community fund. ")
	b.WriteString("Assess the submission below against the rubric and respond with a single JSON object ")
	b.WriteString("containing phase1, phase2, phase3, phase4, derived_tags, anti_gaming_flags, lane_detected, stage_detected.\n\n")

	b.WriteString("Scoring categories and subcriteria (score each subcriterion 1-10 with rationale and evidence):\n")
	for _, c := range r.Categories {
		fmt.Fprintf(&b, "- %s (weight %.0f%%): ", c.ID, c.WeightPercent)
		for i, sc := range c.SubCriteria {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(sc))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nHard stops (report any that apply in phase1.hard_stops):\n")
	for _, h := range r.HardStops {
		fmt.Fprintf(&b, "- %s\n", h)
	}

	b.WriteString("\nManipulation indicators (report any that apply in phase1.manipulation_indicators):\n")
	for _, m := range r.Indicators {
		fmt.Fprintf(&b, "- %s\n", m)
	}

	b.WriteString("\nIn phase3, enumerate execution risks per dimension (team, technical, financial, external, timeline) ")
	b.WriteString("with severity 1-5 and factors, report tripped harm gates (physical, psychological, environmental, financial), ")
	b.WriteString("and suggest a derisking plan.\n")
	b.WriteString("In phase4, give your tier recommendation, conditions, and next best action. ")
	b.WriteString("All aggregates you report are advisory; the engine recomputes them.\n")

	payload, err := json.Marshal(map[string]string{
		"id":          subject.ID,
		"name":        subject.Name,
		"description": subject.Description,
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal subject: %w", err)
	}

	return b.String(), "Submission to evaluate:\n" + string(payload), nil
}
