package engine

import "fmt"

// Resolve combines the gate verdict, base score, execution multiplier, and
// confidence into exactly one decision tier.
//
// Rules, in order:
//
//  1. Gate fail → decline, unconditionally. The final score is still
//     computed for the audit record but plays no part in tiering.
//  2. final = base × multiplier; if confidence is below the knee the score
//     is further discounted by 0.5 + confidence/200, so a low-confidence
//     evaluation cannot reach approve_fund on raw numbers alone.
//  3. Threshold ladder: approve_fund additionally requires a gate pass and
//     an eligible risk grade; a qualifying score with a bad grade falls
//     through to incubate_derisk.
//  4. Gate uncertain caps the tier at incubate_derisk even when the score
//     would otherwise approve.
func (e *Engine) Resolve(p1 Phase1Result, p2 Phase2Result, p3 Phase3Result) Phase4Result {
	t := e.rubric.Thresholds

	final := p2.BaseScore * p3.ExecutionMultiplier
	if p2.Confidence < t.ConfidenceKnee {
		final *= 0.5 + p2.Confidence/200
	}

	if p1.Result == GateFail {
		return Phase4Result{
			FinalScore:     final,
			DecisionTier:   TierDecline,
			Conditions:     []string{"ethical gate failed: " + p1.Rationale},
			NextBestAction: "do not fund; notify the submitter of the disqualifying findings",
		}
	}

	var tier Tier
	switch {
	case final >= t.ApproveScore && p1.Result == GatePass && gradeEligible(p3.RiskGrade, t.ApproveGrades):
		tier = TierApproveFund
	case final >= t.IncubateScore:
		// Also catches a qualifying score blocked by risk grade or a
		// non-pass gate.
		tier = TierIncubateDerisk
	case final >= t.ReviewScore:
		tier = TierReviewReevaluate
	default:
		tier = TierDecline
	}

	if p1.Result == GateUncertain && tier == TierApproveFund {
		tier = TierIncubateDerisk
	}

	return Phase4Result{
		FinalScore:     final,
		DecisionTier:   tier,
		Conditions:     conditions(tier, p1, p3),
		NextBestAction: nextBestAction(tier),
	}
}

func gradeEligible(grade string, eligible []string) bool {
	for _, g := range eligible {
		if g == grade {
			return true
		}
	}
	return false
}

func conditions(tier Tier, p1 Phase1Result, p3 Phase3Result) []string {
	var out []string
	if p1.Result == GateUncertain {
		out = append(out, "resolve open ethical questions: "+p1.Rationale)
		out = append(out, p1.RFIItems...)
	}
	if tier == TierIncubateDerisk {
		if len(p3.DeriskingPlan) > 0 {
			out = append(out, p3.DeriskingPlan...)
		} else {
			out = append(out, fmt.Sprintf("reduce execution risk (current grade %s)", p3.RiskGrade))
		}
	}
	return out
}

func nextBestAction(tier Tier) string {
	switch tier {
	case TierApproveFund:
		return "release funding and schedule the first milestone review"
	case TierIncubateDerisk:
		return "enter incubation and work the derisking plan before re-evaluation"
	case TierReviewReevaluate:
		return "request the missing information and re-evaluate"
	default:
		return "do not fund; submitter may reapply with a substantially revised proposal"
	}
}
