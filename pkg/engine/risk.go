package engine

import (
	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// AdjustRisk converts enumerated execution risks into a bounded multiplier
// and a letter grade.
//
// The multiplier starts at 1.0 and loses severity × SeverityPenalty per
// risk dimension. With the default calibration (penalty 0.016) five
// dimensions at maximum severity land exactly on the 0.6 floor. When the
// judge reports several entries for one dimension only the worst severity
// counts, so a verbose judgment cannot be penalized twice for one concern.
//
// Harm gates are binary trip-wires: any tripped gate forces the multiplier
// to the floor and the grade to F, independent of the severity sum.
func (e *Engine) AdjustRisk(j *judgment.Judgment) Phase3Result {
	t := e.rubric.Thresholds

	res := Phase3Result{
		Risks:         j.Risks,
		HarmGates:     j.HarmGates,
		DeriskingPlan: j.DeriskingPlan,
	}

	if len(j.HarmGates) > 0 {
		res.ExecutionMultiplier = t.MultiplierFloor
		res.RiskGrade = "F"
		return res
	}

	worst := make(map[rubric.RiskDimension]int, len(j.Risks))
	for _, r := range j.Risks {
		if r.Severity > worst[r.Dimension] {
			worst[r.Dimension] = r.Severity
		}
	}

	multiplier := 1.0
	for _, sev := range worst {
		multiplier -= float64(sev) * t.SeverityPenalty
	}
	if multiplier < t.MultiplierFloor {
		multiplier = t.MultiplierFloor
	}

	res.ExecutionMultiplier = multiplier
	res.RiskGrade = e.rubric.GradeFor(multiplier)
	return res
}
