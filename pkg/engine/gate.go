package engine

import (
	"fmt"

	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// Gate runs the ethical gate. Rules are evaluated in order, first match
// wins:
//
//  1. any hard stop present        → fail
//  2. indicator count ≥ fail count → fail
//  3. indicator count ≥ uncertain count, or missing critical info → uncertain
//  4. otherwise                    → pass
//
// The verdict is authoritative: a fail forces the final tier to decline and
// an uncertain caps it below approve_fund, regardless of numeric score.
func (e *Engine) Gate(j *judgment.Judgment) Phase1Result {
	t := e.rubric.Thresholds

	flags := make([]string, 0, len(j.HardStops)+len(j.Indicators))
	for _, h := range j.HardStops {
		flags = append(flags, "hard_stop:"+string(h))
	}
	for _, m := range j.Indicators {
		flags = append(flags, "manipulation:"+string(m))
	}

	switch {
	case len(j.HardStops) > 0:
		return Phase1Result{
			Result:    GateFail,
			Flags:     flags,
			Rationale: fmt.Sprintf("hard stop present: %s", j.HardStops[0]),
		}

	case len(j.Indicators) >= t.ManipulationFail:
		return Phase1Result{
			Result:    GateFail,
			Flags:     flags,
			Rationale: fmt.Sprintf("%d manipulation indicators (fail threshold %d)", len(j.Indicators), t.ManipulationFail),
		}

	case len(j.Indicators) >= t.ManipulationUncertain || j.MissingCriticalInfo:
		return Phase1Result{
			Result:    GateUncertain,
			Flags:     flags,
			Rationale: uncertainRationale(j, t),
			RFIItems:  rfiItems(j),
		}

	default:
		return Phase1Result{
			Result:    GatePass,
			Flags:     flags,
			Rationale: "no hard stops, no manipulation indicators",
		}
	}
}

func uncertainRationale(j *judgment.Judgment, t rubric.Thresholds) string {
	if len(j.Indicators) >= t.ManipulationUncertain {
		return fmt.Sprintf("%d manipulation indicators (uncertain threshold %d)", len(j.Indicators), t.ManipulationUncertain)
	}
	return "critical information missing"
}

// rfiItems lists what the submitter must clarify before re-evaluation.
func rfiItems(j *judgment.Judgment) []string {
	var items []string
	for _, m := range j.Indicators {
		items = append(items, fmt.Sprintf("address flagged indicator: %s", m))
	}
	if j.MissingCriticalInfo {
		items = append(items, "supply the missing critical information identified by review")
	}
	return items
}
