// Package judgment defines the contract an external AI judge must satisfy
// and the validator that turns an untrusted raw judgment into a typed one.
//
// The judge owns free-form interpretation of evidence; this package owns
// everything after that. Field presence is never trusted implicitly: a raw
// judgment passes a JSON Schema gate first, then field-level repair clamps
// out-of-range values and records every repair as a gap instead of failing
// the whole evaluation.
package judgment

import (
	"fmt"

	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// Raw is the wire shape produced by the judge. All fields are optional at
// this layer; the validator decides what is recoverable.
type Raw struct {
	Phase1          *RawGate   `json:"phase1"`
	Phase2          *RawScores `json:"phase2"`
	Phase3          *RawRisks  `json:"phase3"`
	Phase4          *RawTier   `json:"phase4"`
	DerivedTags     []string   `json:"derived_tags"`
	AntiGamingFlags []string   `json:"anti_gaming_flags"`
	LaneDetected    string     `json:"lane_detected"`
	StageDetected   string     `json:"stage_detected"`
}

// RawGate carries the judge's ethical findings.
type RawGate struct {
	HardStops              []string `json:"hard_stops"`
	ManipulationIndicators []string `json:"manipulation_indicators"`
	MissingCriticalInfo    bool     `json:"missing_critical_info"`
	Verdict                string   `json:"verdict"`
	Rationale              string   `json:"rationale"`
}

// RawSubScore is one per-subcriterion judgment.
type RawSubScore struct {
	SubCriterionID string  `json:"subcriterion_id"`
	Score          float64 `json:"score"`
	Rationale      string  `json:"rationale"`
	Evidence       string  `json:"evidence"`
}

// RawScores carries the judge's scoring block. BaseScore and Confidence are
// the judge's own aggregates; the engine recomputes the base score from the
// subscores and treats the judge's number as advisory only.
type RawScores struct {
	Scores     []RawSubScore `json:"scores"`
	BaseScore  *float64      `json:"base_score"`
	Confidence *float64      `json:"confidence"`
}

// RawRisk is one enumerated execution risk.
type RawRisk struct {
	Dimension string   `json:"dimension"`
	Severity  float64  `json:"severity"`
	Factors   []string `json:"factors"`
}

// RawRisks carries the judge's risk block.
type RawRisks struct {
	Risks               []RawRisk `json:"risks"`
	HarmGates           []string  `json:"harm_gates"`
	ExecutionMultiplier *float64  `json:"execution_multiplier"`
	RiskGrade           string    `json:"risk_grade"`
	DeriskingPlan       []string  `json:"derisking_plan"`
}

// RawTier carries the judge's recommendation. Advisory: tiering is computed
// by the decision resolver, never copied from here.
type RawTier struct {
	TierRecommendation string   `json:"tier_recommendation"`
	Conditions         []string `json:"conditions"`
	NextBestAction     string   `json:"next_best_action"`
}

// SubScore is a validated per-subcriterion judgment with the score clamped
// to [1,10].
type SubScore struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
	Evidence  string `json:"evidence"`
}

// ExecutionRisk is a validated risk entry with severity clamped to [1,5].
type ExecutionRisk struct {
	Dimension rubric.RiskDimension `json:"dimension"`
	Severity  int                  `json:"severity"`
	Factors   []string             `json:"factors"`
}

// Judgment is the validated, typed form the engine consumes.
type Judgment struct {
	HardStops           []rubric.HardStop
	Indicators          []rubric.ManipulationIndicator
	MissingCriticalInfo bool
	GateRationale       string

	Scores            map[rubric.SubCriterion]SubScore
	AdvisoryBaseScore *float64
	Confidence        float64

	Risks     []ExecutionRisk
	HarmGates []rubric.HarmGate
	// AdvisoryMultiplier and AdvisoryRiskGrade are the judge's own
	// phase-3 aggregates. Like AdvisoryBaseScore they are validated for
	// gap reporting only; the risk adjuster recomputes both from the
	// enumerated risks and harm gates.
	AdvisoryMultiplier *float64
	AdvisoryRiskGrade  string
	DeriskingPlan      []string

	TierRecommendation string
	Conditions         []string
	NextBestAction     string

	DerivedTags     []string
	AntiGamingFlags []string
	LaneDetected    string
	StageDetected   string

	// Gaps lists every field the validator had to repair, default, or drop.
	Gaps []string
}

// ContractError means the raw judgment is malformed beyond repair. The
// orchestrator aborts without persisting anything when it sees one.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("judgment contract violation: %s", e.Reason)
}
