package judgment

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

const (
	minSubScore = 1
	maxSubScore = 10
	minSeverity = 1
	maxSeverity = 5
)

// Validator checks raw judgments against the contract and repairs what it
// can. It is safe for concurrent use.
type Validator struct {
	rubric *rubric.Rubric
	schema *jsonschema.Schema
}

// NewValidator builds a validator bound to a rubric.
func NewValidator(r *rubric.Rubric) (*Validator, error) {
	if r == nil {
		return nil, fmt.Errorf("validator requires a rubric")
	}
	schema, err := compileContractSchema()
	if err != nil {
		return nil, err
	}
	return &Validator{rubric: r, schema: schema}, nil
}

// Validate turns raw judge output into a typed Judgment.
//
// Unrecoverable input (not a JSON object, structurally invalid, or missing
// all four phase blocks) returns a *ContractError. Recoverable problems —
// out-of-range scores, unknown enum values, a bad risk grade — are repaired
// in place and recorded in Gaps.
func (v *Validator) Validate(raw []byte) (*Judgment, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ContractError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if _, ok := decoded.(map[string]any); !ok {
		return nil, &ContractError{Reason: "judgment is not a JSON object"}
	}
	if err := v.schema.Validate(decoded); err != nil {
		return nil, &ContractError{Reason: fmt.Sprintf("schema validation failed: %v", err)}
	}

	var r Raw
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &ContractError{Reason: fmt.Sprintf("decode failed: %v", err)}
	}
	if r.Phase1 == nil && r.Phase2 == nil && r.Phase3 == nil && r.Phase4 == nil {
		return nil, &ContractError{Reason: "all four phase blocks are missing"}
	}

	j := &Judgment{
		Scores:          make(map[rubric.SubCriterion]SubScore),
		DerivedTags:     r.DerivedTags,
		AntiGamingFlags: r.AntiGamingFlags,
		LaneDetected:    r.LaneDetected,
		StageDetected:   r.StageDetected,
	}

	v.repairGate(r.Phase1, j)
	v.repairScores(r.Phase2, j)
	v.repairRisks(r.Phase3, j)
	v.repairTier(r.Phase4, j)

	return j, nil
}

func (v *Validator) repairGate(g *RawGate, j *Judgment) {
	if g == nil {
		j.Gaps = append(j.Gaps, "phase1 block missing")
		return
	}
	j.MissingCriticalInfo = g.MissingCriticalInfo
	j.GateRationale = g.Rationale

	for _, s := range g.HardStops {
		h := rubric.HardStop(s)
		if !v.rubric.KnownHardStop(h) {
			j.Gaps = append(j.Gaps, fmt.Sprintf("unknown hard stop %q dropped", s))
			continue
		}
		j.HardStops = append(j.HardStops, h)
	}
	seen := make(map[rubric.ManipulationIndicator]bool)
	for _, s := range g.ManipulationIndicators {
		m := rubric.ManipulationIndicator(s)
		if !v.rubric.KnownIndicator(m) {
			j.Gaps = append(j.Gaps, fmt.Sprintf("unknown manipulation indicator %q dropped", s))
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		j.Indicators = append(j.Indicators, m)
	}
}

func (v *Validator) repairScores(s *RawScores, j *Judgment) {
	if s == nil {
		j.Gaps = append(j.Gaps, "phase2 block missing")
		return
	}
	j.AdvisoryBaseScore = s.BaseScore

	if s.Confidence == nil {
		j.Gaps = append(j.Gaps, "confidence missing, defaulted to 50")
		j.Confidence = 50
	} else {
		j.Confidence = clampFloat(*s.Confidence, 0, 100)
		if j.Confidence != *s.Confidence {
			j.Gaps = append(j.Gaps, fmt.Sprintf("confidence %.1f clamped to %.1f", *s.Confidence, j.Confidence))
		}
	}

	for _, raw := range s.Scores {
		sc := rubric.SubCriterion(raw.SubCriterionID)
		if _, known := v.rubric.CategoryOf(sc); !known {
			j.Gaps = append(j.Gaps, fmt.Sprintf("unknown subcriterion %q dropped", raw.SubCriterionID))
			continue
		}
		if _, dup := j.Scores[sc]; dup {
			j.Gaps = append(j.Gaps, fmt.Sprintf("duplicate score for %q ignored", raw.SubCriterionID))
			continue
		}
		score := int(math.Round(raw.Score))
		if float64(score) != raw.Score {
			j.Gaps = append(j.Gaps, fmt.Sprintf("non-integer score %.2f for %q rounded", raw.Score, raw.SubCriterionID))
		}
		if clamped := clampInt(score, minSubScore, maxSubScore); clamped != score {
			j.Gaps = append(j.Gaps, fmt.Sprintf("score %d for %q clamped to %d", score, raw.SubCriterionID, clamped))
			score = clamped
		}
		j.Scores[sc] = SubScore{Score: score, Rationale: raw.Rationale, Evidence: raw.Evidence}
	}

	for _, sc := range v.rubric.SubCriteria() {
		if _, ok := j.Scores[sc]; !ok {
			j.Gaps = append(j.Gaps, fmt.Sprintf("no score for %q", sc))
		}
	}
}

var validDimensions = map[rubric.RiskDimension]bool{
	rubric.RiskTeam:      true,
	rubric.RiskTechnical: true,
	rubric.RiskFinancial: true,
	rubric.RiskExternal:  true,
	rubric.RiskTimeline:  true,
}

var validHarmGates = map[rubric.HarmGate]bool{
	rubric.HarmPhysical:      true,
	rubric.HarmPsychological: true,
	rubric.HarmEnvironmental: true,
	rubric.HarmFinancial:     true,
}

var validGrades = map[string]bool{"A": true, "B": true, "C": true, "D": true, "F": true}

func (v *Validator) repairRisks(r *RawRisks, j *Judgment) {
	if r == nil {
		j.Gaps = append(j.Gaps, "phase3 block missing")
		j.AdvisoryRiskGrade = "C"
		return
	}
	j.DeriskingPlan = r.DeriskingPlan

	for _, raw := range r.Risks {
		dim := rubric.RiskDimension(raw.Dimension)
		if !validDimensions[dim] {
			j.Gaps = append(j.Gaps, fmt.Sprintf("unknown risk dimension %q dropped", raw.Dimension))
			continue
		}
		sev := int(math.Round(raw.Severity))
		if clamped := clampInt(sev, minSeverity, maxSeverity); clamped != sev {
			j.Gaps = append(j.Gaps, fmt.Sprintf("severity %d for %q clamped to %d", sev, raw.Dimension, clamped))
			sev = clamped
		}
		j.Risks = append(j.Risks, ExecutionRisk{Dimension: dim, Severity: sev, Factors: raw.Factors})
	}

	for _, s := range r.HarmGates {
		g := rubric.HarmGate(s)
		if !validHarmGates[g] {
			j.Gaps = append(j.Gaps, fmt.Sprintf("unknown harm gate %q dropped", s))
			continue
		}
		j.HarmGates = append(j.HarmGates, g)
	}

	if r.ExecutionMultiplier != nil {
		m := clampFloat(*r.ExecutionMultiplier, v.rubric.Thresholds.MultiplierFloor, 1.0)
		if m != *r.ExecutionMultiplier {
			j.Gaps = append(j.Gaps, fmt.Sprintf("execution multiplier %.3f clamped to %.3f", *r.ExecutionMultiplier, m))
		}
		j.AdvisoryMultiplier = &m
	}

	switch {
	case r.RiskGrade == "":
		j.Gaps = append(j.Gaps, "risk grade missing, defaulted to C")
		j.AdvisoryRiskGrade = "C"
	case !validGrades[r.RiskGrade]:
		j.Gaps = append(j.Gaps, fmt.Sprintf("invalid risk grade %q, defaulted to C", r.RiskGrade))
		j.AdvisoryRiskGrade = "C"
	default:
		j.AdvisoryRiskGrade = r.RiskGrade
	}
}

func (v *Validator) repairTier(t *RawTier, j *Judgment) {
	if t == nil {
		j.Gaps = append(j.Gaps, "phase4 block missing")
		return
	}
	j.TierRecommendation = t.TierRecommendation
	j.Conditions = t.Conditions
	j.NextBestAction = t.NextBestAction
}

// MissingSubCriteria returns the subcriteria the judgment did not score,
// in stable rubric order.
func (j *Judgment) MissingSubCriteria(r *rubric.Rubric) []rubric.SubCriterion {
	var missing []rubric.SubCriterion
	for _, sc := range r.SubCriteria() {
		if _, ok := j.Scores[sc]; !ok {
			missing = append(missing, sc)
		}
	}
	return missing
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
