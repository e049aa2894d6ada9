// Package rubric defines the weighted scoring taxonomy and the calibration
// constants for the evaluation engine.
//
// The rubric is an immutable configuration value: it is built once (from the
// compiled defaults or a YAML profile) and injected into the engine at
// construction time. Nothing in this package mutates a Rubric after Validate
// has accepted it, which is what makes evaluations reproducible — the same
// subject and judgment against the same rubric always yield the same decision.
package rubric

import (
	"fmt"
	"math"
)

// SubCriterion identifies one scored dimension of a submission.
type SubCriterion string

const (
	PlanetaryWellbeing    SubCriterion = "planetary_wellbeing"
	HumanWellbeing        SubCriterion = "human_wellbeing"
	RegenerativePotential SubCriterion = "regenerative_potential"
	EthicalGovernance     SubCriterion = "ethical_governance"
	CostEffectiveness     SubCriterion = "cost_effectiveness"
	ScalabilityModel      SubCriterion = "scalability_model"
	ExpertiseTrackRecord  SubCriterion = "expertise_track_record"
	CommunityIntegration  SubCriterion = "community_integration"
	Innovation            SubCriterion = "innovation"
	Replicability         SubCriterion = "replicability"
)

// CategoryID identifies a top-level scoring category.
type CategoryID string

const (
	CategoryImpact       CategoryID = "impact"
	CategoryRegenerative CategoryID = "regenerative_ethical"
	CategoryFeasibility  CategoryID = "feasibility"
	CategoryTeam         CategoryID = "team"
	CategoryInnovation   CategoryID = "innovation"
)

// Category binds a weight to the subcriteria it aggregates.
// WeightPercent values across all categories must sum to exactly 100.
type Category struct {
	ID            CategoryID     `yaml:"id" json:"id"`
	WeightPercent float64        `yaml:"weight_percent" json:"weight_percent"`
	SubCriteria   []SubCriterion `yaml:"subcriteria" json:"subcriteria"`
}

// HardStop is an absolute disqualifier. Any single hard stop present on a
// submission forces an ethical-gate failure regardless of score.
type HardStop string

const (
	StopFraud             HardStop = "fraud"
	StopCoercion          HardStop = "coercion"
	StopHateViolence      HardStop = "hate_violence"
	StopMedicalMisinfo    HardStop = "medical_misinfo"
	StopScam              HardStop = "scam"
	StopExploitativeLabor HardStop = "exploitative_labor"
	StopLandRights        HardStop = "land_rights"
	StopDataAbuse         HardStop = "data_abuse"
	StopWeapons           HardStop = "weapons"
	StopEnvCatastrophe    HardStop = "environmental_catastrophe"
)

// ManipulationIndicator is a soft-disqualification signal. The count of
// distinct indicators drives gate severity rather than any single one.
type ManipulationIndicator string

const (
	IndDependencyCreation  ManipulationIndicator = "dependency_creation"
	IndIsolationTactics    ManipulationIndicator = "isolation_tactics"
	IndExclusiveTruth      ManipulationIndicator = "exclusive_truth"
	IndCoercivePayments    ManipulationIndicator = "coercive_payments"
	IndThreatPunishment    ManipulationIndicator = "threat_punishment"
	IndSleepFoodControl    ManipulationIndicator = "sleep_food_control"
	IndMandatedSecrecy     ManipulationIndicator = "mandated_secrecy"
	IndPunitiveShaming     ManipulationIndicator = "punitive_shaming"
	IndLoveBombing         ManipulationIndicator = "love_bombing"
	IndLeaderInfallibility ManipulationIndicator = "leader_infallibility"
	IndFinancialOpacity    ManipulationIndicator = "financial_opacity"
)

// RiskDimension identifies one axis of execution risk.
type RiskDimension string

const (
	RiskTeam      RiskDimension = "team"
	RiskTechnical RiskDimension = "technical"
	RiskFinancial RiskDimension = "financial"
	RiskExternal  RiskDimension = "external"
	RiskTimeline  RiskDimension = "timeline"
)

// HarmGate is a binary trip-wire. A tripped gate forces the execution
// multiplier to the floor and the risk grade to F.
type HarmGate string

const (
	HarmPhysical      HarmGate = "physical"
	HarmPsychological HarmGate = "psychological"
	HarmEnvironmental HarmGate = "environmental"
	HarmFinancial     HarmGate = "financial"
)

// GradeBand maps a multiplier floor to a letter grade. Bands are evaluated
// top-down; the first band whose Min the multiplier meets wins.
type GradeBand struct {
	Min   float64 `yaml:"min" json:"min"`
	Grade string  `yaml:"grade" json:"grade"`
}

// Thresholds collects every numeric cutoff the decision pipeline uses.
// Hoisting them here keeps the pipeline code free of magic numbers and lets
// tests substitute alternate calibrations.
type Thresholds struct {
	// ManipulationFail is the indicator count at which the gate fails (≥).
	ManipulationFail int `yaml:"manipulation_fail" json:"manipulation_fail"`
	// ManipulationUncertain is the indicator count at which the gate turns
	// uncertain (≥, below ManipulationFail).
	ManipulationUncertain int `yaml:"manipulation_uncertain" json:"manipulation_uncertain"`

	// MultiplierFloor bounds the execution multiplier from below.
	MultiplierFloor float64 `yaml:"multiplier_floor" json:"multiplier_floor"`
	// SeverityPenalty is subtracted per point of risk severity per dimension.
	// Calibrated so five maxed dimensions land exactly on the floor:
	// 1.0 − 5×5×0.016 = 0.6.
	SeverityPenalty float64 `yaml:"severity_penalty" json:"severity_penalty"`

	// Tier cutoffs for the final (risk-adjusted) score.
	ApproveScore  float64 `yaml:"approve_score" json:"approve_score"`
	IncubateScore float64 `yaml:"incubate_score" json:"incubate_score"`
	ReviewScore   float64 `yaml:"review_score" json:"review_score"`

	// ConfidenceKnee is the confidence below which the final score is
	// discounted by 0.5 + confidence/200.
	ConfidenceKnee float64 `yaml:"confidence_knee" json:"confidence_knee"`

	// ApproveGrades are the risk grades eligible for approve_fund.
	ApproveGrades []string `yaml:"approve_grades" json:"approve_grades"`
}

// Rubric is the complete evaluation configuration.
type Rubric struct {
	Version    string                  `yaml:"version" json:"version"`
	Categories []Category              `yaml:"categories" json:"categories"`
	HardStops  []HardStop              `yaml:"hard_stops" json:"hard_stops"`
	Indicators []ManipulationIndicator `yaml:"manipulation_indicators" json:"manipulation_indicators"`
	GradeBands []GradeBand             `yaml:"grade_bands" json:"grade_bands"`
	Thresholds Thresholds              `yaml:"thresholds" json:"thresholds"`
}

// Default returns the compiled-in calibration. Weights: impact 30,
// regenerative/ethical 25, feasibility 20, team 15, innovation 10.
func Default() *Rubric {
	return &Rubric{
		Version: "1.0.0",
		Categories: []Category{
			{ID: CategoryImpact, WeightPercent: 30, SubCriteria: []SubCriterion{PlanetaryWellbeing, HumanWellbeing}},
			{ID: CategoryRegenerative, WeightPercent: 25, SubCriteria: []SubCriterion{RegenerativePotential, EthicalGovernance}},
			{ID: CategoryFeasibility, WeightPercent: 20, SubCriteria: []SubCriterion{CostEffectiveness, ScalabilityModel}},
			{ID: CategoryTeam, WeightPercent: 15, SubCriteria: []SubCriterion{ExpertiseTrackRecord, CommunityIntegration}},
			{ID: CategoryInnovation, WeightPercent: 10, SubCriteria: []SubCriterion{Innovation, Replicability}},
		},
		HardStops: []HardStop{
			StopFraud, StopCoercion, StopHateViolence, StopMedicalMisinfo, StopScam,
			StopExploitativeLabor, StopLandRights, StopDataAbuse, StopWeapons, StopEnvCatastrophe,
		},
		Indicators: []ManipulationIndicator{
			IndDependencyCreation, IndIsolationTactics, IndExclusiveTruth, IndCoercivePayments,
			IndThreatPunishment, IndSleepFoodControl, IndMandatedSecrecy, IndPunitiveShaming,
			IndLoveBombing, IndLeaderInfallibility, IndFinancialOpacity,
		},
		GradeBands: []GradeBand{
			{Min: 0.9, Grade: "A"},
			{Min: 0.8, Grade: "B"},
			{Min: 0.7, Grade: "C"},
			{Min: 0.6, Grade: "D"},
		},
		Thresholds: Thresholds{
			ManipulationFail:      3,
			ManipulationUncertain: 1,
			MultiplierFloor:       0.6,
			SeverityPenalty:       0.016,
			ApproveScore:          80,
			IncubateScore:         60,
			ReviewScore:           40,
			ConfidenceKnee:        50,
			ApproveGrades:         []string{"A", "B", "C"},
		},
	}
}

// Validate checks structural soundness: weights sum to exactly 100, every
// subcriterion belongs to exactly one category, bands are descending, and
// the threshold ladder is ordered.
func (r *Rubric) Validate() error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("rubric has no categories")
	}

	var sum float64
	seen := make(map[SubCriterion]CategoryID)
	for _, c := range r.Categories {
		if c.WeightPercent <= 0 {
			return fmt.Errorf("category %q has non-positive weight %.2f", c.ID, c.WeightPercent)
		}
		if len(c.SubCriteria) == 0 {
			return fmt.Errorf("category %q has no subcriteria", c.ID)
		}
		sum += c.WeightPercent
		for _, sc := range c.SubCriteria {
			if owner, dup := seen[sc]; dup {
				return fmt.Errorf("subcriterion %q appears in both %q and %q", sc, owner, c.ID)
			}
			seen[sc] = c.ID
		}
	}
	if math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("category weights sum to %.4f, want exactly 100", sum)
	}

	if r.Thresholds.MultiplierFloor <= 0 || r.Thresholds.MultiplierFloor >= 1 {
		return fmt.Errorf("multiplier floor %.2f out of (0,1)", r.Thresholds.MultiplierFloor)
	}
	if r.Thresholds.SeverityPenalty <= 0 {
		return fmt.Errorf("severity penalty must be positive")
	}
	if !(r.Thresholds.ApproveScore > r.Thresholds.IncubateScore && r.Thresholds.IncubateScore > r.Thresholds.ReviewScore) {
		return fmt.Errorf("tier thresholds must be strictly descending: approve %.1f, incubate %.1f, review %.1f",
			r.Thresholds.ApproveScore, r.Thresholds.IncubateScore, r.Thresholds.ReviewScore)
	}
	if r.Thresholds.ManipulationFail <= r.Thresholds.ManipulationUncertain {
		return fmt.Errorf("manipulation fail count must exceed uncertain count")
	}

	if len(r.GradeBands) == 0 {
		return fmt.Errorf("rubric has no grade bands")
	}
	prev := math.Inf(1)
	for _, b := range r.GradeBands {
		if b.Min >= prev {
			return fmt.Errorf("grade bands must be strictly descending, %q breaks order", b.Grade)
		}
		prev = b.Min
	}

	return nil
}

// CategoryOf returns the owning category for a subcriterion.
func (r *Rubric) CategoryOf(sc SubCriterion) (CategoryID, bool) {
	for _, c := range r.Categories {
		for _, s := range c.SubCriteria {
			if s == sc {
				return c.ID, true
			}
		}
	}
	return "", false
}

// SubCriteria returns every subcriterion in category order.
func (r *Rubric) SubCriteria() []SubCriterion {
	var out []SubCriterion
	for _, c := range r.Categories {
		out = append(out, c.SubCriteria...)
	}
	return out
}

// KnownHardStop reports whether the rubric recognizes the hard stop.
func (r *Rubric) KnownHardStop(h HardStop) bool {
	for _, s := range r.HardStops {
		if s == h {
			return true
		}
	}
	return false
}

// KnownIndicator reports whether the rubric recognizes the indicator.
func (r *Rubric) KnownIndicator(m ManipulationIndicator) bool {
	for _, i := range r.Indicators {
		if i == m {
			return true
		}
	}
	return false
}

// GradeFor maps a multiplier to a letter grade via the bands; anything below
// the last band is F.
func (r *Rubric) GradeFor(multiplier float64) string {
	for _, b := range r.GradeBands {
		if multiplier >= b.Min {
			return b.Grade
		}
	}
	return "F"
}
