// Package engine implements the deterministic funding-decision pipeline:
// ethical gate, weighted scorer, risk adjuster, decision resolver, and the
// orchestrator that sequences them around external collaborators.
//
// Everything in this package is a pure function of (rubric, judgment) apart
// from the orchestrator, which owns the external reads and writes. Identical
// inputs always produce identical outputs; there is no randomness and no
// hidden state anywhere in the pipeline.
package engine

import (
	"time"

	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// GateVerdict is the ethical gate's classification.
type GateVerdict string

const (
	GatePass      GateVerdict = "pass"
	GateFail      GateVerdict = "fail"
	GateUncertain GateVerdict = "uncertain"
)

// Tier is one of the four mutually exclusive final outcomes.
type Tier string

const (
	TierApproveFund      Tier = "approve_fund"
	TierIncubateDerisk   Tier = "incubate_derisk"
	TierReviewReevaluate Tier = "review_reevaluate"
	TierDecline          Tier = "decline"
)

// Status is a subject's lifecycle status after an evaluation.
type Status string

const (
	StatusApproved      Status = "approved"
	StatusIncubate      Status = "incubate"
	StatusRFIPending    Status = "rfi_pending"
	StatusDeclined      Status = "declined"
	StatusPendingReview Status = "pending_review"
)

// Phase1Result is the ethical gate output.
type Phase1Result struct {
	Result    GateVerdict `json:"result"`
	Flags     []string    `json:"flags,omitempty"`
	Rationale string      `json:"rationale"`
	RFIItems  []string    `json:"rfi_items,omitempty"`
}

// Phase2Result is the weighted scorer output. BaseScore is always in
// [0,100]; Confidence is the judge's reported confidence clamped and
// discounted for incomplete subcriterion coverage.
type Phase2Result struct {
	Scores     map[rubric.SubCriterion]int `json:"scores_by_subcriterion"`
	BaseScore  float64                     `json:"base_score"`
	Confidence float64                     `json:"confidence"`
	Gaps       []string                    `json:"gaps,omitempty"`
}

// Phase3Result is the risk adjuster output. ExecutionMultiplier is always
// in [floor, 1.0].
type Phase3Result struct {
	Risks               []judgment.ExecutionRisk `json:"risks,omitempty"`
	ExecutionMultiplier float64                  `json:"execution_multiplier"`
	HarmGates           []rubric.HarmGate        `json:"harm_gates,omitempty"`
	RiskGrade           string                   `json:"risk_grade"`
	DeriskingPlan       []string                 `json:"derisking_plan,omitempty"`
}

// Phase4Result is the decision resolver output.
type Phase4Result struct {
	FinalScore     float64  `json:"final_score"`
	DecisionTier   Tier     `json:"decision_tier"`
	Conditions     []string `json:"conditions,omitempty"`
	NextBestAction string   `json:"next_best_action"`
}

// EvaluationResult is the immutable record of one evaluation run. It is
// created once, digested, persisted, and never mutated afterward.
type EvaluationResult struct {
	ID              string       `json:"id"`
	SubjectID       string       `json:"subject_id"`
	Mode            string       `json:"mode"`
	Phase1          Phase1Result `json:"phase1"`
	Phase2          Phase2Result `json:"phase2"`
	Phase3          Phase3Result `json:"phase3"`
	Phase4          Phase4Result `json:"phase4"`
	Status          Status       `json:"status"`
	DerivedTags     []string     `json:"derived_tags,omitempty"`
	AntiGamingFlags []string     `json:"anti_gaming_flags,omitempty"`
	LaneDetected    string       `json:"lane_detected,omitempty"`
	StageDetected   string       `json:"stage_detected,omitempty"`
	Digest          string       `json:"digest"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Subject is the mutable project record owned by the entity store. The
// engine reads it for judging context and issues partial updates after an
// evaluation; it never creates or deletes subjects.
type Subject struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Status           Status     `json:"status"`
	CurrentScore     float64    `json:"current_score"`
	CurrentTier      Tier       `json:"current_tier"`
	LastEvaluationID string     `json:"last_evaluation_id"`
	EvaluatedAt      *time.Time `json:"evaluated_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// SubjectUpdate is the partial-field update command issued after an
// evaluation. Only the evaluation snapshot fields are touched.
type SubjectUpdate struct {
	Status           Status    `json:"status"`
	CurrentScore     float64   `json:"current_score"`
	CurrentTier      Tier      `json:"current_tier"`
	LastEvaluationID string    `json:"last_evaluation_id"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
}
