package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/verdant/pkg/canonical"
	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// Engine runs the four decision phases against an injected rubric.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	rubric *rubric.Rubric
	clock  func() time.Time
	newID  func() string
}

// New builds an engine. The rubric is validated once here so every later
// phase can trust its invariants (weights sum to 100, bands descending).
func New(r *rubric.Rubric) (*Engine, error) {
	if r == nil {
		r = rubric.Default()
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("engine rubric: %w", err)
	}
	return &Engine{
		rubric: r,
		clock:  time.Now,
		newID:  func() string { return uuid.New().String() },
	}, nil
}

// WithClock overrides the clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// WithIDFunc overrides evaluation id generation for testing.
func (e *Engine) WithIDFunc(f func() string) *Engine {
	e.newID = f
	return e
}

// Rubric returns the injected rubric.
func (e *Engine) Rubric() *rubric.Rubric {
	return e.rubric
}

// Evaluate runs all four phases over a validated judgment and assembles the
// immutable evaluation record, including its canonical digest. The record
// is complete but not yet persisted; that is the orchestrator's job.
func (e *Engine) Evaluate(subjectID, mode string, j *judgment.Judgment) (*EvaluationResult, error) {
	p1 := e.Gate(j)
	p2 := e.Score(j)
	p2.Gaps = append(j.Gaps, p2.Gaps...)
	p3 := e.AdjustRisk(j)
	p4 := e.Resolve(p1, p2, p3)

	res := &EvaluationResult{
		ID:              e.newID(),
		SubjectID:       subjectID,
		Mode:            mode,
		Phase1:          p1,
		Phase2:          p2,
		Phase3:          p3,
		Phase4:          p4,
		Status:          MapStatus(p4.DecisionTier, p1.Result),
		DerivedTags:     j.DerivedTags,
		AntiGamingFlags: j.AntiGamingFlags,
		LaneDetected:    j.LaneDetected,
		StageDetected:   j.StageDetected,
		CreatedAt:       e.clock().UTC(),
	}

	// The digest covers the decision content only, not the run identity,
	// so identical inputs provably produce identical decisions.
	digest, err := canonical.Digest(struct {
		SubjectID string       `json:"subject_id"`
		Phase1    Phase1Result `json:"phase1"`
		Phase2    Phase2Result `json:"phase2"`
		Phase3    Phase3Result `json:"phase3"`
		Phase4    Phase4Result `json:"phase4"`
	}{subjectID, p1, p2, p3, p4})
	if err != nil {
		return nil, fmt.Errorf("evaluation digest: %w", err)
	}
	res.Digest = digest

	return res, nil
}
