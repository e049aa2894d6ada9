package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mindburn-Labs/verdant/pkg/audit"
	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// State names one stage of an evaluation run. Any unhandled error moves the
// run to StateFailed; nothing before Persisting has written anything, so a
// failed run leaves no partial evaluation behind.
type State string

const (
	StateFetching      State = "fetching"
	StateJudging       State = "judging"
	StateValidating    State = "validating"
	StateGating        State = "gating"
	StateScoring       State = "scoring"
	StateRiskAdjusting State = "risk_adjusting"
	StateResolving     State = "resolving"
	StatePersisting    State = "persisting"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// ErrSubjectNotFound is returned when the subject id resolves to nothing.
var ErrSubjectNotFound = errors.New("subject not found")

// ErrCooldown is returned when the subject was evaluated too recently.
var ErrCooldown = errors.New("subject evaluated within cool-down window")

// SubjectStore reads and updates mutable project records. The engine never
// creates or deletes subjects.
type SubjectStore interface {
	GetSubject(ctx context.Context, id string) (*Subject, error)
	UpdateSubject(ctx context.Context, id string, u SubjectUpdate) error
	ListUnevaluated(ctx context.Context, limit int) ([]*Subject, error)
}

// EvaluationStore persists immutable evaluation records.
type EvaluationStore interface {
	CreateEvaluation(ctx context.Context, res *EvaluationResult) error
	LatestEvaluation(ctx context.Context, subjectID string) (*EvaluationResult, error)
	ListEvaluations(ctx context.Context, subjectID string, limit int) ([]*EvaluationResult, error)
}

// Judge produces a raw judgment for a subject. Implementations call an
// external AI collaborator; the engine only ever sees the returned bytes,
// which go straight through contract validation.
type Judge interface {
	ProduceJudgment(ctx context.Context, subject *Subject, r *rubric.Rubric) ([]byte, error)
}

// Guard serializes re-evaluation of a subject across instances. Acquire
// returns false when the subject is still inside its cool-down window;
// Release ends a claimed window early so a failed run stays retryable.
type Guard interface {
	Acquire(ctx context.Context, subjectID string) (bool, error)
	Release(ctx context.Context, subjectID string) error
}

// Orchestrator sequences the evaluation phases around the external
// collaborators and owns the persistence contract.
type Orchestrator struct {
	engine      *Engine
	validator   *judgment.Validator
	judge       Judge
	subjects    SubjectStore
	evaluations EvaluationStore
	auditLog    audit.Logger
	guard       Guard
	cooldown    time.Duration
	retries     int
	logger      *slog.Logger
	clock       func() time.Time
}

// OrchestratorOption configures optional collaborators.
type OrchestratorOption func(*Orchestrator)

// WithGuard installs a distributed cool-down guard.
func WithGuard(g Guard) OrchestratorOption {
	return func(o *Orchestrator) { o.guard = g }
}

// WithCooldown overrides the re-evaluation cool-down window.
func WithCooldown(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.cooldown = d }
}

// WithPersistRetries overrides the per-write retry budget.
func WithPersistRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.retries = n }
}

// WithOrchestratorClock overrides the clock for testing.
func WithOrchestratorClock(clock func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = clock }
}

// NewOrchestrator wires the pipeline to its collaborators.
func NewOrchestrator(e *Engine, v *judgment.Validator, j Judge, subjects SubjectStore, evaluations EvaluationStore, auditLog audit.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		engine:      e,
		validator:   v,
		judge:       j,
		subjects:    subjects,
		evaluations: evaluations,
		auditLog:    auditLog,
		cooldown:    10 * time.Minute,
		retries:     3,
		logger:      slog.Default().With("component", "orchestrator"),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate runs one subject end to end and returns the persisted record.
//
// State walk: Fetching → Judging → Validating → Gating → Scoring →
// RiskAdjusting → Resolving → Persisting → Done. The gating through
// resolving stages are pure and cannot fail; errors only arise at the
// external boundaries, and any error before Persisting aborts with nothing
// written.
func (o *Orchestrator) Evaluate(ctx context.Context, subjectID, mode string) (*EvaluationResult, error) {
	state := StateFetching
	log := o.logger.With("subject_id", subjectID, "mode", mode)

	subject, err := o.fetch(ctx, subjectID)
	if err != nil {
		return nil, o.fail(log, state, err)
	}

	// The guard claim sticks only once the evaluation is durably written.
	// A run that fails at judging, validation, or persistence releases it,
	// so the caller can retry immediately; the persisted record itself is
	// what refuses genuine re-evaluation inside the window.
	committed := false
	if o.guard != nil {
		ok, gerr := o.guard.Acquire(ctx, subjectID)
		if gerr != nil {
			return nil, o.fail(log, state, fmt.Errorf("cool-down guard: %w", gerr))
		}
		if !ok {
			return nil, o.fail(log, state, ErrCooldown)
		}
		defer func() {
			if committed {
				return
			}
			if rerr := o.guard.Release(ctx, subjectID); rerr != nil {
				log.Warn("cool-down guard release failed", "error", rerr)
			}
		}()
	}

	state = StateJudging
	rawJudgment, err := o.judge.ProduceJudgment(ctx, subject, o.engine.Rubric())
	if err != nil {
		return nil, o.fail(log, state, fmt.Errorf("judgment call: %w", err))
	}

	state = StateValidating
	j, err := o.validator.Validate(rawJudgment)
	if err != nil {
		// ContractError: malformed beyond repair, nothing is persisted.
		return nil, o.fail(log, state, err)
	}

	// Gating, scoring, risk adjustment, and resolution are a single pure
	// computation over the validated judgment.
	state = StateResolving
	result, err := o.engine.Evaluate(subjectID, mode, j)
	if err != nil {
		return nil, o.fail(log, state, err)
	}

	state = StatePersisting
	if err := o.Persist(ctx, subject, result); err != nil {
		return result, o.fail(log, state, err)
	}
	committed = true

	state = StateDone
	log.Info("evaluation complete",
		"state", string(state),
		"evaluation_id", result.ID,
		"tier", string(result.Phase4.DecisionTier),
		"status", string(result.Status),
		"final_score", result.Phase4.FinalScore,
	)
	return result, nil
}

func (o *Orchestrator) fetch(ctx context.Context, subjectID string) (*Subject, error) {
	subject, err := o.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	// The persisted record is the source of truth for the cool-down: a
	// subject with a very recent evaluation is refused regardless of
	// guard state. The guard only serializes concurrent triggers.
	if latest, err := o.evaluations.LatestEvaluation(ctx, subjectID); err == nil && latest != nil {
		if o.clock().Sub(latest.CreatedAt) < o.cooldown {
			return nil, ErrCooldown
		}
	}

	return subject, nil
}

// Persist performs the three external writes: evaluation create, subject
// update, audit append. The writes are not transactional across the store;
// each is retried independently and the method may be re-run on its own to
// reconcile a partial failure — the evaluation insert is idempotent by id
// and the subject update and audit append are keyed to the same evaluation.
func (o *Orchestrator) Persist(ctx context.Context, subject *Subject, res *EvaluationResult) error {
	var errs []error

	if err := o.retry(ctx, "evaluation_create", func() error {
		return o.evaluations.CreateEvaluation(ctx, res)
	}); err != nil {
		errs = append(errs, fmt.Errorf("evaluation create: %w", err))
	}

	if err := o.retry(ctx, "subject_update", func() error {
		return o.subjects.UpdateSubject(ctx, subject.ID, SubjectUpdate{
			Status:           res.Status,
			CurrentScore:     res.Phase4.FinalScore,
			CurrentTier:      res.Phase4.DecisionTier,
			LastEvaluationID: res.ID,
			EvaluatedAt:      res.CreatedAt,
		})
	}); err != nil {
		errs = append(errs, fmt.Errorf("subject update: %w", err))
	}

	if err := o.retry(ctx, "audit_append", func() error {
		entry := audit.NewEntry(ctx, subject.ID, res.ID, "evaluation_completed",
			string(res.Phase4.DecisionTier)+": "+res.Phase1.Rationale,
			map[string]any{
				"final_score": res.Phase4.FinalScore,
				"risk_grade":  res.Phase3.RiskGrade,
				"digest":      res.Digest,
			})
		return o.auditLog.Append(ctx, entry)
	}); err != nil {
		errs = append(errs, fmt.Errorf("audit append: %w", err))
	}

	return errors.Join(errs...)
}

// retry runs fn up to the retry budget with linear backoff. Writes are
// cheap and local to the store, so a short fixed backoff is enough.
func (o *Orchestrator) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		o.logger.Warn("persist write failed", "op", op, "attempt", attempt+1, "error", err)
		if attempt < o.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
			}
		}
	}
	return err
}

func (o *Orchestrator) fail(log *slog.Logger, state State, err error) error {
	log.Error("evaluation failed", "state", string(state), "error", err)
	return err
}
