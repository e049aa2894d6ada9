// Package batch runs bulk evaluation: it selects unevaluated subjects in a
// deterministic order and evaluates them one at a time.
package batch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Mindburn-Labs/verdant/pkg/engine"
)

// Driver evaluates up to a fixed cap of subjects per run, strictly
// sequentially, which bounds judge-call concurrency and keeps duplicate
// evaluations from racing onto one subject.
type Driver struct {
	orchestrator *engine.Orchestrator
	subjects     engine.SubjectStore
	cap          int
	logger       *slog.Logger
}

// Result summarizes one batch run.
type Result struct {
	Selected  int
	Evaluated int
	Skipped   int
	Failed    int
}

// NewDriver creates a batch driver with the given per-run cap.
func NewDriver(o *engine.Orchestrator, subjects engine.SubjectStore, cap int) *Driver {
	if cap <= 0 {
		cap = 5
	}
	return &Driver{
		orchestrator: o,
		subjects:     subjects,
		cap:          cap,
		logger:       slog.Default().With("component", "batch"),
	}
}

// Run evaluates unevaluated subjects, most recently created first. A
// failure on one subject is logged and counted but never aborts the rest.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	subjects, err := d.subjects.ListUnevaluated(ctx, d.cap)
	if err != nil {
		return nil, err
	}

	res := &Result{Selected: len(subjects)}
	for _, sub := range subjects {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		_, err := d.orchestrator.Evaluate(ctx, sub.ID, "batch")
		switch {
		case err == nil:
			res.Evaluated++
		case errors.Is(err, engine.ErrCooldown):
			res.Skipped++
			d.logger.Info("subject inside cool-down, skipped", "subject_id", sub.ID)
		default:
			res.Failed++
			d.logger.Error("batch evaluation failed", "subject_id", sub.ID, "error", err)
		}
	}

	d.logger.Info("batch run complete",
		"selected", res.Selected,
		"evaluated", res.Evaluated,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}
