package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdant/pkg/engine"
	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
	"github.com/Mindburn-Labs/verdant/pkg/store"
)

type scriptedJudge struct {
	failFor map[string]error
	raw     []byte
}

func (s *scriptedJudge) ProduceJudgment(_ context.Context, sub *engine.Subject, _ *rubric.Rubric) ([]byte, error) {
	if err, ok := s.failFor[sub.ID]; ok {
		return nil, err
	}
	return s.raw, nil
}

func minimalJudgment(t *testing.T) []byte {
	t.Helper()
	var scores []map[string]any
	for _, sc := range rubric.Default().SubCriteria() {
		scores = append(scores, map[string]any{"subcriterion_id": string(sc), "score": 7})
	}
	raw, err := json.Marshal(map[string]any{
		"phase1": map[string]any{},
		"phase2": map[string]any{"scores": scores, "confidence": 80},
		"phase3": map[string]any{},
		"phase4": map[string]any{},
	})
	require.NoError(t, err)
	return raw
}

func newBatchHarness(t *testing.T, j engine.Judge, cap int) (*Driver, *store.MemoryStore) {
	t.Helper()
	eng, err := engine.New(rubric.Default())
	require.NoError(t, err)
	v, err := judgment.NewValidator(rubric.Default())
	require.NoError(t, err)

	st := store.NewMemoryStore()
	o := engine.NewOrchestrator(eng, v, j, st, st, st)
	return NewDriver(o, st, cap), st
}

func seedSubjects(t *testing.T, st *store.MemoryStore, ids ...string) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		require.NoError(t, st.InsertSubject(context.Background(), &engine.Subject{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
}

func TestDriverEvaluatesUnevaluatedSubjects(t *testing.T) {
	d, st := newBatchHarness(t, &scriptedJudge{raw: minimalJudgment(t)}, 5)
	seedSubjects(t, st, "sub-1", "sub-2", "sub-3")

	res, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Selected)
	assert.Equal(t, 3, res.Evaluated)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Failed)

	remaining, err := st.ListUnevaluated(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDriverHonorsCap(t *testing.T) {
	d, st := newBatchHarness(t, &scriptedJudge{raw: minimalJudgment(t)}, 2)
	seedSubjects(t, st, "sub-1", "sub-2", "sub-3", "sub-4")

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Selected)

	remaining, err := st.ListUnevaluated(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestDriverOneFailureDoesNotAbortTheRest(t *testing.T) {
	j := &scriptedJudge{
		raw:     minimalJudgment(t),
		failFor: map[string]error{"sub-2": errors.New("upstream timeout")},
	}
	d, st := newBatchHarness(t, j, 5)
	seedSubjects(t, st, "sub-1", "sub-2", "sub-3")

	res, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Selected)
	assert.Equal(t, 2, res.Evaluated)
	assert.Equal(t, 1, res.Failed)
}

func TestDriverCountsCooldownAsSkipped(t *testing.T) {
	eng, err := engine.New(rubric.Default())
	require.NoError(t, err)
	v, err := judgment.NewValidator(rubric.Default())
	require.NoError(t, err)

	st := store.NewMemoryStore()
	seedSubjects(t, st, "sub-1")

	// A denying guard simulates a subject inside its cool-down window.
	o := engine.NewOrchestrator(eng, v, &scriptedJudge{raw: minimalJudgment(t)}, st, st, st,
		engine.WithGuard(denyAll{}))
	d := NewDriver(o, st, 5)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)
}

type denyAll struct{}

func (denyAll) Acquire(context.Context, string) (bool, error) { return false, nil }
func (denyAll) Release(context.Context, string) error         { return nil }

func TestDriverStopsOnCanceledContext(t *testing.T) {
	d, st := newBatchHarness(t, &scriptedJudge{raw: minimalJudgment(t)}, 5)
	seedSubjects(t, st, "sub-1", "sub-2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
