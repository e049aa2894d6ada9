package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(rubric.Default())
	require.NoError(t, err)
	return e
}

// uniformJudgment scores every subcriterion with the same value, so the
// base score is exactly score×10.
func uniformJudgment(score int, confidence float64) *judgment.Judgment {
	j := &judgment.Judgment{
		Scores:     make(map[rubric.SubCriterion]judgment.SubScore),
		Confidence: confidence,
	}
	for _, sc := range rubric.Default().SubCriteria() {
		j.Scores[sc] = judgment.SubScore{Score: score}
	}
	return j
}
