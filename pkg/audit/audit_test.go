package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/verdant/pkg/principal"
)

func TestNewEntryDefaultsToSystemActor(t *testing.T) {
	e := NewEntry(context.Background(), "sub-1", "eval-1", "evaluation_completed", "approve_fund", nil)

	assert.Equal(t, "system", e.ActorID)
	assert.Equal(t, ActorSystem, e.ActorType)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestNewEntryUsesPrincipal(t *testing.T) {
	ctx := principal.NewContext(context.Background(), &principal.Base{ID: "reviewer-1"})
	e := NewEntry(ctx, "sub-1", "eval-1", "evaluation_completed", "decline", nil)

	assert.Equal(t, "reviewer-1", e.ActorID)
	assert.Equal(t, ActorUser, e.ActorType)
}

func TestLineLoggerWritesPrefixedJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLineLogger(&buf)

	e := NewEntry(context.Background(), "sub-1", "eval-1", "evaluation_completed", "approve_fund",
		map[string]any{"final_score": 80.0})
	require.NoError(t, l.Append(context.Background(), e))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "AUDIT: "))
	require.True(t, strings.HasSuffix(line, "\n"))

	var decoded Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "AUDIT: ")), &decoded))
	assert.Equal(t, "sub-1", decoded.SubjectID)
	assert.Equal(t, "evaluation_completed", decoded.Action)
}

type failingLogger struct{ err error }

func (f *failingLogger) Append(context.Context, *Entry) error { return f.err }

type countingLogger struct{ calls int }

func (c *countingLogger) Append(context.Context, *Entry) error {
	c.calls++
	return nil
}

func TestTeeAttemptsAllSinks(t *testing.T) {
	boom := errors.New("sink down")
	counting := &countingLogger{}
	tee := Tee(&failingLogger{err: boom}, counting)

	err := tee.Append(context.Background(), NewEntry(context.Background(), "sub-1", "", "test", "", nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, counting.calls)
}
