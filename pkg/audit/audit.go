// Package audit records append-only audit entries for evaluation runs.
// Entries are write-once: nothing in this subsystem updates or deletes one
// after it is appended.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/verdant/pkg/principal"
)

// ActorType distinguishes who triggered the audited action.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Entry is one append-only audit record.
type Entry struct {
	ID           string         `json:"id"`
	SubjectID    string         `json:"subject_id"`
	EvaluationID string         `json:"evaluation_id"`
	Action       string         `json:"action"`
	ActorID      string         `json:"actor_id"`
	ActorType    ActorType      `json:"actor_type"`
	Reason       string         `json:"reason"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Logger appends audit entries to a sink.
type Logger interface {
	Append(ctx context.Context, e *Entry) error
}

// NewEntry builds an entry stamped with the acting principal from ctx.
// Requests without a principal are attributed to the system actor, which
// is how the batch driver runs.
func NewEntry(ctx context.Context, subjectID, evaluationID, action, reason string, metadata map[string]any) *Entry {
	actorID := "system"
	actorType := ActorSystem
	if p, err := principal.FromContext(ctx); err == nil {
		actorID = p.GetID()
		actorType = ActorUser
	}
	return &Entry{
		ID:           uuid.New().String(),
		SubjectID:    subjectID,
		EvaluationID: evaluationID,
		Action:       action,
		ActorID:      actorID,
		ActorType:    actorType,
		Reason:       reason,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
}

// lineLogger writes structured JSON lines to a configurable writer.
type lineLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLineLogger creates a Logger writing one JSON line per entry.
// A nil writer defaults to os.Stdout.
func NewLineLogger(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &lineLogger{writer: w}
}

func (l *lineLogger) Append(_ context.Context, e *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(raw, '\n')...))
	return err
}

// Tee fans one entry out to several loggers; the first error wins but all
// sinks are attempted.
func Tee(loggers ...Logger) Logger {
	return teeLogger(loggers)
}

type teeLogger []Logger

func (t teeLogger) Append(ctx context.Context, e *Entry) error {
	var firstErr error
	for _, l := range t {
		if err := l.Append(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
