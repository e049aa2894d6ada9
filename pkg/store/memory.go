package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Mindburn-Labs/verdant/pkg/audit"
	"github.com/Mindburn-Labs/verdant/pkg/engine"
)

// MemoryStore is an in-process store for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	subjects    map[string]*engine.Subject
	evaluations map[string][]*engine.EvaluationResult // subject id -> newest first
	auditLog    []*audit.Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects:    make(map[string]*engine.Subject),
		evaluations: make(map[string][]*engine.EvaluationResult),
	}
}

// InsertSubject seeds a subject record.
func (m *MemoryStore) InsertSubject(_ context.Context, sub *engine.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subjects[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSubject(_ context.Context, id string) (*engine.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subjects[id]
	if !ok {
		return nil, engine.ErrSubjectNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) UpdateSubject(_ context.Context, id string, u engine.SubjectUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subjects[id]
	if !ok {
		return engine.ErrSubjectNotFound
	}
	sub.Status = u.Status
	sub.CurrentScore = u.CurrentScore
	sub.CurrentTier = u.CurrentTier
	sub.LastEvaluationID = u.LastEvaluationID
	evaluatedAt := u.EvaluatedAt
	sub.EvaluatedAt = &evaluatedAt
	return nil
}

func (m *MemoryStore) ListUnevaluated(_ context.Context, limit int) ([]*engine.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*engine.Subject
	for _, sub := range m.subjects {
		if sub.EvaluatedAt == nil {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateEvaluation(_ context.Context, res *engine.EvaluationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.evaluations[res.SubjectID] {
		if existing.ID == res.ID {
			return nil // idempotent by id
		}
	}
	cp := *res
	m.evaluations[res.SubjectID] = append([]*engine.EvaluationResult{&cp}, m.evaluations[res.SubjectID]...)
	return nil
}

func (m *MemoryStore) LatestEvaluation(_ context.Context, subjectID string) (*engine.EvaluationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evals := m.evaluations[subjectID]
	if len(evals) == 0 {
		return nil, nil
	}
	cp := *evals[0]
	return &cp, nil
}

func (m *MemoryStore) ListEvaluations(_ context.Context, subjectID string, limit int) ([]*engine.EvaluationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evals := m.evaluations[subjectID]
	if limit > 0 && len(evals) > limit {
		evals = evals[:limit]
	}
	out := make([]*engine.EvaluationResult, 0, len(evals))
	for _, e := range evals {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.auditLog = append(m.auditLog, &cp)
	return nil
}

// AuditEntries returns a copy of the appended entries, oldest first.
func (m *MemoryStore) AuditEntries() []*audit.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*audit.Entry, 0, len(m.auditLog))
	for _, e := range m.auditLog {
		cp := *e
		out = append(out, &cp)
	}
	return out
}
