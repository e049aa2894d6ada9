// Package store provides the entity-store implementations behind the
// evaluation engine: subjects, immutable evaluation records, and the
// append-only audit table. SQLite is the default backend; a Postgres
// variant and an in-memory store implement the same engine interfaces.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/verdant/pkg/audit"
	"github.com/Mindburn-Labs/verdant/pkg/engine"
)

// SQLiteStore persists subjects, evaluations, and audit entries in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore wraps an existing handle and migrates the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending_review',
		current_score REAL NOT NULL DEFAULT 0,
		current_tier TEXT NOT NULL DEFAULT '',
		last_evaluation_id TEXT NOT NULL DEFAULT '',
		evaluated_at DATETIME,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		mode TEXT,
		status TEXT,
		digest TEXT,
		payload JSON NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evaluations_subject ON evaluations (subject_id, created_at DESC);
	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		evaluation_id TEXT,
		action TEXT NOT NULL,
		actor_id TEXT,
		actor_type TEXT,
		reason TEXT,
		metadata JSON,
		created_at DATETIME NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// InsertSubject seeds a subject record. Subject lifecycle is owned by the
// surrounding platform; this exists for bootstrap and tests.
func (s *SQLiteStore) InsertSubject(ctx context.Context, sub *engine.Subject) error {
	query := `INSERT INTO subjects (id, name, description, status, current_score, current_tier, last_evaluation_id, evaluated_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var evaluatedAt any
	if sub.EvaluatedAt != nil {
		evaluatedAt = sub.EvaluatedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.Name, sub.Description, string(sub.Status), sub.CurrentScore,
		string(sub.CurrentTier), sub.LastEvaluationID, evaluatedAt,
		sub.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// GetSubject looks up a subject by id.
func (s *SQLiteStore) GetSubject(ctx context.Context, id string) (*engine.Subject, error) {
	query := `SELECT id, name, description, status, current_score, current_tier, last_evaluation_id, evaluated_at, created_at
	FROM subjects WHERE id = ?`
	return scanSubject(s.db.QueryRowContext(ctx, query, id))
}

// UpdateSubject applies the evaluation snapshot to the mutable record.
func (s *SQLiteStore) UpdateSubject(ctx context.Context, id string, u engine.SubjectUpdate) error {
	query := `UPDATE subjects
	SET status = ?, current_score = ?, current_tier = ?, last_evaluation_id = ?, evaluated_at = ?
	WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		string(u.Status), u.CurrentScore, string(u.CurrentTier), u.LastEvaluationID,
		u.EvaluatedAt.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return engine.ErrSubjectNotFound
	}
	return nil
}

// ListUnevaluated returns never-evaluated subjects, most recently created
// first, capped at limit.
func (s *SQLiteStore) ListUnevaluated(ctx context.Context, limit int) ([]*engine.Subject, error) {
	query := `SELECT id, name, description, status, current_score, current_tier, last_evaluation_id, evaluated_at, created_at
	FROM subjects WHERE evaluated_at IS NULL ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subjects []*engine.Subject
	for rows.Next() {
		sub, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// CreateEvaluation inserts an immutable evaluation record. The insert is
// idempotent by id so a retried Persisting stage cannot duplicate a run.
func (s *SQLiteStore) CreateEvaluation(ctx context.Context, res *engine.EvaluationResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	query := `INSERT INTO evaluations (id, subject_id, mode, status, digest, payload, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`
	_, err = s.db.ExecContext(ctx, query,
		res.ID, res.SubjectID, res.Mode, string(res.Status), res.Digest,
		string(payload), res.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// LatestEvaluation returns the most recent evaluation for a subject, or
// (nil, nil) when none exists.
func (s *SQLiteStore) LatestEvaluation(ctx context.Context, subjectID string) (*engine.EvaluationResult, error) {
	evals, err := s.ListEvaluations(ctx, subjectID, 1)
	if err != nil {
		return nil, err
	}
	if len(evals) == 0 {
		return nil, nil
	}
	return evals[0], nil
}

// ListEvaluations returns a subject's evaluation history, newest first.
func (s *SQLiteStore) ListEvaluations(ctx context.Context, subjectID string, limit int) ([]*engine.EvaluationResult, error) {
	query := `SELECT payload FROM evaluations WHERE subject_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var evals []*engine.EvaluationResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var res engine.EvaluationResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
		evals = append(evals, &res)
	}
	return evals, rows.Err()
}

// Append writes one audit entry. Entries are write-once; there is no
// update or delete path.
func (s *SQLiteStore) Append(ctx context.Context, e *audit.Entry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	query := `INSERT INTO audit_entries (id, subject_id, evaluation_id, action, actor_id, actor_type, reason, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.SubjectID, e.EvaluationID, e.Action, e.ActorID, string(e.ActorType),
		e.Reason, string(metadata), e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Close releases the underlying handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (*engine.Subject, error) {
	var sub engine.Subject
	var status, tier string
	var evaluatedAt sql.NullString
	var createdAt string
	err := row.Scan(&sub.ID, &sub.Name, &sub.Description, &status, &sub.CurrentScore,
		&tier, &sub.LastEvaluationID, &evaluatedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, engine.ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.Status = engine.Status(status)
	sub.CurrentTier = engine.Tier(tier)
	if evaluatedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, evaluatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse evaluated_at: %w", err)
		}
		sub.EvaluatedAt = &t
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	sub.CreatedAt = created
	return &sub, nil
}
