package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Mindburn-Labs/verdant/pkg/audit"
	"github.com/Mindburn-Labs/verdant/pkg/engine"
)

// PostgresStore is the Postgres-backed entity store, for deployments where
// the platform database is shared.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with a lib/pq DSN and migrates the schema.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresStore(db)
}

// NewPostgresStore wraps an existing handle and migrates the schema.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending_review',
		current_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		current_tier TEXT NOT NULL DEFAULT '',
		last_evaluation_id TEXT NOT NULL DEFAULT '',
		evaluated_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		mode TEXT,
		status TEXT,
		digest TEXT,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
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
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) GetSubject(ctx context.Context, id string) (*engine.Subject, error) {
	query := `SELECT id, name, description, status, current_score, current_tier, last_evaluation_id, evaluated_at, created_at
	FROM subjects WHERE id = $1`
	var sub engine.Subject
	var status, tier string
	var evaluatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.Name, &sub.Description, &status, &sub.CurrentScore,
		&tier, &sub.LastEvaluationID, &evaluatedAt, &sub.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, engine.ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.Status = engine.Status(status)
	sub.CurrentTier = engine.Tier(tier)
	if evaluatedAt.Valid {
		t := evaluatedAt.Time
		sub.EvaluatedAt = &t
	}
	return &sub, nil
}

func (s *PostgresStore) UpdateSubject(ctx context.Context, id string, u engine.SubjectUpdate) error {
	query := `UPDATE subjects
	SET status = $1, current_score = $2, current_tier = $3, last_evaluation_id = $4, evaluated_at = $5
	WHERE id = $6`
	res, err := s.db.ExecContext(ctx, query,
		string(u.Status), u.CurrentScore, string(u.CurrentTier), u.LastEvaluationID, u.EvaluatedAt, id,
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

func (s *PostgresStore) ListUnevaluated(ctx context.Context, limit int) ([]*engine.Subject, error) {
	query := `SELECT id, name, description, status, current_score, current_tier, last_evaluation_id, evaluated_at, created_at
	FROM subjects WHERE evaluated_at IS NULL ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subjects []*engine.Subject
	for rows.Next() {
		var sub engine.Subject
		var status, tier string
		var evaluatedAt sql.NullTime
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Description, &status, &sub.CurrentScore,
			&tier, &sub.LastEvaluationID, &evaluatedAt, &sub.CreatedAt); err != nil {
			return nil, err
		}
		sub.Status = engine.Status(status)
		sub.CurrentTier = engine.Tier(tier)
		if evaluatedAt.Valid {
			t := evaluatedAt.Time
			sub.EvaluatedAt = &t
		}
		subjects = append(subjects, &sub)
	}
	return subjects, rows.Err()
}

func (s *PostgresStore) CreateEvaluation(ctx context.Context, res *engine.EvaluationResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	query := `INSERT INTO evaluations (id, subject_id, mode, status, digest, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING`
	_, err = s.db.ExecContext(ctx, query,
		res.ID, res.SubjectID, res.Mode, string(res.Status), res.Digest, string(payload), res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestEvaluation(ctx context.Context, subjectID string) (*engine.EvaluationResult, error) {
	evals, err := s.ListEvaluations(ctx, subjectID, 1)
	if err != nil {
		return nil, err
	}
	if len(evals) == 0 {
		return nil, nil
	}
	return evals[0], nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, subjectID string, limit int) ([]*engine.EvaluationResult, error) {
	query := `SELECT payload FROM evaluations WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2`
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

func (s *PostgresStore) Append(ctx context.Context, e *audit.Entry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	query := `INSERT INTO audit_entries (id, subject_id, evaluation_id, action, actor_id, actor_type, reason, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.SubjectID, e.EvaluationID, e.Action, e.ActorID, string(e.ActorType),
		e.Reason, string(metadata), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
