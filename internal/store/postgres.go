package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/feedback"
)

const schema = `CREATE TABLE IF NOT EXISTS analyses (
	id              UUID PRIMARY KEY,
	created_at      TIMESTAMPTZ NOT NULL,
	job_title       TEXT NOT NULL DEFAULT '',
	job_description TEXT NOT NULL,
	resume_source   TEXT NOT NULL DEFAULT '',
	match_score     DOUBLE PRECISION NOT NULL,
	result          JSONB NOT NULL,
	feedback        JSONB
)`

const upsertQuery = `INSERT INTO analyses
	(id, created_at, job_title, job_description, resume_source, match_score, result, feedback)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	match_score = EXCLUDED.match_score,
	result = EXCLUDED.result,
	feedback = EXCLUDED.feedback`

const selectColumns = `SELECT id, created_at, job_title, job_description, resume_source, result, feedback FROM analyses`

// PostgresStore keeps records in PostgreSQL with the result and feedback as
// JSONB documents.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and makes sure the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create analyses table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	if r == nil || r.Result == nil {
		return errors.New("record and its result are required")
	}

	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	var fb any
	if r.Feedback != nil {
		raw, err := json.Marshal(r.Feedback)
		if err != nil {
			return fmt.Errorf("marshal feedback: %w", err)
		}
		fb = raw
	}

	_, err = s.db.ExecContext(ctx, upsertQuery,
		r.ID, r.CreatedAt, r.JobTitle, r.JobDescription, r.ResumeSource,
		r.Result.MatchScore, result, fb,
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Record, error) {
	query := selectColumns + ` ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r          Record
		result, fb []byte
	)
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.JobTitle, &r.JobDescription, &r.ResumeSource, &result, &fb); err != nil {
		return nil, err
	}

	r.Result = &compat.Result{}
	if err := json.Unmarshal(result, r.Result); err != nil {
		return nil, fmt.Errorf("decode result of %s: %w", r.ID, err)
	}
	if len(fb) > 0 {
		r.Feedback = &feedback.Feedback{}
		if err := json.Unmarshal(fb, r.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback of %s: %w", r.ID, err)
		}
	}
	return &r, nil
}
