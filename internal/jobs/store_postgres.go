package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable Store used in production. Job records must
// survive process restarts; everything else in this subsystem may be
// process-local, but not these.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id               UUID PRIMARY KEY,
	status           TEXT NOT NULL,
	progress         INT NOT NULL,
	current_stage    TEXT NOT NULL,
	message          TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	book_name        TEXT NOT NULL DEFAULT '',
	artifact_path    TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT '',
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
	params           JSONB NOT NULL,
	logs             JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS jobs_created_at_idx ON jobs (created_at DESC);
`

// NewPostgresStore connects to Postgres and ensures the jobs table exists.
// The initial ping is retried briefly so the server can come up alongside
// the database.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	err = retry.Do(
		func() error { return pool.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(1*time.Second),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("database not reachable: %w", err)
	}

	if _, err := pool.Exec(ctx, jobsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure jobs schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	logsJSON, err := json.Marshal(rec.Logs)
	if err != nil {
		return fmt.Errorf("failed to marshal logs: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, status, progress, current_stage, message, created_at, updated_at,
			book_name, artifact_path, error, cancel_requested, params, logs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, string(rec.Status), rec.Progress, rec.CurrentStage, rec.Message,
		rec.CreatedAt, rec.UpdatedAt, rec.BookName, rec.ArtifactPath, rec.Error,
		rec.CancelRequested, paramsJSON, logsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx, selectJob+` WHERE id = $1`, id)
	return scanRecord(row)
}

func (s *PostgresStore) Update(ctx context.Context, id string, mutate func(*Record) error) (*Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent updates to the same job.
	row := tx.QueryRow(ctx, selectJob+` WHERE id = $1 FOR UPDATE`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}

	if err := mutate(rec); err != nil {
		return nil, err
	}

	logsJSON, err := json.Marshal(rec.Logs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal logs: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs SET status = $2, progress = $3, current_stage = $4, message = $5,
			updated_at = $6, book_name = $7, artifact_path = $8, error = $9,
			cancel_requested = $10, logs = $11
		WHERE id = $1`,
		rec.ID, string(rec.Status), rec.Progress, rec.CurrentStage, rec.Message,
		rec.UpdatedAt, rec.BookName, rec.ArtifactPath, rec.Error,
		rec.CancelRequested, logsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return rec.Clone(), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, selectJob+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const selectJob = `
	SELECT id, status, progress, current_stage, message, created_at, updated_at,
		book_name, artifact_path, error, cancel_requested, params, logs
	FROM jobs`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec        Record
		status     string
		paramsJSON []byte
		logsJSON   []byte
	)
	err := row.Scan(&rec.ID, &status, &rec.Progress, &rec.CurrentStage, &rec.Message,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.BookName, &rec.ArtifactPath, &rec.Error,
		&rec.CancelRequested, &paramsJSON, &logsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	rec.Status = Stage(status)
	if err := json.Unmarshal(paramsJSON, &rec.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	if err := json.Unmarshal(logsJSON, &rec.Logs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal logs: %w", err)
	}
	if rec.Logs == nil {
		rec.Logs = []LogEntry{}
	}
	return &rec, nil
}
