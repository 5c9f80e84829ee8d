package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/model"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

const jobColumns = `id, subject_id, subject_type, user_id, status, progress, current_step, settings,
    correlation_id, error_message, result_ref, created_at, updated_at, started_at, completed_at`

const terminalStatuses = `('COMPLETED', 'FAILED', 'CANCELLED')`

// NewPostgresPool opens a pgx pool using the configured limits.
func NewPostgresPool(ctx context.Context, cfg *config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

// PostgresStore persists jobs in the translation_jobs table. A partial unique
// index keeps at most one non-terminal job per subject.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// EnsureSchema creates the table and indexes when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateJob(ctx context.Context, spec model.JobSpec) (*model.TranslationJob, error) {
	job, err := model.NewJob(spec, s.now().UTC())
	if err != nil {
		return nil, err
	}
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	query := `
INSERT INTO translation_jobs (id, subject_id, subject_type, user_id, status, progress, current_step, settings, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err = s.pool.Exec(ctx, query,
		job.ID,
		job.SubjectID,
		string(job.SubjectType),
		job.UserID,
		string(job.Status),
		job.Progress,
		job.CurrentStep,
		settings,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, model.ErrActiveJobExists
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.TranslationJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM translation_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PostgresStore) UpdateJob(ctx context.Context, id string, patch model.JobPatch) (*model.TranslationJob, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM translation_jobs WHERE id = $1 FOR UPDATE`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}

	if !job.Apply(patch, s.now().UTC()) {
		return job, nil
	}

	query := `
UPDATE translation_jobs
SET status = $2,
    progress = $3,
    current_step = $4,
    correlation_id = $5,
    error_message = $6,
    result_ref = $7,
    updated_at = $8,
    started_at = $9,
    completed_at = $10
WHERE id = $1;
`
	_, err = tx.Exec(ctx, query,
		job.ID,
		string(job.Status),
		job.Progress,
		job.CurrentStep,
		job.CorrelationID,
		job.ErrorMessage,
		job.ResultRef,
		job.UpdatedAt,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) ListActiveJobsForSubject(ctx context.Context, subjectID string) ([]*model.TranslationJob, error) {
	return s.query(ctx,
		`SELECT `+jobColumns+` FROM translation_jobs
WHERE subject_id = $1 AND status NOT IN `+terminalStatuses+`
ORDER BY created_at`,
		subjectID)
}

func (s *PostgresStore) ListStaleJobs(ctx context.Context, before time.Time) ([]*model.TranslationJob, error) {
	return s.query(ctx,
		`SELECT `+jobColumns+` FROM translation_jobs
WHERE updated_at < $1 AND status NOT IN `+terminalStatuses+`
ORDER BY updated_at`,
		before)
}

func (s *PostgresStore) DeleteTerminalBefore(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM translation_jobs WHERE updated_at < $1 AND status IN `+terminalStatuses,
		before)
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]*model.TranslationJob, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.TranslationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*model.TranslationJob, error) {
	var (
		job                 model.TranslationJob
		subjectType, status string
		settings            []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.SubjectID,
		&subjectType,
		&job.UserID,
		&status,
		&job.Progress,
		&job.CurrentStep,
		&settings,
		&job.CorrelationID,
		&job.ErrorMessage,
		&job.ResultRef,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	job.SubjectType = model.SubjectType(subjectType)
	job.Status = model.JobStatus(status)
	if err := json.Unmarshal(settings, &job.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings for job %s: %w", job.ID, err)
	}
	return &job, nil
}
