package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
)

// ErrJobNotFound is returned when no ingestion job matches the id.
var ErrJobNotFound = errors.New("ingest job not found")

// JobsRepository persists ingestion job state.
type JobsRepository interface {
	Create(ctx context.Context, job *entity.IngestJob) error
	Update(ctx context.Context, job *entity.IngestJob) error
	Get(ctx context.Context, id uuid.UUID) (*entity.IngestJob, error)
	ListRecent(ctx context.Context, limit int) ([]entity.IngestJob, error)
	FailInterrupted(ctx context.Context, reason string) (int64, error)
}

// PGXJobsRepository implements JobsRepository using pgx.
type PGXJobsRepository struct {
	pool pgxPool
}

// NewPGXJobsRepository wires a pgx backed repository.
func NewPGXJobsRepository(pool *pgxpool.Pool) *PGXJobsRepository {
	return &PGXJobsRepository{pool: pool}
}

const jobColumns = `id, batch_number, strategy, concurrency, state, total, processed, successful,
            logos, photos, errors, failure, created_at, started_at, finished_at`

// Create inserts a job row.
func (r *PGXJobsRepository) Create(ctx context.Context, job *entity.IngestJob) error {
	if job == nil {
		return fmt.Errorf("job payload is nil")
	}
	err := r.pool.QueryRow(ctx, `
        INSERT INTO ingest_jobs (id, batch_number, strategy, concurrency, state, errors)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at
    `, job.ID, job.BatchNumber, job.Strategy, job.Concurrency, job.State, stringSliceOrEmpty(job.Errors)).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ingest job: %w", err)
	}
	return nil
}

// Update persists progress, state and timestamps of a job.
func (r *PGXJobsRepository) Update(ctx context.Context, job *entity.IngestJob) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE ingest_jobs SET
            state = $2,
            total = $3,
            processed = $4,
            successful = $5,
            logos = $6,
            photos = $7,
            errors = $8,
            failure = $9,
            started_at = $10,
            finished_at = $11
        WHERE id = $1
    `,
		job.ID,
		job.State,
		job.Total,
		job.Processed,
		job.Successful,
		job.Logos,
		job.Photos,
		stringSliceOrEmpty(job.Errors),
		ptrOrNil(job.Failure),
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update ingest job: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Get fetches a job by id.
func (r *PGXJobsRepository) Get(ctx context.Context, id uuid.UUID) (*entity.IngestJob, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, "SELECT "+jobColumns+" FROM ingest_jobs WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get ingest job: %w", err)
	}
	return job, nil
}

// ListRecent returns the newest jobs first.
func (r *PGXJobsRepository) ListRecent(ctx context.Context, limit int) ([]entity.IngestJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, "SELECT "+jobColumns+" FROM ingest_jobs ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list ingest jobs: %w", err)
	}
	defer rows.Close()

	jobs := []entity.IngestJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ingest job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest jobs: %w", err)
	}
	return jobs, nil
}

// FailInterrupted marks jobs left queued or running by a previous process as failed.
func (r *PGXJobsRepository) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE ingest_jobs SET state = $1, failure = $2, finished_at = NOW()
        WHERE state IN ($3, $4)
    `, entity.JobFailed, reason, entity.JobQueued, entity.JobRunning)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted ingest jobs: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*entity.IngestJob, error) {
	var (
		job        entity.IngestJob
		errs       []string
		failure    sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&job.ID,
		&job.BatchNumber,
		&job.Strategy,
		&job.Concurrency,
		&job.State,
		&job.Total,
		&job.Processed,
		&job.Successful,
		&job.Logos,
		&job.Photos,
		&errs,
		&failure,
		&job.CreatedAt,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Errors = stringSliceOrEmpty(errs)
	job.Failure = nullStringToPtr(failure)
	if startedAt.Valid {
		ts := startedAt.Time
		job.StartedAt = &ts
	}
	if finishedAt.Valid {
		ts := finishedAt.Time
		job.FinishedAt = &ts
	}
	return &job, nil
}
