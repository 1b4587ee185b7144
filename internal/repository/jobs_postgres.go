package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/maklermatch/outreach/internal/domain"
)

// PostgresJobStore persists scheduled jobs in a jobs table so that pending
// sends survive a restart. Execution timing is recomputed by the poll loop,
// only the job rows are durable.
type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJobStore(ctx context.Context, databaseURL string) (*PostgresJobStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	store := &PostgresJobStore{pool: pool}
	if err := store.initTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresJobStore) Close() {
	s.pool.Close()
}

func (s *PostgresJobStore) initTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scheduled_jobs (
			id                 TEXT PRIMARY KEY,
			conversation_id    TEXT NOT NULL,
			trigger_message_id TEXT NOT NULL,
			status             TEXT NOT NULL,
			base_delay_ms      BIGINT NOT NULL,
			adjusted_delay_ms  BIGINT NOT NULL,
			time_period        TEXT NOT NULL,
			interruption_count INT NOT NULL DEFAULT 0,
			generated_message  TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL,
			execute_after      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_conversation
			ON scheduled_jobs (conversation_id);
		CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_due
			ON scheduled_jobs (status, execute_after);
	`)
	if err != nil {
		return fmt.Errorf("init scheduled_jobs table: %w", err)
	}
	return nil
}

const jobColumns = `id, conversation_id, trigger_message_id, status, base_delay_ms,
	adjusted_delay_ms, time_period, interruption_count, generated_message,
	created_at, execute_after`

func (s *PostgresJobStore) Create(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	clone := *job
	clone.ID = uuid.NewString()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (`+jobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		clone.ID,
		clone.ConversationID,
		clone.TriggerMessageID,
		string(clone.Status),
		clone.BaseDelay.Milliseconds(),
		clone.AdjustedDelay.Milliseconds(),
		string(clone.TimePeriod),
		clone.InterruptionCount,
		clone.GeneratedMessage,
		clone.CreatedAt,
		clone.ExecuteAfter,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &clone, nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM scheduled_jobs
		WHERE id = $1
	`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

func (s *PostgresJobStore) GetActiveForConversation(ctx context.Context, conversationID string) (*domain.ScheduledJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM scheduled_jobs
		WHERE conversation_id = $1
		  AND status IN ('waiting','generating','sending')
		ORDER BY created_at DESC
		LIMIT 1
	`, conversationID)
	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query active job: %w", err)
	}
	return job, nil
}

func (s *PostgresJobStore) Update(ctx context.Context, id string, update domain.JobUpdate) error {
	if update.Status == nil && update.GeneratedMessage == nil {
		return nil
	}

	query := "UPDATE scheduled_jobs SET "
	args := make([]any, 0, 3)
	argIndex := 1

	if update.Status != nil {
		query += fmt.Sprintf("status = $%d", argIndex)
		args = append(args, string(*update.Status))
		argIndex++
	}
	if update.GeneratedMessage != nil {
		if len(args) > 0 {
			query += ", "
		}
		query += fmt.Sprintf("generated_message = $%d", argIndex)
		args = append(args, *update.GeneratedMessage)
		argIndex++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argIndex)
	args = append(args, id)

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) GetDueJobs(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM scheduled_jobs
		WHERE status = 'waiting' AND execute_after <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query due jobs: %w", err)
	}
	defer rows.Close()

	var due []*domain.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due job: %w", err)
		}
		due = append(due, job)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate due jobs: %w", rows.Err())
	}
	return due, nil
}

func (s *PostgresJobStore) CancelForConversation(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scheduled_jobs
		SET status = 'cancelled'
		WHERE conversation_id = $1
		  AND status IN ('waiting','generating','sending')
	`, conversationID)
	if err != nil {
		return fmt.Errorf("cancel jobs: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) PruneTerminal(ctx context.Context, olderThan time.Time) (int, error) {
	command, err := s.pool.Exec(ctx, `
		DELETE FROM scheduled_jobs
		WHERE status IN ('completed','cancelled','skipped')
		  AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return int(command.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.ScheduledJob, error) {
	var (
		job          domain.ScheduledJob
		status       string
		baseMS       int64
		adjustedMS   int64
		period       string
		createdAt    time.Time
		executeAfter time.Time
	)
	err := row.Scan(
		&job.ID,
		&job.ConversationID,
		&job.TriggerMessageID,
		&status,
		&baseMS,
		&adjustedMS,
		&period,
		&job.InterruptionCount,
		&job.GeneratedMessage,
		&createdAt,
		&executeAfter,
	)
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	job.BaseDelay = time.Duration(baseMS) * time.Millisecond
	job.AdjustedDelay = time.Duration(adjustedMS) * time.Millisecond
	job.TimePeriod = domain.TimePeriod(period)
	job.CreatedAt = createdAt
	job.ExecuteAfter = executeAfter
	return &job, nil
}
