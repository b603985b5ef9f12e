package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Provisor/internal/domain"
)

// HistoryRepo — репозиторий истории запусков apply.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// ApplyRecord — запись об одном запуске apply.
type ApplyRecord struct {
	RunID      uuid.UUID `json:"run_id"`
	ProjectID  string    `json:"project_id"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// JobRecord — запись об одном job'е в рамках запуска apply.
type JobRecord struct {
	RunID   uuid.UUID `json:"run_id"`
	JobKey  string    `json:"job_key"`
	JobName string    `json:"job_name"`
	JobID   string    `json:"job_id"`
	Action  string    `json:"action"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error"`
}

// EnsureSchema создаёт таблицы ledger'а, если их ещё нет.
//
// У provisor'а нет отдельного шага миграций: ledger — побочная
// история, схема создаётся при первом подключении.
func (r *HistoryRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS apply_runs (
			run_id      UUID PRIMARY KEY,
			project_id  TEXT NOT NULL,
			created     INT NOT NULL,
			updated     INT NOT NULL,
			deleted     INT NOT NULL,
			failed      INT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS apply_jobs (
			run_id   UUID NOT NULL REFERENCES apply_runs(run_id),
			job_key  TEXT NOT NULL,
			job_name TEXT NOT NULL,
			job_id   TEXT NOT NULL,
			action   TEXT NOT NULL,
			outcome  TEXT NOT NULL,
			error    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS apply_jobs_run_id_idx ON apply_jobs(run_id);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// RecordApply сохраняет результат запуска apply одной транзакцией.
func (r *HistoryRepo) RecordApply(ctx context.Context, result *domain.ApplyResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var created, updated, deleted, failed int
	for _, j := range result.Jobs {
		switch {
		case j.Outcome != domain.OutcomeApplied:
			failed++
		case j.Action == domain.ActionCreate:
			created++
		case j.Action == domain.ActionUpdate:
			updated++
		case j.Action == domain.ActionPrune:
			deleted++
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO apply_runs (run_id, project_id, created, updated, deleted, failed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, result.RunID, result.ProjectID, created, updated, deleted, failed,
		result.StartedAt, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert apply run: %w", err)
	}

	for _, j := range result.Jobs {
		_, err = tx.Exec(ctx, `
			INSERT INTO apply_jobs (run_id, job_key, job_name, job_id, action, outcome, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, result.RunID, j.Key, j.Name, j.JobID, string(j.Action), string(j.Outcome), j.Error)
		if err != nil {
			return fmt.Errorf("insert apply job %s: %w", j.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListApplies возвращает последние запуски apply для проекта.
func (r *HistoryRepo) ListApplies(ctx context.Context, projectID string, limit int) ([]ApplyRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, project_id, created, updated, deleted, failed, started_at, finished_at
		FROM apply_runs
		WHERE project_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list applies: %w", err)
	}
	defer rows.Close()

	var records []ApplyRecord
	for rows.Next() {
		var rec ApplyRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.ProjectID,
			&rec.Created,
			&rec.Updated,
			&rec.Deleted,
			&rec.Failed,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan apply run: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetApplyJobs возвращает job'ы одного запуска apply.
func (r *HistoryRepo) GetApplyJobs(ctx context.Context, runID uuid.UUID) ([]JobRecord, error) {
	query := `
		SELECT run_id, job_key, job_name, job_id, action, outcome, error
		FROM apply_jobs
		WHERE run_id = $1
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get apply jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var rec JobRecord
		if err := rows.Scan(
			&rec.RunID,
			&rec.JobKey,
			&rec.JobName,
			&rec.JobID,
			&rec.Action,
			&rec.Outcome,
			&rec.Error,
		); err != nil {
			return nil, fmt.Errorf("scan apply job: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetApply возвращает один запуск apply по ID.
func (r *HistoryRepo) GetApply(ctx context.Context, runID uuid.UUID) (*ApplyRecord, error) {
	query := `
		SELECT run_id, project_id, created, updated, deleted, failed, started_at, finished_at
		FROM apply_runs
		WHERE run_id = $1
	`
	var rec ApplyRecord
	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&rec.RunID,
		&rec.ProjectID,
		&rec.Created,
		&rec.Updated,
		&rec.Deleted,
		&rec.Failed,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get apply run: %w", err)
	}
	return &rec, nil
}
