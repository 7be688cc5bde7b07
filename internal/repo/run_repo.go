package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/bazaar/internal/domain"
)

// RunRepo — репозиторий для работы с workflow_runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create сохраняет завершённый run вместе с журналом узлов.
func (r *RunRepo) Create(ctx context.Context, run *domain.WorkflowRun) error {
	logJSON, err := json.Marshal(run.Log)
	if err != nil {
		return fmt.Errorf("marshal run log: %w", err)
	}

	query := `
		INSERT INTO workflow_runs (id, workflow_id, status, log, total_cost_usd,
		                           error, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.WorkflowID,
		run.Status,
		logJSON,
		run.TotalCostUSD,
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowRun, error) {
	query := `
		SELECT id, workflow_id, status, log, total_cost_usd,
		       error, started_at, finished_at, created_at
		FROM workflow_runs
		WHERE id = $1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает runs с фильтрацией по workflow.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.WorkflowRun, error) {
	query := `
		SELECT id, workflow_id, status, log, total_cost_usd,
		       error, started_at, finished_at, created_at
		FROM workflow_runs
		WHERE ($1::uuid IS NULL OR workflow_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.WorkflowID),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.WorkflowRun
	for rows.Next() {
		run, err := r.scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	WorkflowID *uuid.UUID
	Limit      int
	Offset     int
}

// scanRun сканирует одну строку в WorkflowRun.
func (r *RunRepo) scanRun(row pgx.Row) (*domain.WorkflowRun, error) {
	run, err := scanRunFrom(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// scanRunFromRows сканирует строку из rows в WorkflowRun.
func (r *RunRepo) scanRunFromRows(rows pgx.Rows) (*domain.WorkflowRun, error) {
	return scanRunFrom(rows.Scan)
}

func scanRunFrom(scan func(dest ...any) error) (*domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	var logJSON []byte
	var runError *string

	err := scan(
		&run.ID,
		&run.WorkflowID,
		&run.Status,
		&logJSON,
		&run.TotalCostUSD,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan workflow run: %w", err)
	}

	if logJSON != nil {
		if err := json.Unmarshal(logJSON, &run.Log); err != nil {
			return nil, fmt.Errorf("unmarshal run log: %w", err)
		}
	}
	if runError != nil {
		run.Error = *runError
	}

	return &run, nil
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
