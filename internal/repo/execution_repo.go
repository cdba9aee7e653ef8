package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Gridflow/internal/domain"
)

// ExecutionRepo — репозиторий для работы с executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// Create создаёт новый execution.
func (r *ExecutionRepo) Create(ctx context.Context, exec *domain.Execution) error {
	query := `
		INSERT INTO executions (id, status, state, entered_at, results_ready,
		                        trigger_source, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		exec.ID,
		exec.Status,
		exec.State,
		exec.EnteredAt,
		exec.ResultsReady,
		nullString(exec.TriggerSource),
		nullString(exec.IdempotencyKey),
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `
		SELECT id, status, state, entered_at, results_ready, items, outcomes,
		       failure, trigger_source, idempotency_key, started_at, finished_at, created_at
		FROM executions
		WHERE id = $1
	`
	return scanExecutionRow(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает execution по ключу идемпотентности.
func (r *ExecutionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Execution, error) {
	query := `
		SELECT id, status, state, entered_at, results_ready, items, outcomes,
		       failure, trigger_source, idempotency_key, started_at, finished_at, created_at
		FROM executions
		WHERE idempotency_key = $1
	`
	return scanExecutionRow(r.pool.QueryRow(ctx, query, key))
}

// List возвращает список executions с фильтрацией.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	query := `
		SELECT id, status, state, entered_at, results_ready, items, outcomes,
		       failure, trigger_source, idempotency_key, started_at, finished_at, created_at
		FROM executions
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// Update обновляет execution.
func (r *ExecutionRepo) Update(ctx context.Context, exec *domain.Execution) error {
	itemsJSON, err := json.Marshal(exec.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	outcomesJSON, err := json.Marshal(exec.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	var failureJSON []byte
	if exec.Failure != nil {
		failureJSON, err = json.Marshal(exec.Failure)
		if err != nil {
			return fmt.Errorf("marshal failure: %w", err)
		}
	}

	query := `
		UPDATE executions
		SET status = $2, state = $3, entered_at = $4, results_ready = $5,
		    items = $6, outcomes = $7, failure = $8, started_at = $9, finished_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		exec.ID,
		exec.Status,
		exec.State,
		exec.EnteredAt,
		exec.ResultsReady,
		itemsJSON,
		outcomesJSON,
		failureJSON,
		exec.StartedAt,
		exec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает executions в статусе PENDING.
func (r *ExecutionRepo) ListPending(ctx context.Context, limit int) ([]domain.Execution, error) {
	query := `
		SELECT id, status, state, entered_at, results_ready, items, outcomes,
		       failure, trigger_source, idempotency_key, started_at, finished_at, created_at
		FROM executions
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// --- Helpers ---

// ExecutionFilter — параметры фильтрации executions.
type ExecutionFilter struct {
	Status domain.ExecutionStatus
	Limit  int
	Offset int
}

// scanExecutionRow сканирует одну строку в Execution.
func scanExecutionRow(row pgx.Row) (*domain.Execution, error) {
	exec, err := scanExecutionFields(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return exec, err
}

// scanExecution сканирует строку из rows в Execution.
func scanExecution(rows pgx.Rows) (*domain.Execution, error) {
	return scanExecutionFields(rows.Scan)
}

// scanExecutionFields — общая логика сканирования полей execution.
func scanExecutionFields(scan func(dest ...any) error) (*domain.Execution, error) {
	var exec domain.Execution
	var itemsJSON, outcomesJSON, failureJSON []byte
	var triggerSource, idempotencyKey *string

	err := scan(
		&exec.ID,
		&exec.Status,
		&exec.State,
		&exec.EnteredAt,
		&exec.ResultsReady,
		&itemsJSON,
		&outcomesJSON,
		&failureJSON,
		&triggerSource,
		&idempotencyKey,
		&exec.StartedAt,
		&exec.FinishedAt,
		&exec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if itemsJSON != nil {
		if err := json.Unmarshal(itemsJSON, &exec.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if outcomesJSON != nil {
		if err := json.Unmarshal(outcomesJSON, &exec.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes: %w", err)
		}
	}
	if failureJSON != nil {
		if err := json.Unmarshal(failureJSON, &exec.Failure); err != nil {
			return nil, fmt.Errorf("unmarshal failure: %w", err)
		}
	}
	if triggerSource != nil {
		exec.TriggerSource = *triggerSource
	}
	if idempotencyKey != nil {
		exec.IdempotencyKey = *idempotencyKey
	}

	return &exec, nil
}
