package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Gridflow/internal/domain"
)

// TransitionRepo — append-only журнал переходов состояний.
//
// Записи только добавляются; оркестратор их никогда не читает —
// журнал существует для аудита и наблюдаемости.
type TransitionRepo struct {
	pool *pgxpool.Pool
}

// NewTransitionRepo создаёт новый TransitionRepo.
func NewTransitionRepo(pool *pgxpool.Pool) *TransitionRepo {
	return &TransitionRepo{pool: pool}
}

// Append добавляет запись о переходе.
func (r *TransitionRepo) Append(ctx context.Context, t *domain.Transition) error {
	query := `
		INSERT INTO transitions (execution_id, from_state, to_state, at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, t.ExecutionID, t.From, t.To, t.At)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListByExecutionID возвращает переходы execution в хронологическом порядке.
func (r *TransitionRepo) ListByExecutionID(ctx context.Context, executionID uuid.UUID) ([]domain.Transition, error) {
	query := `
		SELECT execution_id, from_state, to_state, at
		FROM transitions
		WHERE execution_id = $1
		ORDER BY at ASC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []domain.Transition
	for rows.Next() {
		var t domain.Transition
		if err := rows.Scan(&t.ExecutionID, &t.From, &t.To, &t.At); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		transitions = append(transitions, t)
	}
	return transitions, rows.Err()
}
