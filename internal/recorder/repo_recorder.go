package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/repo"
)

// Repo — Recorder поверх Postgres (repo.TransitionRepo). Используется
// сервисами для аудита переходов.
type Repo struct {
	transitions *repo.TransitionRepo
}

// NewRepo создаёт Recorder поверх репозитория переходов.
func NewRepo(transitions *repo.TransitionRepo) *Repo {
	return &Repo{transitions: transitions}
}

// Record сохраняет переход в БД.
func (r *Repo) Record(ctx context.Context, executionID uuid.UUID, from, to domain.State, at time.Time) error {
	return r.transitions.Append(ctx, &domain.Transition{
		ExecutionID: executionID,
		From:        from,
		To:          to,
		At:          at,
	})
}
