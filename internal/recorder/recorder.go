package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
)

// Recorder — журнал переходов состояний execution'а.
//
// Журнал append-only: оркестратор пишет каждый переход и никогда
// не читает журнал обратно. Сбой записи не должен блокировать
// переход — оркестратор логирует ошибку и продолжает.
type Recorder interface {
	Record(ctx context.Context, executionID uuid.UUID, from, to domain.State, at time.Time) error
}

// Memory — потокобезопасный in-memory Recorder для тестов и CLI.
type Memory struct {
	mu          sync.Mutex
	transitions []domain.Transition
}

// NewMemory создаёт пустой in-memory Recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// Record добавляет переход в журнал.
func (m *Memory) Record(ctx context.Context, executionID uuid.UUID, from, to domain.State, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, domain.Transition{
		ExecutionID: executionID,
		From:        from,
		To:          to,
		At:          at,
	})
	return nil
}

// Transitions возвращает копию журнала.
func (m *Memory) Transitions() []domain.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}
