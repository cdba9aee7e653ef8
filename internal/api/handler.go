package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/auth"
	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/repo"
)

// OrderStore — хранилище ingested заказов (реализуется repo.OrderRepo).
type OrderStore interface {
	CreateBatch(ctx context.Context, orders []domain.Order, retention time.Duration) error
	ListActive(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
}

// ExecutionStore — хранилище executions (реализуется repo.ExecutionRepo).
type ExecutionStore interface {
	Create(ctx context.Context, exec *domain.Execution) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Execution, error)
	List(ctx context.Context, filter repo.ExecutionFilter) ([]domain.Execution, error)
}

// TransitionStore — журнал переходов (реализуется repo.TransitionRepo).
type TransitionStore interface {
	ListByExecutionID(ctx context.Context, executionID uuid.UUID) ([]domain.Transition, error)
}

// ScheduleStore — хранилище schedules (реализуется repo.ScheduleRepo).
type ScheduleStore interface {
	Create(ctx context.Context, schedule *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunPublisher — публикация триггеров прогонов (реализуется mq.Publisher).
type RunPublisher interface {
	PublishRunStart(ctx context.Context, executionID uuid.UUID, triggerSource string) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orders      OrderStore
	executions  ExecutionStore
	transitions TransitionStore
	schedules   ScheduleStore
	publisher   RunPublisher
	verifier    *auth.Verifier
	validate    *validator.Validate
	retention   time.Duration
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Orders      OrderStore
	Executions  ExecutionStore
	Transitions TransitionStore
	Schedules   ScheduleStore
	Publisher   RunPublisher

	// Verifier — проверка bearer токенов. nil выключает авторизацию.
	Verifier *auth.Verifier

	// Retention — горизонт хранения заказов (default: repo.DefaultRetention).
	Retention time.Duration

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	retention := cfg.Retention
	if retention <= 0 {
		retention = repo.DefaultRetention
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		orders:      cfg.Orders,
		executions:  cfg.Executions,
		transitions: cfg.Transitions,
		schedules:   cfg.Schedules,
		publisher:   cfg.Publisher,
		verifier:    cfg.Verifier,
		validate:    validator.New(),
		retention:   retention,
		logger:      logger,
	}
}
