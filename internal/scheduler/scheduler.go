package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/repo"
)

// ScheduleStore — хранилище schedules (реализуется repo.ScheduleRepo).
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, schedule *domain.Schedule) error
}

// ExecutionStore — хранилище executions (реализуется repo.ExecutionRepo).
type ExecutionStore interface {
	Create(ctx context.Context, exec *domain.Execution) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Execution, error)
}

// RunPublisher — публикация триггеров прогонов (реализуется mq.Publisher).
type RunPublisher interface {
	PublishRunStart(ctx context.Context, executionID uuid.UUID, triggerSource string) error
}

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules  ScheduleStore
	executions ExecutionStore
	publisher  RunPublisher
	logger     *slog.Logger
	batchSize  int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules  ScheduleStore
	Executions ExecutionStore

	// Publisher — опционален; без него прогоны подхватываются polling'ом.
	Publisher RunPublisher

	Logger *slog.Logger

	// BatchSize — количество schedules за один тик (default: 100).
	BatchSize int
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules:  cfg.Schedules,
		executions: cfg.Executions,
		publisher:  cfg.Publisher,
		logger:     logger,
		batchSize:  batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт execution
// 3. Обновляет next_due_at
// 4. Публикует runs.start в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		execCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		processed++
		if execCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"executions_created", created,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если execution был создан (не был дубликатом).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	// 1. Формируем idempotency key: "{schedule_id}_{next_due_at_unix}"
	// Это гарантирует, что для одного schedule и конкретного времени
	// будет создан только один execution
	idempKey := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	// 2. Проверяем, не создан ли уже execution (idempotency)
	existing, err := s.executions.GetByIdempotencyKey(ctx, idempKey)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return false, fmt.Errorf("check idempotency: %w", err)
	}

	var execCreated bool
	var execID uuid.UUID

	if existing != nil {
		s.logger.Debug("execution already exists (idempotency)",
			"schedule_id", sched.ID,
			"execution_id", existing.ID,
			"idempotency_key", idempKey,
		)
		execID = existing.ID
		execCreated = false
	} else {
		// 3. Создаём новый execution
		exec := domain.NewExecution("schedule")
		exec.IdempotencyKey = idempKey

		if err := s.executions.Create(ctx, exec); err != nil {
			return false, fmt.Errorf("create execution: %w", err)
		}

		s.logger.Info("created execution from schedule",
			"execution_id", exec.ID,
			"schedule_id", sched.ID,
			"schedule_name", sched.Name,
		)

		execID = exec.ID
		execCreated = true
	}

	// 4. Вычисляем следующее время запуска
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due, leaving schedule as is",
			"schedule_id", sched.ID,
			"error", err,
		)
		// Schedule некорректный — лучше не трогать next_due_at
		return execCreated, nil
	}

	// 5. Обновляем schedule
	sched.RecordRun(execID, nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return execCreated, fmt.Errorf("update schedule: %w", err)
	}

	// 6. Публикуем событие в RabbitMQ (если publisher настроен и execution создан)
	if s.publisher != nil && execCreated {
		if err := s.publisher.PublishRunStart(ctx, execID, "schedule"); err != nil {
			// Не фатальная ошибка — execution уже создан в БД,
			// polling оркестратора его подхватит
			s.logger.Warn("failed to publish run.start",
				"execution_id", execID,
				"error", err,
			)
		}
	}

	return execCreated, nil
}
