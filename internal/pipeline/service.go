package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/mq"
	"github.com/shaiso/Gridflow/internal/repo"
)

// Значения сервиса по умолчанию.
const (
	defaultServicePollInterval = 10 * time.Second
	defaultBatchSize           = 100
)

// Service управляет выполнением прогонов пайплайна.
//
// Service:
//   - Получает новые executions из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending executions в БД (polling fallback)
//   - Выполняет каждый прогон в собственной горутине через Orchestrator
//   - Сохраняет терминальное состояние в БД
//
// Прогоны независимы: ошибка одного не влияет на остальные.
type Service struct {
	executions   *repo.ExecutionRepo
	orchestrator *Orchestrator

	conn     *mq.Connection
	consumer *mq.Consumer

	// Активные прогоны (executionID → true).
	active map[uuid.UUID]bool
	mu     sync.RWMutex

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ServiceConfig — конфигурация Service.
type ServiceConfig struct {
	// Executions — репозиторий executions.
	Executions *repo.ExecutionRepo

	// Orchestrator — исполнитель одного прогона.
	Orchestrator *Orchestrator

	// Conn — соединение с RabbitMQ.
	Conn *mq.Connection

	// PollInterval — интервал fallback-опроса БД (default: 10s).
	PollInterval time.Duration

	// BatchSize — количество executions за один опрос (default: 100).
	BatchSize int

	// Logger — логгер.
	Logger *slog.Logger
}

// NewService создаёт новый Service.
func NewService(cfg ServiceConfig) *Service {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultServicePollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		executions:   cfg.Executions,
		orchestrator: cfg.Orchestrator,
		conn:         cfg.Conn,
		active:       make(map[uuid.UUID]bool),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Service: consumer очереди runs.start и polling-горутину.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.logger.Info("starting pipeline service",
		"poll_interval", s.pollInterval,
		"batch_size", s.batchSize,
	)

	// Без RabbitMQ работаем в polling-only режиме
	if s.conn != nil {
		s.consumer = mq.NewConsumer(s.conn, s.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsStart),
			Handler:  s.handleRunStart,
			Prefetch: 10,
		})

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("run consumer error", "error", err)
			}
		}()
	} else {
		s.logger.Warn("no message queue connection, polling-only mode")
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollLoop(ctx)
	}()

	s.logger.Info("pipeline service started")
	return nil
}

// Stop останавливает Service и ждёт завершения активных прогонов.
func (s *Service) Stop() {
	s.logger.Info("stopping pipeline service...")

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.consumer != nil {
		s.consumer.Stop()
	}

	s.wg.Wait()

	s.logger.Info("pipeline service stopped", "active_runs", s.ActiveCount())
}

// handleRunStart обрабатывает событие run.start.
func (s *Service) handleRunStart(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunStartPayload](&delivery.Message)
	if err != nil {
		s.logger.Error("failed to parse run.start payload", "error", err)
		return err
	}

	s.logger.Debug("received run.start event", "execution_id", payload.ExecutionID)

	if err := s.startExecution(ctx, payload.ExecutionID); err != nil {
		if errors.Is(err, ErrExecutionAlreadyActive) || errors.Is(err, ErrExecutionNotPending) {
			s.logger.Debug("execution not started", "execution_id", payload.ExecutionID, "reason", err)
			return nil
		}
		s.logger.Error("failed to start execution", "execution_id", payload.ExecutionID, "error", err)
		return err
	}
	return nil
}

// pollLoop — fallback-опрос pending executions.
func (s *Service) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Первый опрос сразу: подхватываем executions, созданные пока сервис был выключен.
	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll выполняет один цикл опроса БД.
func (s *Service) poll(ctx context.Context) {
	execs, err := s.executions.ListPending(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list pending executions", "error", err)
		return
	}
	if len(execs) == 0 {
		return
	}

	s.logger.Debug("poll found pending executions", "count", len(execs))

	for i := range execs {
		if err := s.startExecution(ctx, execs[i].ID); err != nil {
			if errors.Is(err, ErrExecutionAlreadyActive) || errors.Is(err, ErrExecutionNotPending) {
				continue
			}
			s.logger.Error("failed to start execution from poll",
				"execution_id", execs[i].ID,
				"error", err,
			)
		}
	}
}

// startExecution загружает execution и запускает его прогон в горутине.
func (s *Service) startExecution(ctx context.Context, executionID uuid.UUID) error {
	exec, err := s.executions.GetByID(ctx, executionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
		}
		return fmt.Errorf("get execution: %w", err)
	}

	if exec.Status != domain.ExecutionStatusPending {
		return ErrExecutionNotPending
	}
	if !s.markActive(executionID) {
		return ErrExecutionAlreadyActive
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.markInactive(executionID)
		s.runExecution(ctx, exec)
	}()

	return nil
}

// runExecution выполняет прогон и сохраняет его состояние в БД.
func (s *Service) runExecution(ctx context.Context, exec *domain.Execution) {
	exec.MarkRunning()
	if err := s.executions.Update(ctx, exec); err != nil {
		s.logger.Error("failed to update execution to running",
			"execution_id", exec.ID,
			"error", err,
		)
	}

	// Статус RUNNING уже сохранён: Run получает execution в RUNNING
	// и прогоняет автомат до терминального состояния.
	result, err := s.orchestrator.Run(ctx, exec)
	if err != nil {
		s.logger.Error("execution run error", "execution_id", exec.ID, "error", err)
		return
	}

	if err := s.executions.Update(context.WithoutCancel(ctx), exec); err != nil {
		s.logger.Error("failed to persist finished execution",
			"execution_id", exec.ID,
			"error", err,
		)
	}

	s.logger.Info("execution finished",
		"execution_id", result.ExecutionID,
		"succeeded", result.Succeeded,
		"reason", result.Reason,
	)
}

// markActive помечает execution активным. Возвращает false, если он уже активен.
func (s *Service) markActive(executionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[executionID] {
		return false
	}
	s.active[executionID] = true
	return true
}

// markInactive убирает execution из активных.
func (s *Service) markInactive(executionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, executionID)
}

// ActiveCount возвращает количество активных прогонов.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}
