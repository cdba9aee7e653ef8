package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/telemetry"
)

// Значения Invoker'а по умолчанию.
const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Task — один вызов шага пайплайна.
type Task func(ctx context.Context) (map[string]any, error)

// Invoker выполняет задачу с ограниченным числом повторов.
//
// Повторяются только TRANSIENT_INFRA ошибки; доменные отказы и ошибки
// контекста поднимаются сразу. Invoker не хранит состояние между
// вызовами — один экземпляр можно разделять между прогонами.
type Invoker struct {
	maxAttempts int
	retryDelay  time.Duration
	waiter      Waiter
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// InvokerConfig — конфигурация Invoker'а.
type InvokerConfig struct {
	// MaxAttempts — максимум попыток, включая первую (default: 3).
	MaxAttempts int

	// RetryDelay — фиксированная пауза между попытками (default: 2s).
	RetryDelay time.Duration

	// Waiter — реализация ожидания (default: SleepWaiter).
	Waiter Waiter

	// Metrics — счётчики телеметрии.
	Metrics *telemetry.Metrics

	// Logger — логгер.
	Logger *slog.Logger
}

// NewInvoker создаёт новый Invoker.
func NewInvoker(cfg InvokerConfig) *Invoker {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	waiter := cfg.Waiter
	if waiter == nil {
		waiter = SleepWaiter{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Invoker{
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		waiter:      waiter,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Invoke выполняет задачу и возвращает её исход.
//
// Неудачная попытка с TRANSIENT_INFRA ошибкой повторяется после
// фиксированной паузы, пока не исчерпаны MaxAttempts. Любая другая
// ошибка (или отмена контекста во время паузы) завершает вызов сразу.
func (i *Invoker) Invoke(ctx context.Context, task Task) domain.Outcome {
	var lastErr error

	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		data, err := task(ctx)
		if err == nil {
			return domain.SucceededOutcome(data)
		}
		lastErr = err

		if !domain.IsRetryable(err) {
			return domain.FailedOutcome(err)
		}
		if attempt == i.maxAttempts {
			break
		}

		i.logger.Debug("transient failure, retrying",
			"attempt", attempt,
			"max_attempts", i.maxAttempts,
			"error", err,
		)
		if i.metrics != nil {
			i.metrics.InvokerRetries.Inc()
		}

		if err := i.waiter.Wait(ctx, i.retryDelay); err != nil {
			return domain.FailedOutcome(err)
		}
	}

	return domain.FailedOutcome(lastErr)
}
