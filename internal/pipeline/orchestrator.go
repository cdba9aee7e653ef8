package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/recorder"
	"github.com/shaiso/Gridflow/internal/steps"
	"github.com/shaiso/Gridflow/internal/telemetry"
)

// Значения оркестратора по умолчанию.
const (
	defaultPollInterval = 30 * time.Second
	defaultRunTimeout   = 15 * time.Minute
)

// AlertSink — приёмник алертов о фатальных ошибках прогона
// (реализуется alert.Publisher).
type AlertSink interface {
	Publish(ctx context.Context, failure *domain.Failure) error
}

// Orchestrator выполняет один прогон пайплайна как явный конечный автомат.
//
// Цикл прогона:
//
//	FETCHING_RESULTS → опрос producer'а
//	  результаты не готовы → WAITING_TO_RETRY → пауза → FETCHING_RESULTS
//	  результаты готовы   → FANNING_OUT → обработка items
//	    все items успешны → SUCCEEDED
//	    иначе             → FAILED
//
// Весь прогон ограничен RunTimeout; истечение таймаута и внешняя отмена
// завершают прогон как FAILED (TIMEOUT / CANCELLED). На каждый
// неуспешный прогон публикуется ровно один алерт. Recorder наблюдает
// каждый переход; сбои recorder'а и алертов переходы не блокируют.
type Orchestrator struct {
	producer  steps.ProducerStep
	processor steps.ItemProcessorStep

	invoker *Invoker
	waiter  Waiter
	fanOut  *FanOut

	recorder recorder.Recorder
	alerts   AlertSink
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	pollInterval time.Duration
	runTimeout   time.Duration
}

// Config — конфигурация оркестратора.
type Config struct {
	// Producer — источник заказов.
	Producer steps.ProducerStep

	// Processor — обработчик одного заказа.
	Processor steps.ItemProcessorStep

	// Invoker — retry-обёртка вызовов шагов (default: NewInvoker с дефолтами).
	Invoker *Invoker

	// Waiter — ожидание между опросами (default: SleepWaiter).
	Waiter Waiter

	// FanOut — параллельная обработка items (default: NewFanOut с дефолтами).
	FanOut *FanOut

	// Recorder — журнал переходов (default: recorder.NewMemory()).
	Recorder recorder.Recorder

	// Alerts — приёмник алертов. Может быть nil — алерты тогда только логируются.
	Alerts AlertSink

	// Metrics — счётчики телеметрии.
	Metrics *telemetry.Metrics

	// PollInterval — пауза между опросами producer'а (default: 30s).
	PollInterval time.Duration

	// RunTimeout — wall-clock предел всего прогона (default: 15m).
	RunTimeout time.Duration

	// Logger — логгер.
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	waiter := cfg.Waiter
	if waiter == nil {
		waiter = SleepWaiter{}
	}

	invoker := cfg.Invoker
	if invoker == nil {
		invoker = NewInvoker(InvokerConfig{
			Waiter:  waiter,
			Metrics: cfg.Metrics,
			Logger:  logger,
		})
	}

	fanOut := cfg.FanOut
	if fanOut == nil {
		fanOut = NewFanOut(FanOutConfig{
			Metrics: cfg.Metrics,
			Logger:  logger,
		})
	}

	rec := cfg.Recorder
	if rec == nil {
		rec = recorder.NewMemory()
	}

	return &Orchestrator{
		producer:     cfg.Producer,
		processor:    cfg.Processor,
		invoker:      invoker,
		waiter:       waiter,
		fanOut:       fanOut,
		recorder:     rec,
		alerts:       cfg.Alerts,
		metrics:      cfg.Metrics,
		logger:       logger,
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
	}
}

// Run выполняет прогон до терминального состояния.
//
// Повторный запуск завершённого execution — ошибка программирования:
// возвращается ErrExecutionFinished без каких-либо побочных эффектов.
// Во всех остальных случаях Run возвращает терминальный RunResult;
// неуспех прогона — не ошибка вызова.
func (o *Orchestrator) Run(ctx context.Context, exec *domain.Execution) (*domain.RunResult, error) {
	if exec.IsFinished() || exec.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionFinished, exec.ID, exec.Status)
	}

	logger := telemetry.WithExecutionID(o.logger, exec.ID.String())
	logger.Info("execution started",
		"trigger_source", exec.TriggerSource,
		"poll_interval", o.pollInterval,
		"run_timeout", o.runTimeout,
	)

	exec.MarkRunning()
	if o.metrics != nil {
		o.metrics.ExecutionsStarted.Inc()
	}

	ctx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	for {
		result, err := o.fetchResults(ctx, exec, logger)
		if err != nil {
			return o.fail(ctx, exec, logger, domain.FailureFromError(exec.ID, exec.EnteredAt, err)), nil
		}

		if result.Ready {
			exec.SetItems(result.Orders)
			break
		}

		logger.Debug("results not ready, waiting", "interval", o.pollInterval)
		o.transition(ctx, exec, domain.StateWaitingToRetry, logger)
		if err := o.waiter.Wait(ctx, o.pollInterval); err != nil {
			return o.fail(ctx, exec, logger, domain.FailureFromError(exec.ID, exec.EnteredAt, err)), nil
		}
		o.transition(ctx, exec, domain.StateFetchingResults, logger)
	}

	o.transition(ctx, exec, domain.StateFanningOut, logger)
	logger.Info("fanning out", "items", len(exec.Items))

	exec.Outcomes = o.fanOut.Run(ctx, exec.Items, func(ctx context.Context, index int, order domain.Order) domain.Outcome {
		return o.invoker.Invoke(ctx, func(ctx context.Context) (map[string]any, error) {
			return o.processor.Process(ctx, order)
		})
	})

	// Первый неуспешный item (по наименьшему индексу) становится ошибкой прогона.
	for i := range exec.Outcomes {
		if !exec.Outcomes[i].Succeeded() {
			failure := domain.FailureFromOutcome(exec.ID, exec.EnteredAt, i, exec.Outcomes[i])
			return o.fail(ctx, exec, logger, failure), nil
		}
	}

	from := exec.State
	exec.MarkSucceeded()
	o.record(ctx, exec.ID, from, domain.StateSucceeded, exec.EnteredAt, logger)
	if o.metrics != nil {
		o.metrics.ExecutionsFinished.WithLabelValues(string(domain.ExecutionStatusSucceeded)).Inc()
	}

	logger.Info("execution succeeded", "items", len(exec.Items), "duration", exec.Duration())
	return &domain.RunResult{ExecutionID: exec.ID, Succeeded: true}, nil
}

// fetchResults опрашивает producer через Invoker.
func (o *Orchestrator) fetchResults(ctx context.Context, exec *domain.Execution, logger *slog.Logger) (*domain.ProducerResult, error) {
	if o.metrics != nil {
		o.metrics.PollAttempts.Inc()
	}

	var result *domain.ProducerResult
	out := o.invoker.Invoke(ctx, func(ctx context.Context) (map[string]any, error) {
		r, err := o.producer.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		result = r
		return nil, nil
	})
	if !out.Succeeded() {
		logger.Warn("producer fetch failed",
			"kind", out.ErrorKind,
			"message", out.Message,
		)
		return nil, domain.Failf(out.ErrorKind, nil, "producer fetch failed: %s", out.Message)
	}
	return result, nil
}

// fail завершает прогон как FAILED и публикует ровно один алерт.
func (o *Orchestrator) fail(ctx context.Context, exec *domain.Execution, logger *slog.Logger, failure *domain.Failure) *domain.RunResult {
	from := exec.State
	exec.MarkFailed(failure)
	o.record(ctx, exec.ID, from, domain.StateFailed, exec.EnteredAt, logger)
	if o.metrics != nil {
		o.metrics.ExecutionsFinished.WithLabelValues(string(domain.ExecutionStatusFailed)).Inc()
	}

	logger.Error("execution failed",
		"kind", exec.Failure.Kind,
		"message", exec.Failure.Message,
		"item_index", exec.Failure.ItemIndex,
	)

	o.publishAlert(ctx, exec.Failure, logger)

	return &domain.RunResult{
		ExecutionID: exec.ID,
		Succeeded:   false,
		Reason:      exec.Failure.Message,
	}
}

// publishAlert отправляет алерт best-effort: одна попытка, сбой только логируется.
func (o *Orchestrator) publishAlert(ctx context.Context, failure *domain.Failure, logger *slog.Logger) {
	if o.alerts == nil {
		return
	}

	// Терминальный переход уже состоялся — алерт публикуется даже при
	// отменённом контексте прогона.
	if err := o.alerts.Publish(context.WithoutCancel(ctx), failure); err != nil {
		logger.Warn("failed to publish alert", "error", err)
		return
	}
	if o.metrics != nil {
		o.metrics.AlertsPublished.Inc()
	}
}

// transition переводит автомат в новое состояние и записывает переход.
func (o *Orchestrator) transition(ctx context.Context, exec *domain.Execution, to domain.State, logger *slog.Logger) {
	from := exec.State
	exec.Transition(to)
	o.record(ctx, exec.ID, from, to, exec.EnteredAt, logger)
}

// record пишет переход в журнал; сбой записи переход не блокирует.
func (o *Orchestrator) record(ctx context.Context, execID uuid.UUID, from, to domain.State, at time.Time, logger *slog.Logger) {
	if err := o.recorder.Record(context.WithoutCancel(ctx), execID, from, to, at); err != nil {
		logger.Warn("failed to record transition",
			"from", from,
			"to", to,
			"error", err,
		)
	}
}
