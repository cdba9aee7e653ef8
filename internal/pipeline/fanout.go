package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/telemetry"
)

// Предел одновременно обрабатываемых items по умолчанию.
const defaultFanOutLimit = 5

// ItemFunc — обработка одного item'а внутри fan-out.
type ItemFunc func(ctx context.Context, index int, order domain.Order) domain.Outcome

// FanOut выполняет обработку items с ограниченным параллелизмом.
//
// Инварианты:
//   - Каждый item обрабатывается ровно один раз.
//   - Одновременно выполняется не более limit обработок.
//   - Outcomes[i] соответствует items[i] независимо от порядка завершения.
//   - Паника или ошибка одного item'а превращается в Failed-исход
//     только этого индекса, остальные items не затрагиваются.
//
// FanOut сам ничего не повторяет: retry живёт внутри переданной ItemFunc.
type FanOut struct {
	limit   int
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// FanOutConfig — конфигурация FanOut.
type FanOutConfig struct {
	// Limit — максимум одновременных обработок (default: 5).
	Limit int

	// Metrics — счётчики телеметрии.
	Metrics *telemetry.Metrics

	// Logger — логгер.
	Logger *slog.Logger
}

// NewFanOut создаёт новый FanOut.
func NewFanOut(cfg FanOutConfig) *FanOut {
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultFanOutLimit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FanOut{
		limit:   limit,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Run обрабатывает items и возвращает исходы в порядке входа.
// Пустой набор items — немедленный успех с пустым результатом.
func (f *FanOut) Run(ctx context.Context, items []domain.Order, fn ItemFunc) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(items))
	if len(items) == 0 {
		return outcomes
	}

	start := time.Now()
	sem := make(chan struct{}, f.limit)
	var wg sync.WaitGroup

	for i := range items {
		wg.Add(1)
		go func(index int, order domain.Order) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[index] = domain.FailedOutcome(ctx.Err())
				return
			}
			defer func() { <-sem }()

			outcomes[index] = f.runItem(ctx, index, order, fn)
		}(i, items[i])
	}
	wg.Wait()

	if f.metrics != nil {
		f.metrics.FanOutDuration.Observe(time.Since(start).Seconds())
		for i := range outcomes {
			f.metrics.ItemsProcessed.WithLabelValues(string(outcomes[i].Status)).Inc()
		}
	}

	return outcomes
}

// runItem выполняет один item, конвертируя панику в Failed-исход.
func (f *FanOut) runItem(ctx context.Context, index int, order domain.Order, fn ItemFunc) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("item handler panicked",
				"item_index", index,
				"record_id", order.RecordID,
				"panic", r,
			)
			out = domain.FailedOutcome(domain.Failf(domain.KindTransientInfra, nil,
				"item handler panicked: %v", r))
		}
	}()

	return fn(ctx, index, order)
}
