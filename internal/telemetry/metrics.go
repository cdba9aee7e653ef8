package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — набор Prometheus-метрик пайплайна.
//
// Передаётся явно как коллаборатор (не глобальное состояние пакета),
// чтобы оркестратор и его зависимости оставались независимо тестируемыми.
// Все инкременты потокобезопасны — Metrics можно разделять между
// одновременно выполняющимися прогонами.
type Metrics struct {
	// ExecutionsStarted — количество запущенных прогонов.
	ExecutionsStarted prometheus.Counter

	// ExecutionsFinished — количество завершённых прогонов по статусу.
	ExecutionsFinished *prometheus.CounterVec

	// PollAttempts — количество опросов producer'а.
	PollAttempts prometheus.Counter

	// InvokerRetries — количество повторов внутри Invoker'а.
	InvokerRetries prometheus.Counter

	// ItemsProcessed — количество обработанных items по исходу.
	ItemsProcessed *prometheus.CounterVec

	// AlertsPublished — количество опубликованных алертов.
	AlertsPublished prometheus.Counter

	// FanOutDuration — длительность фазы fan-out.
	FanOutDuration prometheus.Histogram
}

// NewMetrics создаёт и регистрирует метрики в указанном registerer.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ExecutionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridflow_executions_started_total",
			Help: "Total pipeline executions started",
		}),
		ExecutionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridflow_executions_finished_total",
			Help: "Total pipeline executions finished, by status",
		}, []string{"status"}),
		PollAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridflow_producer_polls_total",
			Help: "Total producer poll attempts",
		}),
		InvokerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridflow_invoker_retries_total",
			Help: "Total transient-failure retries inside the task invoker",
		}),
		ItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridflow_items_processed_total",
			Help: "Total fan-out items processed, by outcome",
		}, []string{"outcome"}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridflow_alerts_published_total",
			Help: "Total failure alerts published",
		}),
		FanOutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridflow_fanout_duration_seconds",
			Help:    "Duration of the fan-out phase",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.ExecutionsStarted,
		m.ExecutionsFinished,
		m.PollAttempts,
		m.InvokerRetries,
		m.ItemsProcessed,
		m.AlertsPublished,
		m.FanOutDuration,
	)

	return m
}

// NewTestMetrics создаёт метрики с изолированным registry (для тестов).
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
