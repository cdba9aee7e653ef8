// Gridflow Orchestrator — выполняет прогоны пайплайна.
//
// Orchestrator:
//   - Получает новые executions из RabbitMQ (плюс polling fallback)
//   - Опрашивает producer до готовности результатов
//   - Обрабатывает items параллельно с изоляцией ошибок
//   - Публикует алерт на каждый неуспешный прогон
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Gridflow/internal/alert"
	"github.com/shaiso/Gridflow/internal/archive"
	"github.com/shaiso/Gridflow/internal/mq"
	"github.com/shaiso/Gridflow/internal/pipeline"
	"github.com/shaiso/Gridflow/internal/recorder"
	"github.com/shaiso/Gridflow/internal/repo"
	"github.com/shaiso/Gridflow/internal/steps"
	"github.com/shaiso/Gridflow/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting gridflow-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	orderRepo := repo.NewOrderRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)
	transitionRepo := repo.NewTransitionRepo(pool)

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqConn, err = mq.NewConnection(mq.DefaultURL(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Producer: внешний HTTP endpoint или выборка ingested заказов из БД
	var producer steps.ProducerStep
	if url := os.Getenv("PRODUCER_URL"); url != "" {
		producer = steps.NewHTTPProducer(url, nil)
		logger.Info("using HTTP producer", "url", url)
	} else {
		producer = steps.NewDBProducer(orderRepo)
		logger.Info("using DB producer")
	}

	// Processor: внешний HTTP endpoint обработки заказов
	processorURL := os.Getenv("PROCESSOR_URL")
	if processorURL == "" {
		processorURL = "http://localhost:8090/process"
	}
	var processor steps.ItemProcessorStep = steps.NewHTTPProcessor(processorURL, nil)

	// Архив обработанных заказов (опционально)
	if os.Getenv("ARCHIVE_ENABLED") == "true" {
		store, err := archive.NewStore(ctx, archive.ConfigFromEnv())
		if err != nil {
			logger.Warn("archive not available, processing without archiving", "error", err)
		} else {
			processor = steps.NewArchivingProcessor(processor, store)
			logger.Info("order archiving enabled")
		}
	}

	// Алерты публикуются в RabbitMQ; без publisher'а — только логируются
	var alerts pipeline.AlertSink
	if publisher != nil {
		alerts = alert.NewPublisher(publisher, logger)
	}

	metrics := telemetry.NewMetrics(nil)

	orch := pipeline.New(pipeline.Config{
		Producer:  producer,
		Processor: processor,
		FanOut: pipeline.NewFanOut(pipeline.FanOutConfig{
			Limit:   intEnv("FANOUT_LIMIT", 0),
			Metrics: metrics,
			Logger:  logger,
		}),
		Recorder:     recorder.NewRepo(transitionRepo),
		Alerts:       alerts,
		Metrics:      metrics,
		PollInterval: durationEnv("POLL_INTERVAL", 0),
		RunTimeout:   durationEnv("RUN_TIMEOUT", 0),
		Logger:       logger,
	})

	svc := pipeline.NewService(pipeline.ServiceConfig{
		Executions:   executionRepo,
		Orchestrator: orch,
		Conn:         mqConn,
		Logger:       logger,
	})

	if err := svc.Start(ctx); err != nil {
		logger.Error("failed to start pipeline service", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	svc.Stop()
	logger.Info("gridflow-orchestrator stopped")
}

// durationEnv читает duration из окружения ("30s", "15m").
// Возвращает fallback, если переменная не задана или невалидна.
func durationEnv(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// intEnv читает int из окружения с фоллбеком.
func intEnv(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
