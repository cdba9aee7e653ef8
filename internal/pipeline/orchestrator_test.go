package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/recorder"
	"github.com/shaiso/Gridflow/internal/telemetry"
)

// scriptedProducer возвращает заранее заданные ответы по очереди.
// Последний ответ повторяется, когда сценарий исчерпан.
type scriptedProducer struct {
	mu      sync.Mutex
	script  []producerReply
	fetches int
}

type producerReply struct {
	result *domain.ProducerResult
	err    error
}

func (p *scriptedProducer) Fetch(ctx context.Context) (*domain.ProducerResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.fetches
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.fetches++
	reply := p.script[idx]
	return reply.result, reply.err
}

func (p *scriptedProducer) Fetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

// indexProcessor падает на заданных record_id.
type indexProcessor struct {
	mu        sync.Mutex
	failOn    map[string]error
	processed []string
}

func (p *indexProcessor) Process(ctx context.Context, order domain.Order) (map[string]any, error) {
	p.mu.Lock()
	p.processed = append(p.processed, order.RecordID)
	p.mu.Unlock()

	if err, ok := p.failOn[order.RecordID]; ok {
		return nil, err
	}
	return map[string]any{"record_id": order.RecordID}, nil
}

func (p *indexProcessor) Processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.processed))
	copy(out, p.processed)
	return out
}

// captureAlerts считает публикации алертов.
type captureAlerts struct {
	mu       sync.Mutex
	failures []*domain.Failure
	err      error
}

func (a *captureAlerts) Publish(ctx context.Context, failure *domain.Failure) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.failures = append(a.failures, failure)
	return nil
}

func (a *captureAlerts) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.failures)
}

// failingRecorder всегда возвращает ошибку.
type failingRecorder struct{}

func (failingRecorder) Record(ctx context.Context, id uuid.UUID, from, to domain.State, at time.Time) error {
	return errors.New("recorder unavailable")
}

func ready(orders ...domain.Order) producerReply {
	return producerReply{result: &domain.ProducerResult{Ready: true, Orders: orders}}
}

func notReady() producerReply {
	return producerReply{result: &domain.ProducerResult{Ready: false}}
}

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewTestMetrics()
	}
	if cfg.Waiter == nil {
		cfg.Waiter = &fakeWaiter{}
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return New(cfg)
}

func TestOrchestrator_HappyPath(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{
		ready(domain.Order{RecordID: "a"}, domain.Order{RecordID: "b"}),
	}}
	processor := &indexProcessor{}
	alerts := &captureAlerts{}
	rec := recorder.NewMemory()

	o := newTestOrchestrator(t, Config{
		Producer:  producer,
		Processor: processor,
		Recorder:  rec,
		Alerts:    alerts,
	})

	exec := domain.NewExecution("test")
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Succeeded {
		t.Fatalf("expected success, got %+v", result)
	}
	if exec.Status != domain.ExecutionStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", exec.Status)
	}
	if exec.State != domain.StateSucceeded {
		t.Errorf("expected terminal state SUCCEEDED, got %s", exec.State)
	}
	if len(exec.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(exec.Outcomes))
	}
	if alerts.Count() != 0 {
		t.Errorf("no alerts expected for a successful run, got %d", alerts.Count())
	}

	transitions := rec.Transitions()
	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d: %+v", len(transitions), transitions)
	}
	if transitions[0].To != domain.StateFanningOut || transitions[1].To != domain.StateSucceeded {
		t.Errorf("unexpected transition sequence: %+v", transitions)
	}
}

func TestOrchestrator_EmptyItemsVacuousSuccess(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{ready()}}
	processor := &indexProcessor{}

	o := newTestOrchestrator(t, Config{Producer: producer, Processor: processor})

	exec := domain.NewExecution("test")
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Succeeded {
		t.Fatal("zero items must be a vacuous success")
	}
	if len(exec.Outcomes) != 0 {
		t.Errorf("expected empty outcomes, got %d", len(exec.Outcomes))
	}
	if len(processor.Processed()) != 0 {
		t.Error("processor must not be called for zero items")
	}
}

func TestOrchestrator_PollsUntilReady(t *testing.T) {
	// Три опроса "не готово", затем готовый ответ.
	producer := &scriptedProducer{script: []producerReply{
		notReady(), notReady(), notReady(),
		ready(domain.Order{RecordID: "a"}),
	}}
	waiter := &fakeWaiter{}
	rec := recorder.NewMemory()

	o := newTestOrchestrator(t, Config{
		Producer:     producer,
		Processor:    &indexProcessor{},
		Waiter:       waiter,
		Recorder:     rec,
		PollInterval: 30 * time.Second,
	})

	exec := domain.NewExecution("test")
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected success, got %+v", result)
	}

	if producer.Fetches() != 4 {
		t.Errorf("expected 4 fetches, got %d", producer.Fetches())
	}
	if len(waiter.waits) != 3 {
		t.Fatalf("expected 3 poll waits, got %d", len(waiter.waits))
	}
	for _, d := range waiter.waits {
		if d != 30*time.Second {
			t.Errorf("expected fixed 30s poll interval, got %v", d)
		}
	}

	// FETCHING→WAITING и WAITING→FETCHING по три раза, затем fan-out и успех.
	transitions := rec.Transitions()
	wantSeq := []domain.State{
		domain.StateWaitingToRetry, domain.StateFetchingResults,
		domain.StateWaitingToRetry, domain.StateFetchingResults,
		domain.StateWaitingToRetry, domain.StateFetchingResults,
		domain.StateFanningOut, domain.StateSucceeded,
	}
	if len(transitions) != len(wantSeq) {
		t.Fatalf("expected %d transitions, got %d: %+v", len(wantSeq), len(transitions), transitions)
	}
	for i, want := range wantSeq {
		if transitions[i].To != want {
			t.Errorf("transition %d: expected %s, got %s", i, want, transitions[i].To)
		}
	}
}

func TestOrchestrator_ItemFailureLowestIndexWins(t *testing.T) {
	// 5 items, limit 2, падает item C (индекс 2) и item E (индекс 4):
	// ошибкой прогона должен стать item с наименьшим индексом.
	orders := []domain.Order{
		{RecordID: "A"}, {RecordID: "B"}, {RecordID: "C"}, {RecordID: "D"}, {RecordID: "E"},
	}
	producer := &scriptedProducer{script: []producerReply{ready(orders...)}}
	processor := &indexProcessor{failOn: map[string]error{
		"C": domain.Failf(domain.KindDomainRejection, nil, "order C rejected"),
		"E": domain.Failf(domain.KindDomainRejection, nil, "order E rejected"),
	}}
	alerts := &captureAlerts{}

	o := newTestOrchestrator(t, Config{
		Producer:  producer,
		Processor: processor,
		FanOut:    NewFanOut(FanOutConfig{Limit: 2, Metrics: telemetry.NewTestMetrics()}),
		Alerts:    alerts,
	})

	exec := domain.NewExecution("test")
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Succeeded {
		t.Fatal("expected failed run")
	}
	if exec.Status != domain.ExecutionStatusFailed {
		t.Errorf("expected FAILED, got %s", exec.Status)
	}

	// Все 5 items обработаны, несмотря на ошибки двух из них.
	if got := len(processor.Processed()); got != 5 {
		t.Errorf("expected all 5 items processed, got %d", got)
	}
	for i, out := range exec.Outcomes {
		wantFail := i == 2 || i == 4
		if out.Succeeded() == wantFail {
			t.Errorf("outcome %d: succeeded=%v", i, out.Succeeded())
		}
	}

	if exec.Failure == nil {
		t.Fatal("expected failure to be set")
	}
	if exec.Failure.ItemIndex != 2 {
		t.Errorf("expected lowest failing index 2, got %d", exec.Failure.ItemIndex)
	}
	if exec.Failure.Kind != domain.KindDomainRejection {
		t.Errorf("expected DOMAIN_REJECTION, got %s", exec.Failure.Kind)
	}

	if alerts.Count() != 1 {
		t.Errorf("expected exactly one alert, got %d", alerts.Count())
	}
	if alerts.failures[0].ExecutionID != exec.ID {
		t.Error("alert must carry the execution id")
	}
}

func TestOrchestrator_ProducerFailureNoFanOut(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{
		{err: domain.Failf(domain.KindDomainRejection, nil, "malformed payload")},
	}}
	processor := &indexProcessor{}
	alerts := &captureAlerts{}

	o := newTestOrchestrator(t, Config{Producer: producer, Processor: processor, Alerts: alerts})

	exec := domain.NewExecution("test")
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Succeeded {
		t.Fatal("expected failed run")
	}
	if len(processor.Processed()) != 0 {
		t.Error("processor must not run after producer failure")
	}
	if alerts.Count() != 1 {
		t.Errorf("expected exactly one alert, got %d", alerts.Count())
	}
	if exec.Failure.Kind != domain.KindDomainRejection {
		t.Errorf("expected DOMAIN_REJECTION, got %s", exec.Failure.Kind)
	}
}

func TestOrchestrator_TransientProducerFailureRetriedByInvoker(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{
		{err: domain.Failf(domain.KindTransientInfra, nil, "connection reset")},
		{err: domain.Failf(domain.KindTransientInfra, nil, "connection reset")},
		ready(domain.Order{RecordID: "a"}),
	}}
	waiter := &fakeWaiter{}

	o := newTestOrchestrator(t, Config{
		Producer:  producer,
		Processor: &indexProcessor{},
		Waiter:    waiter,
		Invoker: NewInvoker(InvokerConfig{
			MaxAttempts: 3,
			Waiter:      waiter,
			Metrics:     telemetry.NewTestMetrics(),
		}),
	})

	result, err := o.Run(context.Background(), domain.NewExecution("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected success after transient retries, got %+v", result)
	}
	if producer.Fetches() != 3 {
		t.Errorf("expected 3 fetches, got %d", producer.Fetches())
	}
}

func TestOrchestrator_RunTimeout(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{notReady()}}
	alerts := &captureAlerts{}

	o := New(Config{
		Producer:     producer,
		Processor:    &indexProcessor{},
		Alerts:       alerts,
		Metrics:      telemetry.NewTestMetrics(),
		PollInterval: 5 * time.Millisecond,
		RunTimeout:   30 * time.Millisecond,
	})

	exec := domain.NewExecution("test")
	start := time.Now()
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Succeeded {
		t.Fatal("expected timed-out run to fail")
	}
	if exec.Failure.Kind != domain.KindTimeout {
		t.Errorf("expected TIMEOUT, got %s", exec.Failure.Kind)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("run did not terminate promptly after timeout: %v", elapsed)
	}
	if alerts.Count() != 1 {
		t.Errorf("expected exactly one alert, got %d", alerts.Count())
	}
}

func TestOrchestrator_ExternalCancellation(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{notReady()}}

	o := New(Config{
		Producer:     producer,
		Processor:    &indexProcessor{},
		Metrics:      telemetry.NewTestMetrics(),
		PollInterval: time.Minute,
		RunTimeout:   time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	exec := domain.NewExecution("test")
	result, err := o.Run(ctx, exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Succeeded {
		t.Fatal("expected cancelled run to fail")
	}
	if exec.Failure.Kind != domain.KindCancelled {
		t.Errorf("expected CANCELLED, got %s", exec.Failure.Kind)
	}
}

func TestOrchestrator_TerminalRerunRejected(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{ready(domain.Order{RecordID: "a"})}}
	alerts := &captureAlerts{}
	rec := recorder.NewMemory()

	o := newTestOrchestrator(t, Config{
		Producer:  producer,
		Processor: &indexProcessor{},
		Recorder:  rec,
		Alerts:    alerts,
	})

	exec := domain.NewExecution("test")
	if _, err := o.Run(context.Background(), exec); err != nil {
		t.Fatalf("first run: %v", err)
	}

	fetchesBefore := producer.Fetches()
	transitionsBefore := len(rec.Transitions())

	result, err := o.Run(context.Background(), exec)
	if !errors.Is(err, ErrExecutionFinished) {
		t.Fatalf("expected ErrExecutionFinished, got %v", err)
	}
	if result != nil {
		t.Error("rerun must not produce a result")
	}

	// Повторный запуск не имеет побочных эффектов.
	if producer.Fetches() != fetchesBefore {
		t.Error("rerun must not call the producer")
	}
	if len(rec.Transitions()) != transitionsBefore {
		t.Error("rerun must not record transitions")
	}
	if alerts.Count() != 0 {
		t.Error("rerun must not publish alerts")
	}
}

func TestOrchestrator_AlertFailureDoesNotBlock(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{
		{err: domain.Failf(domain.KindTransientInfra, nil, "down")},
	}}
	alerts := &captureAlerts{err: errors.New("mq unavailable")}

	o := newTestOrchestrator(t, Config{
		Producer:  producer,
		Processor: &indexProcessor{},
		Alerts:    alerts,
		Invoker: NewInvoker(InvokerConfig{
			MaxAttempts: 1,
			Waiter:      &fakeWaiter{},
			Metrics:     telemetry.NewTestMetrics(),
		}),
	})

	exec := domain.NewExecution("test")
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("alert failure must not fail the run call: %v", err)
	}
	if result.Succeeded {
		t.Fatal("expected failed run")
	}
	if exec.Status != domain.ExecutionStatusFailed {
		t.Errorf("terminal transition must complete despite alert failure, got %s", exec.Status)
	}
}

func TestOrchestrator_RecorderFailureDoesNotBlock(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{ready(domain.Order{RecordID: "a"})}}

	o := newTestOrchestrator(t, Config{
		Producer:  producer,
		Processor: &indexProcessor{},
		Recorder:  failingRecorder{},
	})

	result, err := o.Run(context.Background(), domain.NewExecution("test"))
	if err != nil {
		t.Fatalf("recorder failure must not fail the run: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestOrchestrator_PanicInProcessorIsolated(t *testing.T) {
	orders := makeOrders(3)
	producer := &scriptedProducer{script: []producerReply{ready(orders...)}}
	panicProcessor := processorFunc(func(ctx context.Context, order domain.Order) (map[string]any, error) {
		if order.RecordID == "order-1" {
			panic("processor bug")
		}
		return map[string]any{}, nil
	})

	o := newTestOrchestrator(t, Config{Producer: producer, Processor: panicProcessor, Alerts: &captureAlerts{}})

	exec := domain.NewExecution("test")
	result, err := o.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Succeeded {
		t.Fatal("expected failed run")
	}
	if exec.Failure.ItemIndex != 1 {
		t.Errorf("expected failing index 1, got %d", exec.Failure.ItemIndex)
	}
	if !exec.Outcomes[0].Succeeded() || !exec.Outcomes[2].Succeeded() {
		t.Error("other items must succeed despite the panic")
	}
}

// processorFunc адаптирует функцию к ItemProcessorStep.
type processorFunc func(ctx context.Context, order domain.Order) (map[string]any, error)

func (f processorFunc) Process(ctx context.Context, order domain.Order) (map[string]any, error) {
	return f(ctx, order)
}

func TestOrchestrator_ResultsReadyMonotonic(t *testing.T) {
	producer := &scriptedProducer{script: []producerReply{
		notReady(),
		ready(domain.Order{RecordID: "a"}),
	}}

	o := newTestOrchestrator(t, Config{Producer: producer, Processor: &indexProcessor{}})

	exec := domain.NewExecution("test")
	if exec.ResultsReady {
		t.Fatal("new execution must start with ResultsReady=false")
	}

	if _, err := o.Run(context.Background(), exec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exec.ResultsReady {
		t.Error("ResultsReady must be raised when the producer reports ready")
	}

	// SetItems не перезаписывает уже зафиксированные items.
	items := exec.Items
	exec.SetItems([]domain.Order{{RecordID: "other"}})
	if fmt.Sprintf("%v", exec.Items) != fmt.Sprintf("%v", items) {
		t.Error("items must be immutable once set")
	}
}
