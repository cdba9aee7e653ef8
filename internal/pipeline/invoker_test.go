package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/telemetry"
)

// fakeWaiter записывает ожидания и возвращает мгновенно.
type fakeWaiter struct {
	waits []time.Duration
	err   error
}

func (w *fakeWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	if w.err != nil {
		return w.err
	}
	return ctx.Err()
}

func TestInvoker_SucceedsFirstAttempt(t *testing.T) {
	inv := NewInvoker(InvokerConfig{Waiter: &fakeWaiter{}, Metrics: telemetry.NewTestMetrics()})

	calls := 0
	out := inv.Invoke(context.Background(), func(ctx context.Context) (map[string]any, error) {
		calls++
		return map[string]any{"n": 1}, nil
	})

	if !out.Succeeded() {
		t.Fatalf("expected success, got %+v", out)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestInvoker_RetriesTransientOnly(t *testing.T) {
	waiter := &fakeWaiter{}
	inv := NewInvoker(InvokerConfig{
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		Waiter:      waiter,
		Metrics:     telemetry.NewTestMetrics(),
	})

	calls := 0
	out := inv.Invoke(context.Background(), func(ctx context.Context) (map[string]any, error) {
		calls++
		if calls < 3 {
			return nil, domain.Failf(domain.KindTransientInfra, nil, "flaky")
		}
		return map[string]any{}, nil
	})

	if !out.Succeeded() {
		t.Fatalf("expected success after retries, got %+v", out)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(waiter.waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(waiter.waits))
	}
	for _, d := range waiter.waits {
		if d != 2*time.Second {
			t.Errorf("expected fixed 2s retry delay, got %v", d)
		}
	}
}

func TestInvoker_ExhaustsAttempts(t *testing.T) {
	waiter := &fakeWaiter{}
	inv := NewInvoker(InvokerConfig{MaxAttempts: 3, Waiter: waiter, Metrics: telemetry.NewTestMetrics()})

	calls := 0
	out := inv.Invoke(context.Background(), func(ctx context.Context) (map[string]any, error) {
		calls++
		return nil, errors.New("connection refused") // неклассифицированная → TRANSIENT_INFRA
	})

	if out.Succeeded() {
		t.Fatal("expected failure")
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	if out.ErrorKind != domain.KindTransientInfra {
		t.Errorf("expected TRANSIENT_INFRA, got %s", out.ErrorKind)
	}
}

func TestInvoker_DomainRejectionNotRetried(t *testing.T) {
	waiter := &fakeWaiter{}
	inv := NewInvoker(InvokerConfig{MaxAttempts: 5, Waiter: waiter, Metrics: telemetry.NewTestMetrics()})

	calls := 0
	out := inv.Invoke(context.Background(), func(ctx context.Context) (map[string]any, error) {
		calls++
		return nil, domain.Failf(domain.KindDomainRejection, nil, "order rejected")
	})

	if calls != 1 {
		t.Errorf("domain rejection must not be retried, got %d calls", calls)
	}
	if out.ErrorKind != domain.KindDomainRejection {
		t.Errorf("expected DOMAIN_REJECTION, got %s", out.ErrorKind)
	}
	if len(waiter.waits) != 0 {
		t.Error("no waits expected for domain rejection")
	}
}

func TestInvoker_CancelledDuringWait(t *testing.T) {
	waiter := &fakeWaiter{err: context.Canceled}
	inv := NewInvoker(InvokerConfig{MaxAttempts: 3, Waiter: waiter, Metrics: telemetry.NewTestMetrics()})

	calls := 0
	out := inv.Invoke(context.Background(), func(ctx context.Context) (map[string]any, error) {
		calls++
		return nil, domain.Failf(domain.KindTransientInfra, nil, "flaky")
	})

	if calls != 1 {
		t.Errorf("expected 1 call before cancelled wait, got %d", calls)
	}
	if out.ErrorKind != domain.KindCancelled {
		t.Errorf("expected CANCELLED, got %s", out.ErrorKind)
	}
}

func TestSleepWaiter_HonorsDuration(t *testing.T) {
	start := time.Now()
	if err := (SleepWaiter{}).Wait(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("wait returned early after %v", elapsed)
	}
}

func TestSleepWaiter_Cancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- (SleepWaiter{}).Wait(ctx, time.Minute)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not react to cancellation")
	}
}
