package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/telemetry"
)

func makeOrders(n int) []domain.Order {
	orders := make([]domain.Order, n)
	for i := range orders {
		orders[i] = domain.Order{RecordID: fmt.Sprintf("order-%d", i)}
	}
	return orders
}

func TestFanOut_EmptyItems(t *testing.T) {
	f := NewFanOut(FanOutConfig{Metrics: telemetry.NewTestMetrics()})

	start := time.Now()
	outcomes := f.Run(context.Background(), nil, func(ctx context.Context, i int, o domain.Order) domain.Outcome {
		t.Error("fn must not be called for empty items")
		return domain.SucceededOutcome(nil)
	})

	if len(outcomes) != 0 {
		t.Errorf("expected empty outcomes, got %d", len(outcomes))
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("empty fan-out must return immediately")
	}
}

func TestFanOut_PreservesOrder(t *testing.T) {
	f := NewFanOut(FanOutConfig{Limit: 3, Metrics: telemetry.NewTestMetrics()})
	orders := makeOrders(10)

	outcomes := f.Run(context.Background(), orders, func(ctx context.Context, i int, o domain.Order) domain.Outcome {
		// Ранние items завершаются позже — порядок исходов не должен зависеть
		// от порядка завершения.
		time.Sleep(time.Duration(10-i) * time.Millisecond)
		return domain.SucceededOutcome(map[string]any{"record_id": o.RecordID})
	})

	if len(outcomes) != 10 {
		t.Fatalf("expected 10 outcomes, got %d", len(outcomes))
	}
	for i, out := range outcomes {
		if !out.Succeeded() {
			t.Errorf("outcome %d: expected success", i)
		}
		want := fmt.Sprintf("order-%d", i)
		if out.Data["record_id"] != want {
			t.Errorf("outcome %d: expected %s, got %v", i, want, out.Data["record_id"])
		}
	}
}

func TestFanOut_ConcurrencyBound(t *testing.T) {
	const limit = 2
	f := NewFanOut(FanOutConfig{Limit: limit, Metrics: telemetry.NewTestMetrics()})

	var current, max int64
	outcomes := f.Run(context.Background(), makeOrders(8), func(ctx context.Context, i int, o domain.Order) domain.Outcome {
		n := atomic.AddInt64(&current, 1)
		for {
			m := atomic.LoadInt64(&max)
			if n <= m || atomic.CompareAndSwapInt64(&max, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return domain.SucceededOutcome(nil)
	})

	if len(outcomes) != 8 {
		t.Fatalf("expected 8 outcomes, got %d", len(outcomes))
	}
	if got := atomic.LoadInt64(&max); got > limit {
		t.Errorf("concurrency %d exceeded limit %d", got, limit)
	}
}

func TestFanOut_ExactlyOncePerItem(t *testing.T) {
	f := NewFanOut(FanOutConfig{Limit: 4, Metrics: telemetry.NewTestMetrics()})

	var mu sync.Mutex
	calls := make(map[int]int)

	f.Run(context.Background(), makeOrders(20), func(ctx context.Context, i int, o domain.Order) domain.Outcome {
		mu.Lock()
		calls[i]++
		mu.Unlock()
		return domain.SucceededOutcome(nil)
	})

	for i := 0; i < 20; i++ {
		if calls[i] != 1 {
			t.Errorf("item %d processed %d times", i, calls[i])
		}
	}
}

func TestFanOut_FailureIsolation(t *testing.T) {
	// 5 items, limit 2, падает только item C (индекс 2).
	f := NewFanOut(FanOutConfig{Limit: 2, Metrics: telemetry.NewTestMetrics()})

	outcomes := f.Run(context.Background(), makeOrders(5), func(ctx context.Context, i int, o domain.Order) domain.Outcome {
		if i == 2 {
			return domain.FailedOutcome(domain.Failf(domain.KindDomainRejection, nil, "item C rejected"))
		}
		return domain.SucceededOutcome(nil)
	})

	for i, out := range outcomes {
		if i == 2 {
			if out.Succeeded() {
				t.Error("item 2 must fail")
			}
			if out.ErrorKind != domain.KindDomainRejection {
				t.Errorf("expected DOMAIN_REJECTION, got %s", out.ErrorKind)
			}
			continue
		}
		if !out.Succeeded() {
			t.Errorf("item %d must succeed despite item 2 failing", i)
		}
	}
}

func TestFanOut_PanicIsolation(t *testing.T) {
	f := NewFanOut(FanOutConfig{Limit: 2, Metrics: telemetry.NewTestMetrics()})

	outcomes := f.Run(context.Background(), makeOrders(4), func(ctx context.Context, i int, o domain.Order) domain.Outcome {
		if i == 1 {
			panic("boom")
		}
		return domain.SucceededOutcome(nil)
	})

	if outcomes[1].Succeeded() {
		t.Error("panicked item must have a failed outcome")
	}
	for _, i := range []int{0, 2, 3} {
		if !outcomes[i].Succeeded() {
			t.Errorf("item %d must succeed despite panic in item 1", i)
		}
	}
}

func TestFanOut_CancelledContext(t *testing.T) {
	f := NewFanOut(FanOutConfig{Limit: 1, Metrics: telemetry.NewTestMetrics()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := f.Run(ctx, makeOrders(3), func(ctx context.Context, i int, o domain.Order) domain.Outcome {
		if ctx.Err() != nil {
			return domain.FailedOutcome(ctx.Err())
		}
		return domain.SucceededOutcome(nil)
	})

	for i, out := range outcomes {
		if out.Succeeded() {
			t.Errorf("item %d: expected failure under cancelled context", i)
		}
		if out.ErrorKind != domain.KindCancelled {
			t.Errorf("item %d: expected CANCELLED, got %s", i, out.ErrorKind)
		}
	}
}
