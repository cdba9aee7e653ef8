package steps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Gridflow/internal/domain"
)

// HTTPProducer Tests

func TestHTTPProducer_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": true, "orders": [{"record_id": "a1", "status": "accepted", "power": 10}]}`))
	}))
	defer server.Close()

	p := NewHTTPProducer(server.URL, nil)
	result, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Ready {
		t.Error("expected Ready=true")
	}
	if len(result.Orders) != 1 || result.Orders[0].RecordID != "a1" {
		t.Errorf("unexpected orders: %+v", result.Orders)
	}
}

func TestHTTPProducer_NotReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": false}`))
	}))
	defer server.Close()

	p := NewHTTPProducer(server.URL, nil)
	result, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ready {
		t.Error("expected Ready=false")
	}
	if len(result.Orders) != 0 {
		t.Errorf("expected no orders, got %d", len(result.Orders))
	}
}

func TestHTTPProducer_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPProducer(server.URL, nil)
	_, err := p.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.Classify(err) != domain.KindTransientInfra {
		t.Errorf("expected TRANSIENT_INFRA, got %s", domain.Classify(err))
	}
}

func TestHTTPProducer_TransportError(t *testing.T) {
	// Сервер сразу закрыт — соединение невозможно.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p := NewHTTPProducer(server.URL, nil)
	_, err := p.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.Classify(err) != domain.KindTransientInfra {
		t.Errorf("expected TRANSIENT_INFRA, got %s", domain.Classify(err))
	}
}

func TestHTTPProducer_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	p := NewHTTPProducer(server.URL, nil)
	_, err := p.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.Classify(err) != domain.KindDomainRejection {
		t.Errorf("expected DOMAIN_REJECTION, got %s", domain.Classify(err))
	}
}

func TestHTTPProducer_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewHTTPProducer(server.URL, nil)
	_, err := p.Fetch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// HTTPProcessor Tests

func TestHTTPProcessor_Process(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
			t.Errorf("unexpected content type: %s", ct)
		}
		w.Write([]byte(`{"processed": true}`))
	}))
	defer server.Close()

	p := NewHTTPProcessor(server.URL, nil)
	data, err := p.Process(context.Background(), domain.Order{RecordID: "a1", Status: domain.OrderStatusAccepted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["processed"] != true {
		t.Errorf("unexpected data: %+v", data)
	}
}

func TestHTTPProcessor_RejectedOrder(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := NewHTTPProcessor(server.URL, nil)
	_, err := p.Process(context.Background(), domain.Order{RecordID: "bad", Status: domain.OrderStatusRejected})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.Classify(err) != domain.KindDomainRejection {
		t.Errorf("expected DOMAIN_REJECTION, got %s", domain.Classify(err))
	}
	if called {
		t.Error("rejected order must not reach the endpoint")
	}
}

func TestHTTPProcessor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewHTTPProcessor(server.URL, nil)
	_, err := p.Process(context.Background(), domain.Order{RecordID: "a1"})
	if domain.Classify(err) != domain.KindTransientInfra {
		t.Errorf("expected TRANSIENT_INFRA, got %v", err)
	}
}

func TestHTTPProcessor_ClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	p := NewHTTPProcessor(server.URL, nil)
	_, err := p.Process(context.Background(), domain.Order{RecordID: "a1"})
	if domain.Classify(err) != domain.KindDomainRejection {
		t.Errorf("expected DOMAIN_REJECTION, got %v", err)
	}
}

// DBProducer Tests

type fakeOrderLister struct {
	orders []domain.Order
	err    error
}

func (f *fakeOrderLister) ListActive(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	return f.orders, f.err
}

func TestDBProducer_Ready(t *testing.T) {
	lister := &fakeOrderLister{orders: []domain.Order{{RecordID: "a1"}, {RecordID: "a2"}}}
	p := NewDBProducer(lister)

	result, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Ready {
		t.Error("expected Ready=true")
	}
	if len(result.Orders) != 2 {
		t.Errorf("expected 2 orders, got %d", len(result.Orders))
	}
}

func TestDBProducer_Empty(t *testing.T) {
	p := NewDBProducer(&fakeOrderLister{})

	result, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Ready {
		t.Error("expected Ready=false for empty store")
	}
}

func TestDBProducer_StoreError(t *testing.T) {
	p := NewDBProducer(&fakeOrderLister{err: errors.New("connection refused")})

	_, err := p.Fetch(context.Background())
	if domain.Classify(err) != domain.KindTransientInfra {
		t.Errorf("expected TRANSIENT_INFRA, got %v", err)
	}
}

// ArchivingProcessor Tests

type fakeProcessor struct {
	data map[string]any
	err  error
}

func (f *fakeProcessor) Process(ctx context.Context, order domain.Order) (map[string]any, error) {
	return f.data, f.err
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) PutJSON(ctx context.Context, key string, v any) error {
	f.keys = append(f.keys, key)
	return f.err
}

func TestArchivingProcessor_Success(t *testing.T) {
	store := &fakeArchiver{}
	p := NewArchivingProcessor(&fakeProcessor{data: map[string]any{"ok": true}}, store)

	data, err := p.Process(context.Background(), domain.Order{RecordID: "a1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["ok"] != true {
		t.Errorf("unexpected data: %+v", data)
	}
	if len(store.keys) != 1 {
		t.Fatalf("expected 1 archived object, got %d", len(store.keys))
	}
	if !strings.HasPrefix(store.keys[0], "orders/order_") {
		t.Errorf("unexpected archive key: %s", store.keys[0])
	}
}

func TestArchivingProcessor_SkipsArchiveOnFailure(t *testing.T) {
	store := &fakeArchiver{}
	procErr := domain.Failf(domain.KindDomainRejection, nil, "rejected")
	p := NewArchivingProcessor(&fakeProcessor{err: procErr}, store)

	_, err := p.Process(context.Background(), domain.Order{RecordID: "a1"})
	if domain.Classify(err) != domain.KindDomainRejection {
		t.Errorf("expected DOMAIN_REJECTION, got %v", err)
	}
	if len(store.keys) != 0 {
		t.Error("failed order must not be archived")
	}
}

func TestArchivingProcessor_ArchiveFailure(t *testing.T) {
	store := &fakeArchiver{err: errors.New("bucket unavailable")}
	p := NewArchivingProcessor(&fakeProcessor{data: map[string]any{}}, store)

	_, err := p.Process(context.Background(), domain.Order{RecordID: "a1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.Classify(err) != domain.KindTransientInfra {
		t.Errorf("expected TRANSIENT_INFRA, got %v", err)
	}
}
