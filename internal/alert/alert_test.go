package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/mq"
)

type fakeSink struct {
	payloads []mq.AlertPayload
	err      error
}

func (f *fakeSink) PublishAlert(ctx context.Context, payload mq.AlertPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	sink := &fakeSink{}
	p := NewPublisher(sink, nil)

	failure := &domain.Failure{
		Kind:        domain.KindDomainRejection,
		Message:     "order rejected",
		ExecutionID: uuid.New(),
		EnteredAt:   time.Now(),
		ItemIndex:   2,
	}

	if err := p.Publish(context.Background(), failure); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.payloads) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(sink.payloads))
	}
	got := sink.payloads[0]
	if got.Body != failure {
		t.Error("alert body must carry the failure")
	}
	if !strings.Contains(got.Subject, failure.ExecutionID.String()) {
		t.Errorf("subject must mention execution id: %s", got.Subject)
	}
	if !strings.Contains(got.Subject, string(domain.KindDomainRejection)) {
		t.Errorf("subject must mention failure kind: %s", got.Subject)
	}
}

func TestPublisher_SinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("broker unavailable")}
	p := NewPublisher(sink, nil)

	err := p.Publish(context.Background(), &domain.Failure{ExecutionID: uuid.New()})
	if err == nil {
		t.Fatal("expected error from failed sink")
	}
}
