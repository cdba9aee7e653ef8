package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/mq"
)

// Sink — транспорт алертов (реализуется mq.Publisher).
type Sink interface {
	PublishAlert(ctx context.Context, payload mq.AlertPayload) error
}

// Publisher публикует алерты о фатальных ошибках прогонов.
//
// Публикация best-effort: одна попытка, без повторов. Алерт содержит
// весь контекст ошибки (kind, message, cause, execution_id, entered_at),
// чтобы оператор мог действовать без чтения сырых логов.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{sink: sink, logger: logger}
}

// Publish отправляет алерт в очередь уведомлений.
func (p *Publisher) Publish(ctx context.Context, failure *domain.Failure) error {
	payload := mq.AlertPayload{
		Subject: subject(failure),
		Body:    failure,
	}

	if err := p.sink.PublishAlert(ctx, payload); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	p.logger.Info("alert published",
		"execution_id", failure.ExecutionID,
		"kind", failure.Kind,
		"item_index", failure.ItemIndex,
	)
	return nil
}

// subject строит тему уведомления.
func subject(failure *domain.Failure) string {
	return fmt.Sprintf("[gridflow] execution %s failed: %s", failure.ExecutionID, failure.Kind)
}
