package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Gridflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunStart  MessageType = "run.start"
	MessageTypeRunFailed MessageType = "run.failed"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunStartPayload — payload для триггера нового прогона.
type RunStartPayload struct {
	ExecutionID   uuid.UUID `json:"execution_id"`
	TriggerSource string    `json:"trigger_source,omitempty"`
}

// AlertPayload — payload уведомления о фатальной ошибке прогона.
//
// Структура совместима с notification sink: subject + структурированное тело.
type AlertPayload struct {
	Subject string          `json:"subject"`
	Body    *domain.Failure `json:"body"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunStart публикует триггер нового прогона.
// Потребитель: Orchestrator.
func (p *Publisher) PublishRunStart(ctx context.Context, executionID uuid.UUID, triggerSource string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunStart,
		Payload:   RunStartPayload{ExecutionID: executionID, TriggerSource: triggerSource},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyStart, msg)
}

// PublishAlert публикует уведомление о фатальной ошибке прогона.
// Потребитель: мост доставки уведомлений (вне этого репозитория).
func (p *Publisher) PublishAlert(ctx context.Context, payload AlertPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunFailed,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeAlerts, RoutingKeyFailed, msg)
}
