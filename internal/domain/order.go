package domain

import (
	"time"

	"github.com/google/uuid"
)

// Статусы заказов, приходящих от producer'а.
const (
	OrderStatusAccepted = "accepted"
	OrderStatusRejected = "rejected"
)

// Order — единица работы пайплайна (item).
//
// Заказы попадают в систему двумя путями:
//   - Через ingestion API (POST /api/v1/orders) — сохраняются в БД
//     с горизонтом хранения ExpiresAt.
//   - Из ответа ProducerStep — набор заказов для обработки в рамках
//     одного execution.
//
// Для оркестратора заказ непрозрачен: он передаётся в ItemProcessorStep
// как есть, без интерпретации полей.
type Order struct {
	// RecordID — уникальный идентификатор записи (обязателен при ingestion).
	RecordID string `json:"record_id" validate:"required"`

	// Status — статус заказа: "accepted" или "rejected".
	Status string `json:"status,omitempty" validate:"omitempty,oneof=accepted rejected"`

	// Power — объём мощности в заказе.
	Power float64 `json:"power,omitempty"`

	// Price — цена заказа.
	Price float64 `json:"price,omitempty"`

	// Attrs — произвольные дополнительные поля записи.
	Attrs map[string]any `json:"attrs,omitempty"`

	// CreatedAt — время приёма записи.
	CreatedAt time.Time `json:"created_at,omitempty"`

	// ExpiresAt — горизонт хранения: после этого времени запись
	// считается устаревшей и не попадает в выборку producer'а.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsExpired проверяет, истёк ли горизонт хранения.
func (o *Order) IsExpired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// NewRecordID генерирует идентификатор записи, если клиент его не прислал.
func NewRecordID() string {
	return uuid.New().String()
}

// ProducerResult — ответ ProducerStep.
type ProducerResult struct {
	// Ready — готовы ли результаты. Если false, оркестратор
	// ждёт фиксированный интервал и опрашивает снова.
	Ready bool `json:"results"`

	// Orders — набор заказов для обработки. Заполняется только при Ready=true.
	Orders []Order `json:"orders,omitempty"`
}
