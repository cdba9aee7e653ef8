package steps

import (
	"context"
	"time"

	"github.com/shaiso/Gridflow/internal/domain"
)

// Сколько заказов забирает DBProducer за один Fetch.
const defaultFetchLimit = 1000

// OrderLister — источник активных заказов (реализуется repo.OrderRepo).
type OrderLister interface {
	ListActive(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
}

// DBProducer — producer поверх ingested заказов в Postgres.
//
// Используется по умолчанию, когда внешний producer endpoint не задан.
// Результаты "готовы", когда есть хотя бы один неустаревший заказ.
type DBProducer struct {
	orders OrderLister
	limit  int
	now    func() time.Time
}

// NewDBProducer создаёт producer поверх хранилища заказов.
func NewDBProducer(orders OrderLister) *DBProducer {
	return &DBProducer{
		orders: orders,
		limit:  defaultFetchLimit,
		now:    time.Now,
	}
}

// Fetch читает активные заказы из хранилища.
func (p *DBProducer) Fetch(ctx context.Context) (*domain.ProducerResult, error) {
	orders, err := p.orders.ListActive(ctx, p.now(), p.limit)
	if err != nil {
		return nil, domain.Failf(domain.KindTransientInfra, err, "list active orders")
	}
	return &domain.ProducerResult{
		Ready:  len(orders) > 0,
		Orders: orders,
	}, nil
}
