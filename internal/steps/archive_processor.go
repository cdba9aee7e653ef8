package steps

import (
	"context"
	"time"

	"github.com/shaiso/Gridflow/internal/archive"
	"github.com/shaiso/Gridflow/internal/domain"
)

// Archiver — приёмник архивных записей (реализуется archive.Store).
type Archiver interface {
	PutJSON(ctx context.Context, key string, v any) error
}

// ArchivingProcessor — декоратор, архивирующий успешно обработанные заказы.
//
// После успешного Process заказ сохраняется в архив под ключом
// orders/order_<timestamp>.json. Сбой архивации делает обработку
// элемента TransientInfra-неудачной: результат без архивной записи
// считается потерянным.
type ArchivingProcessor struct {
	next  ItemProcessorStep
	store Archiver
	now   func() time.Time
}

// NewArchivingProcessor оборачивает processor архивацией.
func NewArchivingProcessor(next ItemProcessorStep, store Archiver) *ArchivingProcessor {
	return &ArchivingProcessor{
		next:  next,
		store: store,
		now:   time.Now,
	}
}

// Process обрабатывает заказ и архивирует результат.
func (p *ArchivingProcessor) Process(ctx context.Context, order domain.Order) (map[string]any, error) {
	data, err := p.next.Process(ctx, order)
	if err != nil {
		return nil, err
	}

	key := archive.OrderKey(p.now())
	if err := p.store.PutJSON(ctx, key, order); err != nil {
		return nil, domain.Failf(domain.KindTransientInfra, err,
			"archive order %s", order.RecordID)
	}

	return data, nil
}
