package steps

import (
	"context"

	"github.com/shaiso/Gridflow/internal/domain"
)

// ProducerStep — источник заказов для прогона пайплайна.
//
// Fetch возвращает ProducerResult: флаг готовности и список заказов.
// Ready == false означает "результатов ещё нет, опроси позже" —
// это не ошибка. Ошибка возвращается только при сбое самого вызова.
type ProducerStep interface {
	Fetch(ctx context.Context) (*domain.ProducerResult, error)
}

// ItemProcessorStep — обработчик одного заказа.
//
// Process возвращает данные результата либо ошибку. Классификация
// ошибки (TransientInfra / DomainRejection) задаётся через domain.Error;
// retry-логика живёт в pipeline, шаг просто возвращает ошибку.
type ItemProcessorStep interface {
	Process(ctx context.Context, order domain.Order) (map[string]any, error)
}
