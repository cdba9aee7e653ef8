// Package steps содержит конкретные реализации шагов пайплайна.
//
// # Контракты
//
// Пайплайн видит два контракта:
//
//	type ProducerStep interface {
//	    Fetch(ctx context.Context) (*domain.ProducerResult, error)
//	}
//
//	type ItemProcessorStep interface {
//	    Process(ctx context.Context, order domain.Order) (map[string]any, error)
//	}
//
// Producer сообщает о готовности результатов (Ready) и отдаёт заказы;
// Processor обрабатывает один заказ и возвращает данные результата.
//
// # Реализации
//
//   - HTTPProducer (http_producer.go) — GET внешнего endpoint'а,
//     декодирует {"results": bool, "orders": [...]}.
//   - DBProducer (db_producer.go) — читает ingested заказы из Postgres;
//     используется по умолчанию, когда внешний endpoint не задан.
//   - HTTPProcessor (http_processor.go) — POST заказа на endpoint,
//     заказы со статусом "rejected" отбрасываются как доменный отказ.
//   - ArchivingProcessor (archive_processor.go) — декоратор, сохраняющий
//     успешно обработанные заказы в S3-совместимый архив.
//
// # Классификация ошибок
//
// Шаги возвращают *domain.Error с ErrorKind:
//   - TransientInfra — транспортные сбои, 5xx, сбои хранилища; pipeline
//     может повторить вызов.
//   - DomainRejection — отказ по данным (rejected заказ, кривой payload);
//     повтор бессмысленен.
//
// Retry-логика живёт в pipeline.Invoker, шаги просто возвращают ошибки.
package steps
