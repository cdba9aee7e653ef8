// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.start   — триггер нового прогона пайплайна
//   - run.failed  — уведомление о фатальной ошибке прогона
//
// Exchanges:
//   - gridflow.runs    — триггеры прогонов
//   - gridflow.alerts  — уведомления об ошибках
//   - gridflow.dlq     — dead letter queue
package mq
