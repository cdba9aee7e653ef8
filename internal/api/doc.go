// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (хранилища, publisher, verifier, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (recovery, auth, logging)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - order_handler.go    — ingestion батчей заказов (/orders)
//   - run_handler.go      — обработчики для /runs
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для приёма заказов, запуска и
// наблюдения прогонов и управления расписаниями.
package api
