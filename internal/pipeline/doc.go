// Package pipeline содержит конечный автомат прогона и его коллабораторов.
//
// # Обзор
//
// Прогон (execution) выполняется оркестратором как явный автомат:
//
//	FETCHING_RESULTS ⇄ WAITING_TO_RETRY
//	FETCHING_RESULTS → FANNING_OUT → SUCCEEDED | FAILED
//
// Коллабораторы:
//   - Invoker (invoker.go) — вызов шага с ограниченными повторами;
//     повторяются только TRANSIENT_INFRA ошибки.
//   - Waiter (waiter.go) — прерываемое ожидание фиксированного интервала.
//   - FanOut (fanout.go) — параллельная обработка items с ограничением
//     параллелизма, изоляцией ошибок и сохранением порядка исходов.
//   - Orchestrator (orchestrator.go) — сам автомат: опрос producer'а,
//     fan-out, терминальные переходы, публикация алертов.
//   - Service (service.go) — сервисная обвязка: consumer очереди
//     runs.start, fallback-опрос pending executions в БД, запуск
//     независимых прогонов в горутинах.
//
// # Гарантии
//
//   - Каждый item обрабатывается ровно один раз; Outcomes[i] соответствует
//     Items[i].
//   - Ошибка/паника одного item'а не влияет на остальные; ошибкой прогона
//     становится неуспешный item с наименьшим индексом.
//   - Прогон целиком ограничен RunTimeout; истечение — FAILED(TIMEOUT).
//   - На каждый неуспешный прогон публикуется ровно один алерт;
//     сбой алерта или recorder'а не блокирует терминальный переход.
//   - Повторный запуск терминального execution — ErrExecutionFinished,
//     без побочных эффектов.
package pipeline
