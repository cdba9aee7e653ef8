package domain

// ExecutionStatus — статус выполнения execution.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
type ExecutionStatus string

const (
	// ExecutionStatusPending — execution создан, но ещё не начал выполняться.
	ExecutionStatusPending ExecutionStatus = "PENDING"

	// ExecutionStatusRunning — execution в процессе выполнения.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusSucceeded — execution успешно завершён.
	ExecutionStatusSucceeded ExecutionStatus = "SUCCEEDED"

	// ExecutionStatusFailed — execution завершился с ошибкой.
	ExecutionStatusFailed ExecutionStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (execution завершён).
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSucceeded, ExecutionStatusFailed:
		return true
	default:
		return false
	}
}

// State — внутреннее состояние конечного автомата пайплайна.
//
// Переходы:
//
//	FETCHING_RESULTS ⇄ WAITING_TO_RETRY
//	FETCHING_RESULTS → FANNING_OUT → SUCCEEDED | FAILED
//
// SUCCEEDED и FAILED — терминальные, из них переходов нет.
type State string

const (
	// StateFetchingResults — опрос producer'а на готовность результатов.
	StateFetchingResults State = "FETCHING_RESULTS"

	// StateWaitingToRetry — ожидание фиксированного интервала перед повторным опросом.
	StateWaitingToRetry State = "WAITING_TO_RETRY"

	// StateFanningOut — параллельная обработка items.
	StateFanningOut State = "FANNING_OUT"

	// StateSucceeded — все items обработаны успешно.
	StateSucceeded State = "SUCCEEDED"

	// StateFailed — execution завершился с ошибкой.
	StateFailed State = "FAILED"
)

// IsTerminal возвращает true, если состояние терминальное.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}
