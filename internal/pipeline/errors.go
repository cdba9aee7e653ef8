package pipeline

import "errors"

// Ошибки пайплайна.
var (
	// ErrExecutionFinished — попытка повторно запустить терминальный execution.
	ErrExecutionFinished = errors.New("execution already finished")

	// ErrExecutionNotFound — execution не найден в БД.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionAlreadyActive — execution уже обрабатывается.
	ErrExecutionAlreadyActive = errors.New("execution already being processed")

	// ErrExecutionNotPending — execution не в статусе PENDING.
	ErrExecutionNotPending = errors.New("execution is not in PENDING status")
)
