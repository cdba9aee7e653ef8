package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus — результат обработки одного item.
type OutcomeStatus string

const (
	// OutcomeSucceeded — item обработан успешно.
	OutcomeSucceeded OutcomeStatus = "SUCCEEDED"

	// OutcomeFailed — обработка item завершилась ошибкой.
	OutcomeFailed OutcomeStatus = "FAILED"
)

// Outcome — исход обработки одного item.
//
// Ошибка одного item не влияет на остальные: каждый item получает
// свой Outcome независимо (инвариант изоляции).
type Outcome struct {
	// Status — SUCCEEDED или FAILED.
	Status OutcomeStatus `json:"status"`

	// Data — результат обработки (при успехе).
	Data map[string]any `json:"data,omitempty"`

	// ErrorKind — классификация ошибки (при неудаче).
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Message — текст ошибки (при неудаче).
	Message string `json:"message,omitempty"`

	// Cause — текст первопричины, если есть.
	Cause string `json:"cause,omitempty"`
}

// Succeeded возвращает true для успешного исхода.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded
}

// SucceededOutcome создаёт успешный исход.
func SucceededOutcome(data map[string]any) Outcome {
	return Outcome{Status: OutcomeSucceeded, Data: data}
}

// FailedOutcome создаёт исход-ошибку из error.
func FailedOutcome(err error) Outcome {
	out := Outcome{
		Status:    OutcomeFailed,
		ErrorKind: Classify(err),
		Message:   err.Error(),
	}
	var derr *Error
	if errors.As(err, &derr) {
		out.Message = derr.Message
		if derr.Cause != nil {
			out.Cause = derr.Cause.Error()
		}
	}
	return out
}

// Failure — структурированная запись о фатальной ошибке execution.
//
// Публикуется AlertPublisher'ом ровно один раз на завершившийся
// с ошибкой execution. Содержит достаточно контекста, чтобы оператор
// мог действовать без чтения сырых логов.
type Failure struct {
	// Kind — классификация ошибки.
	Kind ErrorKind `json:"kind"`

	// Message — описание ошибки.
	Message string `json:"message"`

	// Cause — первопричина, если есть.
	Cause string `json:"cause,omitempty"`

	// ExecutionID — идентификатор execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// EnteredAt — время последнего перехода состояния перед ошибкой.
	EnteredAt time.Time `json:"entered_at"`

	// ItemIndex — индекс item'а, вызвавшего ошибку (−1 если ошибка не item-уровня).
	ItemIndex int `json:"item_index"`
}

// FailureFromOutcome строит Failure из исхода item'а.
func FailureFromOutcome(execID uuid.UUID, enteredAt time.Time, index int, out Outcome) *Failure {
	return &Failure{
		Kind:        out.ErrorKind,
		Message:     out.Message,
		Cause:       out.Cause,
		ExecutionID: execID,
		EnteredAt:   enteredAt,
		ItemIndex:   index,
	}
}

// FailureFromError строит Failure из ошибки уровня execution.
func FailureFromError(execID uuid.UUID, enteredAt time.Time, err error) *Failure {
	f := &Failure{
		Kind:        Classify(err),
		Message:     err.Error(),
		ExecutionID: execID,
		EnteredAt:   enteredAt,
		ItemIndex:   -1,
	}
	var derr *Error
	if errors.As(err, &derr) {
		f.Message = derr.Message
		if derr.Cause != nil {
			f.Cause = derr.Cause.Error()
		}
	}
	return f
}
