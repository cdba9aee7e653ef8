package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind — классификация ошибок пайплайна.
//
// Только TRANSIENT_INFRA повторяется автоматически (внутри Invoker'а,
// ограниченное число попыток). Остальные виды сразу поднимаются
// к оркестратору.
type ErrorKind string

const (
	// KindTransientInfra — временная инфраструктурная ошибка (сеть, 5xx).
	KindTransientInfra ErrorKind = "TRANSIENT_INFRA"

	// KindDomainRejection — бизнес-отказ (например, отклонённый заказ). Не повторяется.
	KindDomainRejection ErrorKind = "DOMAIN_REJECTION"

	// KindTimeout — execution превысил общий wall-clock таймаут.
	KindTimeout ErrorKind = "TIMEOUT"

	// KindCancelled — execution отменён извне.
	KindCancelled ErrorKind = "CANCELLED"

	// KindInvalidState — ошибка программирования: повторный запуск терминального execution.
	KindInvalidState ErrorKind = "INVALID_STATE"
)

// Ошибки домена.
var (
	// ErrInvalidState — операция невозможна для терминального execution.
	ErrInvalidState = errors.New("execution is in terminal state")
)

// Error — ошибка с классификацией.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error реализует error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap возвращает первопричину.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Failf создаёт классифицированную ошибку.
func Failf(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Classify определяет ErrorKind ошибки.
//
// Уже классифицированные ошибки сохраняют свой kind; ошибки контекста
// превращаются в TIMEOUT/CANCELLED; всё остальное считается
// TRANSIENT_INFRA (безопасно повторить).
func Classify(err error) ErrorKind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransientInfra
}

// IsRetryable возвращает true, если ошибку можно повторить автоматически.
func IsRetryable(err error) bool {
	return Classify(err) == KindTransientInfra
}
