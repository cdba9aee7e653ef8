package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transition — одна запись журнала переходов состояний execution.
//
// Журнал append-only: записи никогда не изменяются и не читаются
// оркестратором для принятия решений — только для аудита и отладки.
type Transition struct {
	// ExecutionID — идентификатор execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// From — состояние до перехода.
	From State `json:"from"`

	// To — состояние после перехода.
	To State `json:"to"`

	// At — время перехода.
	At time.Time `json:"at"`
}
