package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — контекст одного прогона пайплайна.
//
// Execution создаётся когда:
// - Scheduler создаёт прогон по расписанию
// - Пользователь запускает прогон вручную (через API/CLI)
//
// Контекстом монопольно владеет оркестратор этого прогона:
// никакой другой компонент не читает и не изменяет его напрямую.
// FanOut и Invoker получают узкое представление (payload на входе,
// Outcome на выходе) и полный контекст не видят.
type Execution struct {
	// ID — уникальный идентификатор execution. Назначается при создании,
	// далее неизменен.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// State — текущее состояние конечного автомата.
	State State `json:"state"`

	// EnteredAt — время последнего перехода состояния.
	// Обновляется на каждом переходе.
	EnteredAt time.Time `json:"entered_at"`

	// ResultsReady — флаг готовности результатов из ответа producer'а.
	// Монотонный: false→true ровно один раз за прогон, назад не откатывается.
	ResultsReady bool `json:"results_ready"`

	// Items — упорядоченный набор заказов для обработки.
	// Заполняется один раз, когда ResultsReady становится true;
	// после этого неизменен.
	Items []Order `json:"items,omitempty"`

	// Outcomes — исходы обработки, по одному на каждый item.
	// Заполняется FanOut'ом; Outcomes[i] соответствует Items[i].
	Outcomes []Outcome `json:"outcomes,omitempty"`

	// Failure — структурированная ошибка прогона.
	// Устанавливается максимум один раз; после установки не очищается.
	Failure *Failure `json:"failure,omitempty"`

	// TriggerSource — источник запуска ("schedule", "api", "cli") для аудита.
	TriggerSource string `json:"trigger_source,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Например, для scheduled прогонов: "{schedule_id}_{next_due_at}"
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания execution.
	CreatedAt time.Time `json:"created_at"`
}

// NewExecution создаёт новый execution в статусе PENDING.
func NewExecution(triggerSource string) *Execution {
	now := time.Now()
	return &Execution{
		ID:            uuid.New(),
		Status:        ExecutionStatusPending,
		State:         StateFetchingResults,
		EnteredAt:     now,
		TriggerSource: triggerSource,
		CreatedAt:     now,
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// IsFinished возвращает true, если execution завершён.
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkRunning переводит execution в статус RUNNING.
func (e *Execution) MarkRunning() {
	now := time.Now()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
}

// MarkSucceeded переводит execution в статус SUCCEEDED.
func (e *Execution) MarkSucceeded() {
	now := time.Now()
	e.Status = ExecutionStatusSucceeded
	e.State = StateSucceeded
	e.EnteredAt = now
	e.FinishedAt = &now
}

// MarkFailed переводит execution в статус FAILED с ошибкой.
// Уже установленный Failure не перезаписывается.
func (e *Execution) MarkFailed(f *Failure) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.State = StateFailed
	e.EnteredAt = now
	e.FinishedAt = &now
	if e.Failure == nil {
		e.Failure = f
	}
}

// SetItems фиксирует items и поднимает флаг готовности.
// Items устанавливаются ровно один раз за прогон.
func (e *Execution) SetItems(items []Order) {
	if e.ResultsReady {
		return
	}
	e.ResultsReady = true
	e.Items = items
}

// Transition переводит автомат в новое состояние и обновляет EnteredAt.
func (e *Execution) Transition(to State) {
	e.State = to
	e.EnteredAt = time.Now()
}

// RunResult — терминальный результат прогона, возвращаемый вызывающей стороне.
type RunResult struct {
	// ExecutionID — идентификатор прогона.
	ExecutionID uuid.UUID `json:"execution_id"`

	// Succeeded — завершился ли прогон успешно.
	Succeeded bool `json:"succeeded"`

	// Reason — причина ошибки (пусто при успехе).
	Reason string `json:"reason,omitempty"`
}
