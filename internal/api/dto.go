package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
)

// Order DTOs

// IngestResponse — ответ на приём батча заказов.
type IngestResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Run DTOs

// StartRunRequest — запрос на запуск прогона.
type StartRunRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ExecutionResponse — ответ с execution.
type ExecutionResponse struct {
	ID             uuid.UUID        `json:"id"`
	Status         string           `json:"status"`
	State          string           `json:"state"`
	ResultsReady   bool             `json:"results_ready"`
	Items          int              `json:"items"`
	Outcomes       []domain.Outcome `json:"outcomes,omitempty"`
	Failure        *domain.Failure  `json:"failure,omitempty"`
	TriggerSource  string           `json:"trigger_source,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ExecutionFromDomain конвертирует domain.Execution в ExecutionResponse.
func ExecutionFromDomain(e domain.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:             e.ID,
		Status:         string(e.Status),
		State:          string(e.State),
		ResultsReady:   e.ResultsReady,
		Items:          len(e.Items),
		Outcomes:       e.Outcomes,
		Failure:        e.Failure,
		TriggerSource:  e.TriggerSource,
		IdempotencyKey: e.IdempotencyKey,
		StartedAt:      e.StartedAt,
		FinishedAt:     e.FinishedAt,
		CreatedAt:      e.CreatedAt,
	}
}

// TransitionResponse — ответ с переходом состояния.
type TransitionResponse struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// TransitionFromDomain конвертирует domain.Transition в TransitionResponse.
func TransitionFromDomain(t domain.Transition) TransitionResponse {
	return TransitionResponse{
		From: string(t.From),
		To:   string(t.To),
		At:   t.At,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string `json:"name"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// ScheduleResponse — ответ со schedule.
type ScheduleResponse struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name,omitempty"`
	CronExpr        string     `json:"cron_expr,omitempty"`
	IntervalSec     int        `json:"interval_sec,omitempty"`
	Timezone        string     `json:"timezone"`
	Enabled         bool       `json:"enabled"`
	NextDueAt       *time.Time `json:"next_due_at,omitempty"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastExecutionID *uuid.UUID `json:"last_execution_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:              s.ID,
		Name:            s.Name,
		CronExpr:        s.CronExpr,
		IntervalSec:     s.IntervalSec,
		Timezone:        s.Timezone,
		Enabled:         s.Enabled,
		NextDueAt:       s.NextDueAt,
		LastRunAt:       s.LastRunAt,
		LastExecutionID: s.LastExecutionID,
		CreatedAt:       s.CreatedAt,
	}
}
