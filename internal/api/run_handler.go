package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Gridflow/internal/domain"
	"github.com/shaiso/Gridflow/internal/repo"
)

// ListRuns возвращает список executions с фильтрацией.
// GET /api/v1/runs?status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.ExecutionFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ExecutionStatus(status)
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = int(mustParseInt(limitStr, 50))
	} else {
		filter.Limit = 50
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = int(mustParseInt(offsetStr, 0))
	}

	execs, err := h.executions.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionResponse, len(execs))
	for i := range execs {
		result[i] = ExecutionFromDomain(execs[i])
	}

	List(w, result, len(result))
}

// StartRun создаёт новый execution и публикует триггер прогона.
// POST /api/v1/runs
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	// Идемпотентность: существующий execution с тем же ключом возвращается как есть.
	if req.IdempotencyKey != "" {
		existing, err := h.executions.GetByIdempotencyKey(r.Context(), req.IdempotencyKey)
		if err == nil && existing != nil {
			Success(w, ExecutionFromDomain(*existing))
			return
		}
	}

	exec := domain.NewExecution("api")
	exec.IdempotencyKey = req.IdempotencyKey

	if err := h.executions.Create(r.Context(), exec); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRunStart(r.Context(), exec.ID, exec.TriggerSource); err != nil {
			// Polling fallback оркестратора подхватит PENDING execution.
			h.logger.Warn("failed to publish run.start", "execution_id", exec.ID, "error", err)
		}
	}

	Created(w, ExecutionFromDomain(*exec))
}

// GetRun возвращает execution по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	exec, err := h.executions.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, ExecutionFromDomain(*exec))
}

// ListRunTransitions возвращает журнал переходов execution.
// GET /api/v1/runs/{id}/transitions
func (h *Handler) ListRunTransitions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что execution существует
	if _, err := h.executions.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	transitions, err := h.transitions.ListByExecutionID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TransitionResponse, len(transitions))
	for i := range transitions {
		result[i] = TransitionFromDomain(transitions[i])
	}

	List(w, result, len(result))
}

// mustParseInt парсит строку в int с дефолтным значением.
func mustParseInt(s string, defaultVal int64) int64 {
	if n, err := json.Number(s).Int64(); err == nil {
		return n
	}
	return defaultVal
}
