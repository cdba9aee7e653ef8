package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shaiso/Gridflow/internal/domain"
)

// Максимальный размер тела ingestion запроса.
const maxIngestBody = 10 * 1024 * 1024 // 10 MB

// IngestOrders принимает батч заказов.
// POST /api/v1/orders
//
// Тело запроса — JSON-массив заказов; каждый заказ обязан содержать
// record_id. Заказы сохраняются с горизонтом хранения retention,
// после которого producer их не видит.
func (h *Handler) IngestOrders(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}
	if len(body) == 0 {
		BadRequest(w, "request body is required")
		return
	}

	var orders []domain.Order
	if err := json.Unmarshal(body, &orders); err != nil {
		BadRequest(w, "request body must be a JSON array of orders")
		return
	}
	if len(orders) == 0 {
		BadRequest(w, "at least one order is required")
		return
	}

	for i := range orders {
		if err := h.validate.Struct(&orders[i]); err != nil {
			BadRequest(w, validationMessage(i, err))
			return
		}
	}

	if err := h.orders.CreateBatch(r.Context(), orders, h.retention); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("orders ingested", "count", len(orders))
	Created(w, IngestResponse{
		Message: "orders accepted",
		Count:   len(orders),
	})
}

// ListOrders возвращает активные (неустаревшие) заказы.
// GET /api/v1/orders?limit=...
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit = int(mustParseInt(limitStr, 100))
	}

	orders, err := h.orders.ListActive(r.Context(), time.Now(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, orders, len(orders))
}

// validationMessage строит сообщение об ошибке валидации заказа.
func validationMessage(index int, err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		field := verrs[0].Field()
		switch verrs[0].Tag() {
		case "required":
			return fmt.Sprintf("order %d: %s is required", index, field)
		case "oneof":
			return fmt.Sprintf("order %d: %s must be one of [%s]", index, field, verrs[0].Param())
		}
		return fmt.Sprintf("order %d: %s is invalid", index, field)
	}
	return fmt.Sprintf("order %d is invalid", index)
}
