package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shaiso/Gridflow/internal/domain"
)

// HTTPProcessor — обработчик заказа поверх удалённого HTTP endpoint'а.
//
// Заказы со статусом "rejected" отбрасываются до вызова endpoint'а —
// это доменный отказ, повторять его бессмысленно. Остальные заказы
// отправляются POST'ом; транспортные ошибки и 5xx — TransientInfra,
// прочие не-2xx — DomainRejection.
type HTTPProcessor struct {
	url    string
	client *http.Client
}

// NewHTTPProcessor создаёт processor для указанного endpoint'а.
func NewHTTPProcessor(url string, client *http.Client) *HTTPProcessor {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPProcessor{url: url, client: client}
}

// Process обрабатывает один заказ.
func (p *HTTPProcessor) Process(ctx context.Context, order domain.Order) (map[string]any, error) {
	if order.Status == domain.OrderStatusRejected {
		return nil, domain.Failf(domain.KindDomainRejection, nil,
			"order %s has status rejected", order.RecordID)
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, domain.Failf(domain.KindDomainRejection, err,
			"marshal order %s", order.RecordID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.Failf(domain.KindTransientInfra, err, "build processor request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.Failf(domain.KindTransientInfra, err,
			"processor request failed for %s", order.RecordID)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.Failf(domain.KindTransientInfra, err, "read processor response")
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, domain.Failf(domain.KindTransientInfra, nil,
			"processor returned HTTP %d for %s", resp.StatusCode, order.RecordID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, domain.Failf(domain.KindDomainRejection, nil,
			"processor rejected order %s: HTTP %d", order.RecordID, resp.StatusCode)
	}

	data := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, domain.Failf(domain.KindDomainRejection, err,
				"malformed processor response for %s", order.RecordID)
		}
	}
	return data, nil
}

// String возвращает описание processor'а для логов.
func (p *HTTPProcessor) String() string {
	return fmt.Sprintf("http-processor(%s)", p.url)
}
