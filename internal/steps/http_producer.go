package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Gridflow/internal/domain"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPProducer — producer поверх удалённого HTTP endpoint'а.
//
// GET url возвращает JSON вида:
//
//	{
//	    "results": true,
//	    "orders": [{"record_id": "...", "status": "accepted", ...}, ...]
//	}
//
// "results": false означает, что результаты ещё не готовы.
// Транспортные ошибки и не-2xx статусы — TransientInfra,
// некорректный payload — DomainRejection.
type HTTPProducer struct {
	url    string
	client *http.Client
}

// NewHTTPProducer создаёт producer для указанного endpoint'а.
func NewHTTPProducer(url string, client *http.Client) *HTTPProducer {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPProducer{url: url, client: client}
}

// Fetch запрашивает результаты у producer'а.
func (p *HTTPProducer) Fetch(ctx context.Context) (*domain.ProducerResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, domain.Failf(domain.KindTransientInfra, err, "build producer request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.Failf(domain.KindTransientInfra, err, "producer request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.Failf(domain.KindTransientInfra, err, "read producer response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.Failf(domain.KindTransientInfra, nil,
			"producer returned HTTP %d", resp.StatusCode)
	}

	var result domain.ProducerResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, domain.Failf(domain.KindDomainRejection, err, "malformed producer payload")
	}
	return &result, nil
}

// String возвращает описание producer'а для логов.
func (p *HTTPProducer) String() string {
	return fmt.Sprintf("http-producer(%s)", p.url)
}
