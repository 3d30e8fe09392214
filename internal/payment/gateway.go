// Package payment adapts the external payment gateway. Calls happen only
// after the owning transition has committed; a failure here is logged and
// retried by the event consumer, never propagated back into the ledger.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Gateway interface {
	Authorize(ctx context.Context, reservationID string, amountCents int64) error
	Capture(ctx context.Context, reservationID string) error
	Refund(ctx context.Context, reservationID string, pct float64) error
}

type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *HTTPGateway) Authorize(ctx context.Context, reservationID string, amountCents int64) error {
	return g.post(ctx, "/authorize", map[string]interface{}{
		"reservation_id": reservationID,
		"amount_cents":   amountCents,
	})
}

func (g *HTTPGateway) Capture(ctx context.Context, reservationID string) error {
	return g.post(ctx, "/capture", map[string]interface{}{
		"reservation_id": reservationID,
	})
}

func (g *HTTPGateway) Refund(ctx context.Context, reservationID string, pct float64) error {
	return g.post(ctx, "/refund", map[string]interface{}{
		"reservation_id": reservationID,
		"percentage":     pct,
	})
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("payment gateway %s returned %d", path, resp.StatusCode)
	}
	return nil
}

var _ Gateway = (*HTTPGateway)(nil)
