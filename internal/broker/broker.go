// Package broker defines the live-only order-submission contract (§6) and
// one HTTP-backed implementation. Grounded on an HTTP JSON bridge client
// (context-scoped calls, 15s timeout, %w-wrapped errors), generalized into
// a Broker interface with a bounded-backoff wrapper around every call.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jax-trading-assistant/internal/domain"
	"jax-trading-assistant/libs/resilience"
)

// OrderAck is returned on submission.
type OrderAck struct {
	ExchangeID string
	Status     string
}

// FillNotification is a push-stream fill event (§6).
type FillNotification struct {
	ClientOrderID string
	FilledQty     float64
	FillPrice     float64
	Timestamp     time.Time
	Terminal      bool
}

// Broker is the live-only order-submission and position interface.
type Broker interface {
	Submit(ctx context.Context, order *domain.Order) (OrderAck, error)
	Cancel(ctx context.Context, exchangeID string) error
	Positions(ctx context.Context) ([]domain.Position, error)
	Fills(ctx context.Context) (<-chan FillNotification, error)
}

// HTTPBroker talks to an HTTP JSON order-routing bridge, with every call
// wrapped in a circuit breaker per §5's "External I/O failure" policy:
// bounded retries are the caller's responsibility (via the breaker's
// half-open probing), but a tripped breaker fails fast instead of piling
// up blocked calls against a dead bridge.
type HTTPBroker struct {
	baseURL string
	client  *http.Client
	cb      *resilience.CircuitBreaker
}

// NewHTTPBroker constructs a broker client against an order-routing bridge
// at baseURL.
func NewHTTPBroker(baseURL string) *HTTPBroker {
	cfg := resilience.DefaultConfig("broker-http")
	cfg.MaxRequests = 1
	cfg.MaxFailures = 3
	cfg.Interval = time.Minute
	return &HTTPBroker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		cb:      resilience.NewCircuitBreaker(cfg),
	}
}

func (b *HTTPBroker) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("broker: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("broker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	result, err := b.cb.Execute(func() (any, error) {
		return b.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("broker: %s %s: %w", method, path, err)
	}
	return result.(*http.Response), nil
}

type submitRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
	Type          string  `json:"type"`
	LimitPrice    *float64 `json:"limit_price,omitempty"`
	StopPrice     *float64 `json:"stop_price,omitempty"`
	TimeInForce   string  `json:"time_in_force"`
}

type submitResponse struct {
	ExchangeID string `json:"exchange_id"`
	Status     string `json:"status"`
}

// Submit posts a new order to the bridge and returns its broker-assigned
// acknowledgement.
func (b *HTTPBroker) Submit(ctx context.Context, order *domain.Order) (OrderAck, error) {
	resp, err := b.do(ctx, http.MethodPost, "/orders", submitRequest{
		ClientOrderID: order.ID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Quantity:      order.Quantity,
		Type:          string(order.Type),
		LimitPrice:    order.LimitPrice,
		StopPrice:     order.StopPrice,
		TimeInForce:   string(order.TIF),
	})
	if err != nil {
		return OrderAck{}, err
	}
	defer resp.Body.Close()

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return OrderAck{}, fmt.Errorf("broker: decode submit response: %w", err)
	}
	return OrderAck{ExchangeID: parsed.ExchangeID, Status: parsed.Status}, nil
}

// Cancel requests cancellation of an exchange-assigned order.
func (b *HTTPBroker) Cancel(ctx context.Context, exchangeID string) error {
	resp, err := b.do(ctx, http.MethodDelete, "/orders/"+exchangeID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Positions fetches the broker's current view of open positions.
func (b *HTTPBroker) Positions(ctx context.Context) ([]domain.Position, error) {
	resp, err := b.do(ctx, http.MethodGet, "/positions", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var positions []domain.Position
	if err := json.NewDecoder(resp.Body).Decode(&positions); err != nil {
		return nil, fmt.Errorf("broker: decode positions: %w", err)
	}
	return positions, nil
}

// Fills is not implemented for the HTTP bridge transport (it is push-based
// over a separate channel in production); live engine callers should treat
// a nil channel as "no fill notifications available" and fall back to
// polling Positions.
func (b *HTTPBroker) Fills(context.Context) (<-chan FillNotification, error) {
	return nil, fmt.Errorf("broker: fill subscription not supported over HTTP bridge transport")
}
