// Package marketplace is the REST client for the seller marketplace API.
// Calls are single-shot: they classify HTTP outcomes but never retry, so the
// caller decides the retry policy per call site.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://marketplace-api.wildberries.ru"

// StatusError is a non-2xx HTTP response from the marketplace API.
type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("status: %s, code: %d, error: %s", e.Status, e.StatusCode, e.ErrorMessage)
}

// IsRateLimit reports whether err is the API's too-many-requests signal.
func IsRateLimit(err error) bool {
	var se StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests
}

// Order is one new order returned by the marketplace.
type Order struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// Client calls the marketplace REST API.
type Client struct {
	Token   string
	BaseURL string
	client  *http.Client
}

// NewClient creates a client with the production base URL and the API's
// request timeout.
func NewClient(token string) *Client {
	return &Client{
		Token:   token,
		BaseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: 45 * time.Second,
		},
	}
}

// WithBaseURL points the client at a different API host and returns the
// client for chaining. Used by tests against httptest servers.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.BaseURL = baseURL
	return c
}

// FetchNewOrders returns the orders awaiting fulfillment. Orders reported
// without a quantity are treated as single-item orders.
func (c *Client) FetchNewOrders(ctx context.Context) ([]Order, error) {
	var resp struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v3/orders/new", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch new orders: %w", err)
	}
	for i := range resp.Orders {
		if resp.Orders[i].Quantity == 0 {
			resp.Orders[i].Quantity = 1
		}
	}
	return resp.Orders, nil
}

// CreateShipment creates a named shipment and returns its ID.
//
// The call is not idempotent: a retry after a timeout whose request actually
// succeeded server-side creates a duplicate shipment. Accepted risk; there is
// no idempotency-key support on this endpoint.
func (c *Client) CreateShipment(ctx context.Context, name string) (string, error) {
	req := map[string]string{"name": name}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v3/supplies", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create shipment: %w", err)
	}
	return resp.ID, nil
}

// AssignOrders attaches orders to a shipment. Safe to retry.
func (c *Client) AssignOrders(ctx context.Context, shipmentID string, orderIDs []int64) error {
	req := map[string][]int64{"orders": orderIDs}
	path := fmt.Sprintf("/api/marketplace/v3/supplies/%s/orders", shipmentID)
	if err := c.do(ctx, http.MethodPatch, path, req, nil); err != nil {
		return fmt.Errorf("failed to assign orders to shipment %s: %w", shipmentID, err)
	}
	return nil
}

// MarkDelivered hands the shipment over for delivery. Safe to retry.
func (c *Client) MarkDelivered(ctx context.Context, shipmentID string) error {
	path := fmt.Sprintf("/api/v3/supplies/%s/deliver", shipmentID)
	if err := c.do(ctx, http.MethodPatch, path, nil, nil); err != nil {
		return fmt.Errorf("failed to mark shipment %s delivered: %w", shipmentID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusError{
			StatusCode:   resp.StatusCode,
			Status:       resp.Status,
			ErrorMessage: string(data),
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
