package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aerobooks/orderdesk/internal/domain"
)

// Client talks to the authoritative order API. HTTP statuses are mapped back
// onto the domain error taxonomy so callers can branch with errors.Is.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders/"+id, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var order domain.Order
		if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", id, err)
		}
		return &order, nil
	case http.StatusNotFound:
		return nil, domain.ErrNotFound
	default:
		return nil, fmt.Errorf("order service returned status %d for %s", resp.StatusCode, id)
	}
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order service returned status %d for list", resp.StatusCode)
	}

	var orders []domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("decode order list: %w", err)
	}
	return orders, nil
}

func (c *Client) SyncOrder(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(map[string]*domain.Order{"order": order})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders/sync", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync order %s: %w", order.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("order service returned status %d for sync of %s", resp.StatusCode, order.ID)
	}
	return nil
}

func (c *Client) ApplyAction(ctx context.Context, id string, action domain.Action, data domain.ActionData) (*domain.Order, error) {
	payload := struct {
		Action domain.Action `json:"action"`
		domain.ActionData
	}{Action: action, ActionData: data}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/api/orders/"+id, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apply %s to order %s: %w", action, id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var order domain.Order
		if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", id, err)
		}
		return &order, nil
	case http.StatusNotFound:
		return nil, domain.ErrNotFound
	case http.StatusConflict:
		return nil, domain.ErrInvalidTransition
	case http.StatusBadRequest:
		return nil, domain.ErrUnknownAction
	default:
		return nil, fmt.Errorf("order service returned status %d for %s on %s", resp.StatusCode, action, id)
	}
}
