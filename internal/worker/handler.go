package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aerobooks/orderdesk/internal/domain"
)

// NotificationHandler turns order status-changed events into customer
// emails. Only a subset of actions notify; the rest are consumed silently so
// the topic stays a complete audit trail.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal status changed event: %w", err)
	}

	subject, body, notify := composeEmail(event)
	if !notify {
		h.logger.Info("no notification for action", "order_id", event.OrderID, "action", event.Action)
		return nil
	}

	if event.CustomerEmail == "" {
		h.logger.Warn("order has no customer email, skipping notification",
			"order_id", event.OrderID, "action", event.Action)
		return nil
	}

	if err := h.sendEmail(ctx, event.CustomerEmail, subject, body); err != nil {
		h.logger.Error("failed to send notification", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send notification for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("customer notified", "order_id", event.OrderID, "action", event.Action)
	return nil
}

func composeEmail(event domain.OrderStatusChangedEvent) (subject, body string, notify bool) {
	switch event.Action {
	case domain.ActionDispatch:
		subject = "Your order has been dispatched: " + event.OrderID
		body = fmt.Sprintf("Hello %s,\n\nYour order %s is on its way.", event.CustomerName, event.OrderID)
		if event.TrackingNumber != "" {
			body += "\nTracking number: " + event.TrackingNumber
		}
		return subject, body, true

	case domain.ActionShip:
		subject = "Your order has shipped: " + event.OrderID
		body = fmt.Sprintf("Hello %s,\n\nYour order %s has shipped.", event.CustomerName, event.OrderID)
		if event.TrackingNumber != "" {
			body += "\nTracking number: " + event.TrackingNumber
		}
		return subject, body, true

	case domain.ActionCancel:
		subject = "Your order has been cancelled: " + event.OrderID
		body = fmt.Sprintf("Hello %s,\n\nYour order %s has been cancelled.", event.CustomerName, event.OrderID)
		if event.Notes != "" {
			body += "\nReason: " + event.Notes
		}
		return subject, body, true

	case domain.ActionRefund:
		subject = "Your refund has been processed: " + event.OrderID
		body = fmt.Sprintf("Hello %s,\n\nThe payment for order %s has been refunded.", event.CustomerName, event.OrderID)
		return subject, body, true
	}

	return "", "", false
}

func (h *NotificationHandler) sendEmail(ctx context.Context, to, subject, body string) error {
	payload := map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
