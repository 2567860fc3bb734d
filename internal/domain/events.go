package domain

import "time"

// OrderStatusChangedEvent is published after every successful action on the
// authoritative store. The notification worker turns a subset of these into
// customer emails.
type OrderStatusChangedEvent struct {
	OrderID        string        `json:"order_id"`
	Action         Action        `json:"action"`
	Status         Status        `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email"`
	TrackingNumber string        `json:"tracking_number,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
