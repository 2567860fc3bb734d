package domain

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusDispatched Status = "dispatched"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further fulfillment transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusDelivered
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusDispatched,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is an axis independent of Status: a cancelled order can
// still be paid while a refund is pending.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "paypal"
	PaymentMethodStripe PaymentMethod = "stripe"
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Customer struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone,omitempty"`
	Address Address `json:"address"`
}

// OrderItem records the unit price at the time of ordering; later catalog
// price changes never retroactively affect an order.
type OrderItem struct {
	BookID    string `json:"book_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Order is the canonical server-side record. Monetary fields are pence.
// Orders are never deleted: cancellation is a terminal status, not removal.
type Order struct {
	ID                string        `json:"id"`
	Customer          Customer      `json:"customer"`
	Items             []OrderItem   `json:"items"`
	Subtotal          int64         `json:"subtotal"`
	Total             int64         `json:"total"`
	Status            Status        `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	PaymentMethod     PaymentMethod `json:"payment_method,omitempty"`
	TrackingNumber    string        `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func NewOrder(customer Customer, items []OrderItem, subtotal, total int64) *Order {
	now := time.Now().UTC()
	return &Order{
		Customer:      customer,
		Items:         items,
		Subtotal:      subtotal,
		Total:         total,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
