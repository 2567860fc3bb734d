// Package legacy holds the client-persisted order store: a structurally
// looser mirror of the canonical order schema, keyed by the same ids. The
// checkout flow writes it directly; the admin console treats it as secondary
// truth, reconciled into the authoritative store on demand.
package legacy

import (
	"math"
	"time"

	"github.com/aerobooks/orderdesk/internal/domain"
)

// Order is the legacy record as the storefront writes it: camelCase keys,
// flat customer fields, pound floats for money and string timestamps. Reads
// must tolerate missing or malformed fields.
type Order struct {
	ID             string       `json:"id"`
	CustomerName   string       `json:"customerName"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone,omitempty"`
	AddressLine1   string       `json:"addressLine1,omitempty"`
	AddressLine2   string       `json:"addressLine2,omitempty"`
	City           string       `json:"city,omitempty"`
	State          string       `json:"state,omitempty"`
	PostalCode     string       `json:"postalCode,omitempty"`
	Country        string       `json:"country,omitempty"`
	Items          []OrderItem  `json:"items"`
	Subtotal       float64      `json:"subtotal"`
	Total          float64      `json:"total"`
	Status         string       `json:"status"`
	PaymentStatus  string       `json:"paymentStatus,omitempty"`
	PaymentMethod  string       `json:"paymentMethod,omitempty"`
	TrackingNumber string       `json:"trackingNumber,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      string       `json:"createdAt,omitempty"`
	UpdatedAt      string       `json:"updatedAt,omitempty"`
}

type OrderItem struct {
	BookID    string  `json:"bookId"`
	Title     string  `json:"title,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// ToCanonical converts a legacy record into the canonical schema. Unknown or
// missing fields fall back to the creation defaults: pending status, pending
// payment, quantity 1, timestamps of now.
func (lo *Order) ToCanonical() *domain.Order {
	now := time.Now().UTC()

	status := domain.Status(lo.Status)
	if !status.Valid() {
		status = domain.StatusPending
	}
	payment := domain.PaymentStatus(lo.PaymentStatus)
	if !payment.Valid() {
		payment = domain.PaymentPending
	}

	items := make([]domain.OrderItem, 0, len(lo.Items))
	for _, it := range lo.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, domain.OrderItem{
			BookID:    it.BookID,
			Title:     it.Title,
			Quantity:  qty,
			UnitPrice: poundsToPence(it.UnitPrice),
		})
	}

	var method domain.PaymentMethod
	switch domain.PaymentMethod(lo.PaymentMethod) {
	case domain.PaymentMethodPayPal, domain.PaymentMethodStripe:
		method = domain.PaymentMethod(lo.PaymentMethod)
	}

	return &domain.Order{
		ID: lo.ID,
		Customer: domain.Customer{
			Name:  lo.CustomerName,
			Email: lo.Email,
			Phone: lo.Phone,
			Address: domain.Address{
				Line1:      lo.AddressLine1,
				Line2:      lo.AddressLine2,
				City:       lo.City,
				State:      lo.State,
				PostalCode: lo.PostalCode,
				Country:    lo.Country,
			},
		},
		Items:          items,
		Subtotal:       poundsToPence(lo.Subtotal),
		Total:          poundsToPence(lo.Total),
		Status:         status,
		PaymentStatus:  payment,
		PaymentMethod:  method,
		TrackingNumber: lo.TrackingNumber,
		Notes:          lo.Notes,
		CreatedAt:      parseTime(lo.CreatedAt, now),
		UpdatedAt:      parseTime(lo.UpdatedAt, now),
	}
}

// Mirror copies the mutable outcome of an authoritative mutation back onto
// the legacy record, so a console reload sourced purely from legacy storage
// still reflects the latest truth.
func (lo *Order) Mirror(o *domain.Order) {
	lo.Status = string(o.Status)
	lo.PaymentStatus = string(o.PaymentStatus)
	if o.PaymentMethod != "" {
		lo.PaymentMethod = string(o.PaymentMethod)
	}
	if o.TrackingNumber != "" {
		lo.TrackingNumber = o.TrackingNumber
	}
	if o.Notes != "" {
		lo.Notes = o.Notes
	}
	lo.UpdatedAt = o.UpdatedAt.UTC().Format(time.RFC3339)
}

func poundsToPence(pounds float64) int64 {
	return int64(math.Round(pounds * 100))
}

func parseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
