// Package shop is the storefront backend: checkout prices the cart and
// writes the order into the legacy client store; the payment endpoints take
// the providers' success/failure callbacks and confirm payment through the
// sync bridge.
package shop

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aerobooks/orderdesk/internal/bridge"
	"github.com/aerobooks/orderdesk/internal/domain"
	"github.com/aerobooks/orderdesk/internal/legacy"
	"github.com/aerobooks/orderdesk/internal/pricing"
)

type Handler struct {
	store  legacy.Store
	bridge *bridge.Bridge
	engine pricing.Engine
	logger *slog.Logger
}

func NewHandler(store legacy.Store, b *bridge.Bridge, engine pricing.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		bridge: b,
		engine: engine,
		logger: logger,
	}
}

type checkoutItem struct {
	BookID    string  `json:"bookId"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type checkoutRequest struct {
	CustomerName  string         `json:"customerName"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	AddressLine1  string         `json:"addressLine1"`
	AddressLine2  string         `json:"addressLine2"`
	City          string         `json:"city"`
	State         string         `json:"state"`
	PostalCode    string         `json:"postalCode"`
	Country       string         `json:"country"`
	Items         []checkoutItem `json:"items"`
	PaymentMethod string         `json:"paymentMethod"`
}

type checkoutResponse struct {
	Order   *legacy.Order     `json:"order"`
	Pricing pricing.Breakdown `json:"pricing"`
}

func (r *checkoutRequest) validate() error {
	if r.CustomerName == "" || r.Email == "" {
		return errors.New("customer name and email are required")
	}
	if len(r.Items) == 0 {
		return errors.New("cart is empty")
	}
	for _, it := range r.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("invalid quantity %d for %s", it.Quantity, it.BookID)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("invalid unit price for %s", it.BookID)
		}
	}
	return nil
}

// HandleCheckout prices the cart and records the order in the legacy store,
// pending payment. The admin console picks it up from there via the bridge.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	breakdown := h.engine.Compute(toCart(req.Items))

	now := time.Now().UTC().Format(time.RFC3339)
	order := &legacy.Order{
		ID:            uuid.New().String(),
		CustomerName:  req.CustomerName,
		Email:         req.Email,
		Phone:         req.Phone,
		AddressLine1:  req.AddressLine1,
		AddressLine2:  req.AddressLine2,
		City:          req.City,
		State:         req.State,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
		Subtotal:      float64(breakdown.Subtotal) / 100,
		Total:         float64(breakdown.Total) / 100,
		Status:        string(domain.StatusPending),
		PaymentStatus: string(domain.PaymentPending),
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, legacy.OrderItem{
			BookID:    it.BookID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	if err := h.store.Put(r.Context(), order); err != nil {
		h.logger.Error("failed to store checkout order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("checkout completed",
		"order_id", order.ID, "total", breakdown.Total, "items", len(order.Items))
	h.writeJSON(w, http.StatusCreated, checkoutResponse{Order: order, Pricing: breakdown})
}

type quoteRequest struct {
	Items []checkoutItem `json:"items"`
}

// HandleQuote prices a cart without creating anything, for the basket page.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid quantity %d for %s", it.Quantity, it.BookID))
			return
		}
	}

	h.writeJSON(w, http.StatusOK, h.engine.Compute(toCart(req.Items)))
}

// toCart converts the storefront's pound floats to the engine's pence.
func toCart(items []checkoutItem) []pricing.CartItem {
	cart := make([]pricing.CartItem, 0, len(items))
	for _, it := range items {
		cart = append(cart, pricing.CartItem{
			UnitPrice: int64(math.Round(it.UnitPrice * 100)),
			Quantity:  it.Quantity,
		})
	}
	return cart
}

type paymentCallback struct {
	OrderID   string `json:"orderId"`
	Reference string `json:"reference"`
	Succeeded bool   `json:"succeeded"`
}

type paymentResponse struct {
	Order     *domain.Order `json:"order"`
	Message   string        `json:"message"`
	LocalOnly bool          `json:"local_only,omitempty"`
}

// HandlePaymentCallback receives the client-confirmed result of a Stripe
// PaymentIntent or PayPal capture. Success confirms payment through the
// bridge; failure marks the payment axis failed. Either way the order itself
// survives for the admin console to act on.
func (h *Handler) HandlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	provider := domain.PaymentMethod(r.PathValue("provider"))
	if provider != domain.PaymentMethodStripe && provider != domain.PaymentMethodPayPal {
		h.writeError(w, http.StatusBadRequest, "unknown payment provider")
		return
	}

	var cb paymentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cb.OrderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	action := domain.ActionConfirmPayment
	message := "Payment confirmed"
	if !cb.Succeeded {
		action = domain.ActionFailPayment
		message = "Payment failed"
	}

	outcome, err := h.bridge.Apply(r.Context(), cb.OrderID, action,
		domain.ActionData{PaymentMethod: provider})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "order not found in any store")
		case errors.Is(err, domain.ErrInvalidTransition):
			h.writeError(w, http.StatusConflict, "payment state cannot change from its current value")
		default:
			h.logger.Error("payment callback failed",
				"error", err, "order_id", cb.OrderID, "provider", provider)
			h.writeError(w, http.StatusBadGateway, "payment could not be recorded")
		}
		return
	}

	h.logger.Info("payment callback processed",
		"order_id", cb.OrderID, "provider", provider,
		"succeeded", cb.Succeeded, "reference", cb.Reference,
		"local_only", outcome.LocalOnly)
	h.writeJSON(w, http.StatusOK, paymentResponse{
		Order:     outcome.Order,
		Message:   message,
		LocalOnly: outcome.LocalOnly,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
