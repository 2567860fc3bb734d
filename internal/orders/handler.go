package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aerobooks/orderdesk/internal/domain"
	"github.com/aerobooks/orderdesk/internal/messaging"
)

// Handler serves the authoritative order API:
//
//	GET   /api/orders           list
//	GET   /api/orders/{id}      existence/detail check
//	PATCH /api/orders/{id}      status transition {action, ...data}
//	POST  /api/orders/sync      push a converted legacy order
type Handler struct {
	repo     Repository
	producer *messaging.Producer
	logger   *slog.Logger
}

func NewHandler(repo Repository, producer *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type actionRequest struct {
	Action domain.Action `json:"action"`
	domain.ActionData
}

func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		h.writeError(w, http.StatusBadRequest, "missing action")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if err := order.Apply(req.Action, req.ActionData, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownAction):
			h.writeError(w, http.StatusBadRequest, "unknown action")
		case errors.Is(err, domain.ErrInvalidTransition):
			h.logger.Warn("invalid transition rejected",
				"order_id", id, "action", req.Action, "status", order.Status)
			h.writeError(w, http.StatusConflict, "invalid status transition")
		default:
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if err := h.repo.Update(r.Context(), order); err != nil {
		h.logger.Error("failed to update order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.producer != nil {
		event := domain.OrderStatusChangedEvent{
			OrderID:        order.ID,
			Action:         req.Action,
			Status:         order.Status,
			PaymentStatus:  order.PaymentStatus,
			CustomerName:   order.Customer.Name,
			CustomerEmail:  order.Customer.Email,
			TrackingNumber: order.TrackingNumber,
			Notes:          order.Notes,
			Timestamp:      order.UpdatedAt,
		}
		if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish status changed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order action applied",
		"order_id", order.ID, "action", req.Action,
		"status", order.Status, "payment_status", order.PaymentStatus)
	h.writeJSON(w, http.StatusOK, order)
}

type syncRequest struct {
	Order *domain.Order `json:"order"`
}

// HandleSync upserts an order pushed from the legacy store. Syncing the same
// id twice updates the existing record rather than duplicating it.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Order == nil || req.Order.ID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order or order id")
		return
	}

	order := req.Order
	if !order.Status.Valid() {
		order.Status = domain.StatusPending
	}
	if !order.PaymentStatus.Valid() {
		order.PaymentStatus = domain.PaymentPending
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	if err := h.repo.Upsert(r.Context(), order); err != nil {
		h.logger.Error("failed to sync order", "error", err, "id", order.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order synced", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
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
