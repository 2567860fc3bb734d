// Package console is the controller behind the admin order panel: it renders
// the merged order list from both stores and drives operator actions through
// the sync bridge, reporting every outcome back as a human-readable message.
package console

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aerobooks/orderdesk/internal/bridge"
	"github.com/aerobooks/orderdesk/internal/domain"
)

type Handler struct {
	bridge  *bridge.Bridge
	logger  *slog.Logger
	actions metric.Int64Counter
}

func NewHandler(b *bridge.Bridge, logger *slog.Logger) (*Handler, error) {
	meter := otel.Meter("console")
	actions, err := meter.Int64Counter("admin_order_actions_total",
		metric.WithDescription("Operator actions processed by the admin console"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		bridge:  b,
		logger:  logger,
		actions: actions,
	}, nil
}

// orderListResponse partitions the merged list: active orders are still in
// flight, inactive ones are cancelled or have a failed/refunded payment.
type orderListResponse struct {
	Active   []domain.Order `json:"active"`
	Inactive []domain.Order `json:"inactive"`
}

func active(o *domain.Order) bool {
	if o.Status == domain.StatusCancelled {
		return false
	}
	return o.PaymentStatus != domain.PaymentFailed && o.PaymentStatus != domain.PaymentRefunded
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	merged, err := h.bridge.MergedOrders(r.Context())
	if err != nil {
		h.logger.Error("failed to load merged order list", "error", err)
		h.writeError(w, http.StatusBadGateway, "order stores unavailable")
		return
	}

	statusFilter := domain.Status(r.URL.Query().Get("status"))

	resp := orderListResponse{Active: []domain.Order{}, Inactive: []domain.Order{}}
	for i := range merged {
		o := merged[i]
		if statusFilter != "" && o.Status != statusFilter {
			continue
		}
		if active(&o) {
			resp.Active = append(resp.Active, o)
		} else {
			resp.Inactive = append(resp.Inactive, o)
		}
	}

	h.logger.Info("admin order list served",
		"active", len(resp.Active), "inactive", len(resp.Inactive))
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	merged, err := h.bridge.MergedOrders(r.Context())
	if err != nil {
		h.logger.Error("failed to load merged order list", "error", err)
		h.writeError(w, http.StatusBadGateway, "order stores unavailable")
		return
	}

	for i := range merged {
		if merged[i].ID == id {
			h.writeJSON(w, http.StatusOK, orderDetail{
				Order:   merged[i],
				Actions: availableActions(&merged[i]),
			})
			return
		}
	}

	h.writeError(w, http.StatusNotFound, "order not found")
}

// orderDetail pairs an order with exactly the actions valid from its current
// state, so the panel renders only buttons that can succeed.
type orderDetail struct {
	Order   domain.Order    `json:"order"`
	Actions []domain.Action `json:"actions"`
}

func availableActions(o *domain.Order) []domain.Action {
	candidates := []domain.Action{
		domain.ActionConfirmPayment,
		domain.ActionProcess,
		domain.ActionDispatch,
		domain.ActionShip,
		domain.ActionDeliver,
		domain.ActionCancel,
		domain.ActionRefund,
		domain.ActionFailPayment,
	}
	var out []domain.Action
	for _, a := range candidates {
		if o.CanApply(a) {
			out = append(out, a)
		}
	}
	return out
}

type actionRequest struct {
	Action domain.Action `json:"action"`
	domain.ActionData
}

type actionResponse struct {
	Order     *domain.Order `json:"order"`
	Message   string        `json:"message"`
	LocalOnly bool          `json:"local_only,omitempty"`
}

var successMessages = map[domain.Action]string{
	domain.ActionConfirmPayment: "Payment confirmed - order marked as paid",
	domain.ActionProcess:        "Order moved to processing",
	domain.ActionDispatch:       "Order dispatch successful - customer has been notified via email",
	domain.ActionShip:           "Order marked as shipped",
	domain.ActionDeliver:        "Order marked as delivered",
	domain.ActionCancel:         "Order cancelled",
	domain.ActionRefund:         "Payment refunded",
	domain.ActionFailPayment:    "Payment marked as failed",
}

const localOnlySuffix = " (saved locally - server sync pending)"

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

	outcome, err := h.bridge.Apply(r.Context(), id, req.Action, req.ActionData)
	if err != nil {
		h.record(r, req.Action, "error")
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "order not found in any store")
		case errors.Is(err, domain.ErrUnknownAction):
			h.writeError(w, http.StatusBadRequest, "unknown action")
		case errors.Is(err, domain.ErrInvalidTransition):
			h.writeError(w, http.StatusConflict, "action not valid for the order's current status")
		case errors.Is(err, domain.ErrSyncFailed):
			h.logger.Error("sync failed", "error", err, "order_id", id, "action", req.Action)
			h.writeError(w, http.StatusBadGateway, "order could not be synced to the server")
		default:
			h.logger.Error("action failed", "error", err, "order_id", id, "action", req.Action)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	message := successMessages[req.Action]
	if outcome.LocalOnly {
		message += localOnlySuffix
		h.record(r, req.Action, "local_only")
	} else {
		h.record(r, req.Action, "ok")
	}

	h.logger.Info("operator action completed",
		"order_id", id, "action", req.Action, "local_only", outcome.LocalOnly)
	h.writeJSON(w, http.StatusOK, actionResponse{
		Order:     outcome.Order,
		Message:   message,
		LocalOnly: outcome.LocalOnly,
	})
}

func (h *Handler) record(r *http.Request, action domain.Action, outcome string) {
	h.actions.Add(r.Context(), 1,
		metric.WithAttributes(
			attribute.String("action", string(action)),
			attribute.String("outcome", outcome),
		))
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
