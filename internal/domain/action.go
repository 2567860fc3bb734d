package domain

import "time"

// Action is an operator- or payment-driven mutation of an order. Transition
// validity is enforced here, centrally, regardless of which buttons a UI
// chooses to show.
type Action string

const (
	ActionConfirmPayment Action = "confirm_payment"
	ActionProcess        Action = "process"
	ActionDispatch       Action = "dispatch"
	ActionShip           Action = "ship"
	ActionDeliver        Action = "deliver"
	ActionCancel         Action = "cancel"
	ActionRefund         Action = "refund"
	ActionFailPayment    Action = "fail_payment"
)

// ActionData carries the optional inputs an action may consume.
type ActionData struct {
	TrackingNumber    string        `json:"tracking_number,omitempty"`
	Reason            string        `json:"reason,omitempty"`
	PaymentMethod     PaymentMethod `json:"payment_method,omitempty"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery,omitempty"`
}

const noReasonProvided = "No reason provided"

// fulfillmentTransitions lists, per action, the statuses it may be applied
// from. Actions on the payment axis are handled separately in Apply since
// they do not move Status.
var fulfillmentTransitions = map[Action][]Status{
	ActionProcess:  {StatusConfirmed},
	ActionDispatch: {StatusProcessing},
	ActionShip:     {StatusProcessing},
	ActionDeliver:  {StatusDispatched, StatusShipped},
}

var actionResults = map[Action]Status{
	ActionProcess:  StatusProcessing,
	ActionDispatch: StatusDispatched,
	ActionShip:     StatusShipped,
	ActionDeliver:  StatusDelivered,
}

// CanApply reports whether action is valid from the order's current state,
// without mutating it.
func (o *Order) CanApply(action Action) bool {
	switch action {
	case ActionConfirmPayment:
		return true
	case ActionRefund:
		return o.PaymentStatus == PaymentPaid
	case ActionFailPayment:
		return o.PaymentStatus == PaymentPending
	case ActionCancel:
		return !o.Status.Terminal()
	}
	from, ok := fulfillmentTransitions[action]
	if !ok {
		return false
	}
	for _, s := range from {
		if o.Status == s {
			return true
		}
	}
	return false
}

// Apply mutates the order according to the action table, advancing UpdatedAt
// on success. It returns ErrUnknownAction for an unrecognised action and
// ErrInvalidTransition when the action is not valid from the current state.
//
// confirm_payment additionally moves a pending order to confirmed so that a
// freshly paid order becomes processable; from any later status it touches
// the payment axis only.
func (o *Order) Apply(action Action, data ActionData, now time.Time) error {
	switch action {
	case ActionConfirmPayment:
		o.PaymentStatus = PaymentPaid
		if data.PaymentMethod != "" {
			o.PaymentMethod = data.PaymentMethod
		}
		if o.Status == StatusPending {
			o.Status = StatusConfirmed
		}

	case ActionRefund:
		if !o.CanApply(action) {
			return ErrInvalidTransition
		}
		o.PaymentStatus = PaymentRefunded

	case ActionFailPayment:
		if !o.CanApply(action) {
			return ErrInvalidTransition
		}
		o.PaymentStatus = PaymentFailed

	case ActionCancel:
		if !o.CanApply(action) {
			return ErrInvalidTransition
		}
		o.Status = StatusCancelled
		reason := data.Reason
		if reason == "" {
			reason = noReasonProvided
		}
		o.Notes = reason

	case ActionProcess, ActionDispatch, ActionShip, ActionDeliver:
		if !o.CanApply(action) {
			return ErrInvalidTransition
		}
		o.Status = actionResults[action]
		if action == ActionDispatch || action == ActionShip {
			if data.TrackingNumber != "" {
				o.TrackingNumber = data.TrackingNumber
			}
			if data.EstimatedDelivery != nil {
				o.EstimatedDelivery = data.EstimatedDelivery
			}
		}

	default:
		return ErrUnknownAction
	}

	o.UpdatedAt = now
	return nil
}
