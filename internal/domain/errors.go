package domain

import "errors"

var (
	// ErrNotFound: the order id is unknown to a single store.
	ErrNotFound = errors.New("order not found")

	// ErrInvalidTransition: the action is not valid from the order's
	// current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownAction: the action name itself is not recognised.
	ErrUnknownAction = errors.New("unknown action")

	// ErrOrderNotFound: the id is unknown to both the authoritative and
	// the legacy store. Unrecoverable from the console.
	ErrOrderNotFound = errors.New("order not found in any store")

	// ErrSyncFailed: a legacy order was pushed to the authoritative store
	// but the verification read did not find it.
	ErrSyncFailed = errors.New("order sync failed")
)
