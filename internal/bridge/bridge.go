// Package bridge reconciles the legacy client-persisted order store with the
// authoritative server-side store: it pushes legacy orders into the server
// before any mutation and mirrors mutation results back, so neither store
// ever silently loses an update.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aerobooks/orderdesk/internal/domain"
	"github.com/aerobooks/orderdesk/internal/legacy"
)

type Bridge struct {
	client *Client
	legacy legacy.Store
	logger *slog.Logger
}

func New(client *Client, legacyStore legacy.Store, logger *slog.Logger) *Bridge {
	return &Bridge{
		client: client,
		legacy: legacyStore,
		logger: logger,
	}
}

// Outcome is the result of a console action. LocalOnly marks the degraded
// path: the legacy store was mutated directly because the order could not be
// synced into the authoritative store.
type Outcome struct {
	Order     *domain.Order
	LocalOnly bool
}

// fallbackActions are the high-value actions that must not be lost when the
// sync protocol fails: for these the legacy record is mutated directly and
// reconciliation is deferred to a future successful sync.
var fallbackActions = map[domain.Action]bool{
	domain.ActionCancel:         true,
	domain.ActionConfirmPayment: true,
}

// EnsureSynced makes the order with this id present in the authoritative
// store, pushing and re-verifying the legacy copy if needed. It returns
// domain.ErrOrderNotFound when the id is unknown to both stores and wraps
// push/verify failures in domain.ErrSyncFailed.
func (b *Bridge) EnsureSynced(ctx context.Context, id string) (*domain.Order, error) {
	order, err := b.client.GetOrder(ctx, id)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrSyncFailed, err)
	}

	lo, err := b.legacy.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	converted := lo.ToCanonical()
	if err := b.client.SyncOrder(ctx, converted); err != nil {
		return nil, fmt.Errorf("%w: push: %v", domain.ErrSyncFailed, err)
	}

	// Re-query to confirm the push took. A mutation must never run against
	// a store that may not have the record.
	order, err = b.client.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: verify: %v", domain.ErrSyncFailed, err)
	}

	b.logger.Info("legacy order synced to authoritative store", "order_id", id)
	return order, nil
}

// Apply runs the sync-then-mutate protocol for one action. On sync failure,
// cancel and confirm_payment degrade to a direct legacy-store mutation; all
// other actions propagate the failure.
func (b *Bridge) Apply(ctx context.Context, id string, action domain.Action, data domain.ActionData) (*Outcome, error) {
	if _, err := b.EnsureSynced(ctx, id); err != nil {
		if errors.Is(err, domain.ErrSyncFailed) && fallbackActions[action] {
			b.logger.Warn("sync failed, applying action to legacy store only",
				"order_id", id, "action", action, "error", err)
			return b.applyLocally(ctx, id, action, data)
		}
		return nil, err
	}

	updated, err := b.client.ApplyAction(ctx, id, action, data)
	if err != nil {
		return nil, err
	}

	b.mirror(ctx, updated)
	return &Outcome{Order: updated}, nil
}

// applyLocally mutates the legacy record directly, with the same transition
// rules the server enforces.
func (b *Bridge) applyLocally(ctx context.Context, id string, action domain.Action, data domain.ActionData) (*Outcome, error) {
	lo, err := b.legacy.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	converted := lo.ToCanonical()
	if err := converted.Apply(action, data, time.Now().UTC()); err != nil {
		return nil, err
	}

	lo.Mirror(converted)
	if err := b.legacy.Put(ctx, lo); err != nil {
		return nil, fmt.Errorf("legacy fallback write for %s: %w", id, err)
	}

	b.logger.Info("action applied to legacy store only", "order_id", id, "action", action)
	return &Outcome{Order: converted, LocalOnly: true}, nil
}

// mirror copies an authoritative mutation result back onto the legacy record
// when one exists. Best effort: a mirror failure is logged, not surfaced, as
// the authoritative store already holds the truth.
func (b *Bridge) mirror(ctx context.Context, order *domain.Order) {
	lo, err := b.legacy.Get(ctx, order.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.logger.Error("failed to read legacy record for mirror", "error", err, "order_id", order.ID)
		}
		return
	}

	lo.Mirror(order)
	if err := b.legacy.Put(ctx, lo); err != nil {
		b.logger.Error("failed to mirror mutation to legacy store", "error", err, "order_id", order.ID)
	}
}

// MergedOrders returns the authoritative list plus any legacy orders whose id
// is not in it, newest first. When one store is unreachable the other still
// serves; only both failing is an error.
func (b *Bridge) MergedOrders(ctx context.Context) ([]domain.Order, error) {
	authoritative, authErr := b.client.ListOrders(ctx)
	if authErr != nil {
		b.logger.Warn("authoritative list unavailable, serving legacy only", "error", authErr)
	}

	legacyOrders, legacyErr := b.legacy.List(ctx)
	if legacyErr != nil {
		if authErr != nil {
			return nil, fmt.Errorf("both stores unavailable: %w", authErr)
		}
		b.logger.Warn("legacy list unavailable, serving authoritative only", "error", legacyErr)
	}

	seen := make(map[string]bool, len(authoritative))
	merged := make([]domain.Order, 0, len(authoritative)+len(legacyOrders))
	for _, o := range authoritative {
		seen[o.ID] = true
		merged = append(merged, o)
	}
	for i := range legacyOrders {
		if seen[legacyOrders[i].ID] {
			continue
		}
		merged = append(merged, *legacyOrders[i].ToCanonical())
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	return merged, nil
}
