package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aerobooks/orderdesk/internal/domain"
	"github.com/aerobooks/orderdesk/internal/legacy"
)

// memLegacy is an in-memory legacy.Store for tests.
type memLegacy struct {
	mu     sync.Mutex
	orders map[string]*legacy.Order
	putErr error
}

func newMemLegacy(orders ...*legacy.Order) *memLegacy {
	m := &memLegacy{orders: make(map[string]*legacy.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memLegacy) Get(_ context.Context, id string) (*legacy.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memLegacy) Put(_ context.Context, o *legacy.Order) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memLegacy) List(_ context.Context) ([]legacy.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]legacy.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

// fakeOrderAPI simulates the authoritative order service over httptest,
// with switchable failure injection on the sync path.
type fakeOrderAPI struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	failSync bool
}

func newFakeOrderAPI(orders ...*domain.Order) *fakeOrderAPI {
	f := &fakeOrderAPI{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrderAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]domain.Order, 0, len(f.orders))
		for _, o := range f.orders {
			out = append(out, *o)
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("GET /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.orders[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "order not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(o)
	})
	mux.HandleFunc("POST /api/orders/sync", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failSync {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
			return
		}
		var req struct {
			Order *domain.Order `json:"order"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Order == nil || req.Order.ID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.orders[req.Order.ID] = req.Order
		_ = json.NewEncoder(w).Encode(req.Order)
	})
	mux.HandleFunc("PATCH /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		o, ok := f.orders[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "order not found"})
			return
		}
		var req struct {
			Action domain.Action `json:"action"`
			domain.ActionData
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := o.Apply(req.Action, req.ActionData, time.Now().UTC()); err != nil {
			switch {
			case errors.Is(err, domain.ErrUnknownAction):
				w.WriteHeader(http.StatusBadRequest)
			case errors.Is(err, domain.ErrInvalidTransition):
				w.WriteHeader(http.StatusConflict)
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(o)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeOrderAPI) get(id string) *domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeOrderAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBridge(t *testing.T, api *fakeOrderAPI, store legacy.Store) *Bridge {
	srv := api.server(t)
	return New(NewClient(srv.URL, srv.Client()), store, testLogger())
}

func authoritativeOrder(id string, status domain.Status) *domain.Order {
	created := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:            id,
		Customer:      domain.Customer{Name: "Gwen Sopwith", Email: "gwen@example.com"},
		Items:         []domain.OrderItem{{BookID: "test-pilots", Quantity: 1, UnitPrice: 1800}},
		Subtotal:      1800,
		Total:         2195,
		Status:        status,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func legacyOnlyOrder(id string) *legacy.Order {
	return &legacy.Order{
		ID:            id,
		CustomerName:  "Reg Turnhouse",
		Email:         "reg@example.com",
		Items:         []legacy.OrderItem{{BookID: "zeppelin-raids", Quantity: 1, UnitPrice: 22.00}},
		Subtotal:      22.00,
		Total:         25.95,
		Status:        "pending",
		PaymentStatus: "pending",
		CreatedAt:     "2026-02-18T10:00:00Z",
	}
}

func TestApply_DirectWhenAuthoritative(t *testing.T) {
	api := newFakeOrderAPI(authoritativeOrder("ord-1", domain.StatusProcessing))
	store := newMemLegacy()
	b := newTestBridge(t, api, store)

	out, err := b.Apply(context.Background(), "ord-1", domain.ActionDispatch,
		domain.ActionData{TrackingNumber: "RM123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.LocalOnly {
		t.Error("expected authoritative mutation, got local-only")
	}
	if out.Order.Status != domain.StatusDispatched {
		t.Errorf("status = %s, want dispatched", out.Order.Status)
	}
	if out.Order.TrackingNumber != "RM123" {
		t.Errorf("tracking number = %q", out.Order.TrackingNumber)
	}
}

func TestApply_SyncsLegacyOnlyOrderFirst(t *testing.T) {
	api := newFakeOrderAPI()
	store := newMemLegacy(legacyOnlyOrder("leg-1"))
	b := newTestBridge(t, api, store)

	out, err := b.Apply(context.Background(), "leg-1", domain.ActionConfirmPayment,
		domain.ActionData{PaymentMethod: domain.PaymentMethodStripe})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.LocalOnly {
		t.Error("sync succeeded, mutation should be authoritative")
	}
	if out.Order.PaymentStatus != domain.PaymentPaid {
		t.Errorf("payment status = %s, want paid", out.Order.PaymentStatus)
	}

	// The order is now in the authoritative store with converted fields.
	synced := api.get("leg-1")
	if synced == nil {
		t.Fatal("legacy order was not pushed to the authoritative store")
	}
	if synced.Subtotal != 2200 {
		t.Errorf("converted subtotal = %d, want 2200", synced.Subtotal)
	}

	// And the legacy mirror reflects the mutation.
	lo, err := store.Get(context.Background(), "leg-1")
	if err != nil {
		t.Fatalf("legacy get: %v", err)
	}
	if lo.PaymentStatus != "paid" {
		t.Errorf("legacy payment status = %q, want paid", lo.PaymentStatus)
	}
}

func TestApply_OrderUnknownToBothStores(t *testing.T) {
	b := newTestBridge(t, newFakeOrderAPI(), newMemLegacy())

	_, err := b.Apply(context.Background(), "ghost", domain.ActionCancel, domain.ActionData{})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestApply_SyncFailureAbortsNonFallbackAction(t *testing.T) {
	api := newFakeOrderAPI()
	api.failSync = true
	store := newMemLegacy(legacyOnlyOrder("leg-1"))
	b := newTestBridge(t, api, store)

	_, err := b.Apply(context.Background(), "leg-1", domain.ActionDispatch, domain.ActionData{})
	if !errors.Is(err, domain.ErrSyncFailed) {
		t.Fatalf("error = %v, want ErrSyncFailed", err)
	}

	// Nothing reached the authoritative store and the legacy record is
	// untouched.
	if api.count() != 0 {
		t.Errorf("authoritative store has %d orders, want 0", api.count())
	}
	lo, _ := store.Get(context.Background(), "leg-1")
	if lo.Status != "pending" {
		t.Errorf("legacy status = %q, want pending", lo.Status)
	}
}

func TestApply_CancelFallsBackToLegacyOnSyncFailure(t *testing.T) {
	api := newFakeOrderAPI()
	api.failSync = true
	store := newMemLegacy(legacyOnlyOrder("leg-1"))
	b := newTestBridge(t, api, store)

	out, err := b.Apply(context.Background(), "leg-1", domain.ActionCancel,
		domain.ActionData{Reason: "out of print"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.LocalOnly {
		t.Fatal("expected local-only outcome")
	}
	if out.Order.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled", out.Order.Status)
	}

	lo, _ := store.Get(context.Background(), "leg-1")
	if lo.Status != "cancelled" {
		t.Errorf("legacy status = %q, want cancelled", lo.Status)
	}
	if lo.Notes != "out of print" {
		t.Errorf("legacy notes = %q", lo.Notes)
	}
}

func TestApply_ConfirmPaymentFallsBackToLegacyOnSyncFailure(t *testing.T) {
	api := newFakeOrderAPI()
	api.failSync = true
	store := newMemLegacy(legacyOnlyOrder("leg-1"))
	b := newTestBridge(t, api, store)

	out, err := b.Apply(context.Background(), "leg-1", domain.ActionConfirmPayment, domain.ActionData{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.LocalOnly {
		t.Fatal("expected local-only outcome")
	}

	lo, _ := store.Get(context.Background(), "leg-1")
	if lo.PaymentStatus != "paid" {
		t.Errorf("legacy payment status = %q, want paid", lo.PaymentStatus)
	}
}

func TestApply_InvalidTransitionPropagates(t *testing.T) {
	api := newFakeOrderAPI(authoritativeOrder("ord-1", domain.StatusPending))
	b := newTestBridge(t, api, newMemLegacy())

	_, err := b.Apply(context.Background(), "ord-1", domain.ActionDeliver, domain.ActionData{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestApply_MirrorsMutationToLegacy(t *testing.T) {
	api := newFakeOrderAPI(authoritativeOrder("ord-1", domain.StatusProcessing))
	lo := legacyOnlyOrder("ord-1")
	lo.Status = "processing"
	store := newMemLegacy(lo)
	b := newTestBridge(t, api, store)

	_, err := b.Apply(context.Background(), "ord-1", domain.ActionShip,
		domain.ActionData{TrackingNumber: "RM999"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mirrored, _ := store.Get(context.Background(), "ord-1")
	if mirrored.Status != "shipped" {
		t.Errorf("legacy status = %q, want shipped", mirrored.Status)
	}
	if mirrored.TrackingNumber != "RM999" {
		t.Errorf("legacy tracking number = %q", mirrored.TrackingNumber)
	}
}

func TestEnsureSynced_Idempotent(t *testing.T) {
	api := newFakeOrderAPI()
	store := newMemLegacy(legacyOnlyOrder("leg-1"))
	b := newTestBridge(t, api, store)

	for i := 0; i < 3; i++ {
		if _, err := b.EnsureSynced(context.Background(), "leg-1"); err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
	}

	if api.count() != 1 {
		t.Errorf("authoritative store has %d orders after repeated sync, want 1", api.count())
	}
}

func TestMergedOrders(t *testing.T) {
	t.Run("deduplicates preferring authoritative fields", func(t *testing.T) {
		auth := authoritativeOrder("shared", domain.StatusDispatched)
		lo := legacyOnlyOrder("shared")
		lo.Status = "pending" // stale copy
		older := legacyOnlyOrder("legacy-only")
		older.CreatedAt = "2026-01-05T09:00:00Z"

		b := newTestBridge(t, newFakeOrderAPI(auth), newMemLegacy(lo, older))

		merged, err := b.MergedOrders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(merged) != 2 {
			t.Fatalf("merged list has %d entries, want 2", len(merged))
		}

		byID := make(map[string]domain.Order)
		for _, o := range merged {
			byID[o.ID] = o
		}
		if byID["shared"].Status != domain.StatusDispatched {
			t.Errorf("shared order status = %s, want authoritative dispatched", byID["shared"].Status)
		}
		if _, ok := byID["legacy-only"]; !ok {
			t.Error("legacy-only order missing from merged list")
		}
	})

	t.Run("sorted newest first", func(t *testing.T) {
		a := authoritativeOrder("old", domain.StatusPending)
		a.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c := authoritativeOrder("new", domain.StatusPending)
		c.CreatedAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		mid := legacyOnlyOrder("mid")
		mid.CreatedAt = "2026-02-01T00:00:00Z"

		b := newTestBridge(t, newFakeOrderAPI(a, c), newMemLegacy(mid))

		merged, err := b.MergedOrders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var ids []string
		for _, o := range merged {
			ids = append(ids, o.ID)
		}
		want := []string{"new", "mid", "old"}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("order of ids = %v, want %v", ids, want)
			}
		}
	})

	t.Run("serves legacy when authoritative is down", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", &http.Client{Timeout: 100 * time.Millisecond})
		b := New(client, newMemLegacy(legacyOnlyOrder("leg-1")), testLogger())

		merged, err := b.MergedOrders(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(merged) != 1 || merged[0].ID != "leg-1" {
			t.Errorf("merged = %+v, want the single legacy order", merged)
		}
	})
}
