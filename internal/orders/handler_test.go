package orders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aerobooks/orderdesk/internal/domain"
)

type memRepo struct {
	orders map[string]*domain.Order
}

func newMemRepo(orders ...*domain.Order) *memRepo {
	m := &memRepo{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memRepo) Upsert(_ context.Context, o *domain.Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, o *domain.Order) error {
	m.orders[o.ID] = o
	return nil
}

func (m *memRepo) List(_ context.Context) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func newTestHandler(repo Repository) *Handler {
	return NewHandler(repo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func routes(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", h.HandleList)
	mux.HandleFunc("GET /api/orders/{id}", h.HandleGet)
	mux.HandleFunc("PATCH /api/orders/{id}", h.HandleAction)
	mux.HandleFunc("POST /api/orders/sync", h.HandleSync)
	return mux
}

func storedOrder(id string, status domain.Status) *domain.Order {
	created := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:            id,
		Customer:      domain.Customer{Name: "Joan Mollison", Email: "joan@example.com"},
		Items:         []domain.OrderItem{{BookID: "night-fighters", Quantity: 1, UnitPrice: 2200}},
		Subtotal:      2200,
		Total:         2595,
		Status:        status,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestHandleAction(t *testing.T) {
	t.Run("dispatch with tracking number", func(t *testing.T) {
		repo := newMemRepo(storedOrder("ord-1", domain.StatusProcessing))
		mux := routes(newTestHandler(repo))

		body := `{"action":"dispatch","tracking_number":"RM123"}`
		req := httptest.NewRequest(http.MethodPatch, "/api/orders/ord-1", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var got domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Status != domain.StatusDispatched {
			t.Errorf("status = %s, want dispatched", got.Status)
		}
		if got.TrackingNumber != "RM123" {
			t.Errorf("tracking number = %q", got.TrackingNumber)
		}
		if !got.UpdatedAt.After(got.CreatedAt) {
			t.Errorf("UpdatedAt not advanced: %v", got.UpdatedAt)
		}

		stored, _ := repo.GetByID(context.Background(), "ord-1")
		if stored.Status != domain.StatusDispatched {
			t.Errorf("stored status = %s", stored.Status)
		}
	})

	t.Run("invalid transition returns 409", func(t *testing.T) {
		repo := newMemRepo(storedOrder("ord-1", domain.StatusPending))
		mux := routes(newTestHandler(repo))

		req := httptest.NewRequest(http.MethodPatch, "/api/orders/ord-1", strings.NewReader(`{"action":"deliver"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}

		stored, _ := repo.GetByID(context.Background(), "ord-1")
		if stored.Status != domain.StatusPending {
			t.Errorf("rejected action mutated order: %s", stored.Status)
		}
	})

	t.Run("cancelled order refuses further actions", func(t *testing.T) {
		repo := newMemRepo(storedOrder("ord-1", domain.StatusCancelled))
		mux := routes(newTestHandler(repo))

		req := httptest.NewRequest(http.MethodPatch, "/api/orders/ord-1", strings.NewReader(`{"action":"cancel"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("unknown order returns 404", func(t *testing.T) {
		mux := routes(newTestHandler(newMemRepo()))

		req := httptest.NewRequest(http.MethodPatch, "/api/orders/nope", strings.NewReader(`{"action":"cancel"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("unknown action returns 400", func(t *testing.T) {
		repo := newMemRepo(storedOrder("ord-1", domain.StatusPending))
		mux := routes(newTestHandler(repo))

		req := httptest.NewRequest(http.MethodPatch, "/api/orders/ord-1", strings.NewReader(`{"action":"teleport"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("confirm payment tolerated regardless of status", func(t *testing.T) {
		repo := newMemRepo(storedOrder("ord-1", domain.StatusShipped))
		mux := routes(newTestHandler(repo))

		body := `{"action":"confirm_payment","payment_method":"stripe"}`
		req := httptest.NewRequest(http.MethodPatch, "/api/orders/ord-1", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		stored, _ := repo.GetByID(context.Background(), "ord-1")
		if stored.PaymentStatus != domain.PaymentPaid {
			t.Errorf("payment status = %s, want paid", stored.PaymentStatus)
		}
		if stored.Status != domain.StatusShipped {
			t.Errorf("status = %s, want shipped unchanged", stored.Status)
		}
	})
}

func TestHandleSync(t *testing.T) {
	t.Run("creates then updates, never duplicates", func(t *testing.T) {
		repo := newMemRepo()
		mux := routes(newTestHandler(repo))

		body := `{"order":{"id":"legacy-7","customer":{"name":"Ada"},"status":"pending","payment_status":"pending","subtotal":1000,"total":1395}}`
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/orders/sync", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("sync %d: status = %d, body %s", i, rec.Code, rec.Body.String())
			}
		}

		all, _ := repo.List(context.Background())
		if len(all) != 1 {
			t.Fatalf("expected exactly one record after double sync, got %d", len(all))
		}
	})

	t.Run("defaults invalid statuses", func(t *testing.T) {
		repo := newMemRepo()
		mux := routes(newTestHandler(repo))

		body := `{"order":{"id":"legacy-8","status":"waiting","payment_status":"??"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/orders/sync", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		stored, _ := repo.GetByID(context.Background(), "legacy-8")
		if stored.Status != domain.StatusPending {
			t.Errorf("status = %s, want pending", stored.Status)
		}
		if stored.PaymentStatus != domain.PaymentPending {
			t.Errorf("payment status = %s, want pending", stored.PaymentStatus)
		}
	})

	t.Run("rejects missing id", func(t *testing.T) {
		mux := routes(newTestHandler(newMemRepo()))

		req := httptest.NewRequest(http.MethodPost, "/api/orders/sync", strings.NewReader(`{"order":{}}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleGet(t *testing.T) {
	repo := newMemRepo(storedOrder("ord-1", domain.StatusPending))
	mux := routes(newTestHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
