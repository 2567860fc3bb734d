package orders

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/aerobooks/orderdesk/internal/domain"
)

// Repository is what the handler needs from the order store.
type Repository interface {
	Upsert(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	List(ctx context.Context) ([]domain.Order, error)
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Upsert writes an order by id, replacing any existing row and its items.
// The sync endpoint relies on this: pushing the same legacy order twice is
// an update, never a duplicate.
func (r *OrderRepository) Upsert(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_name, customer_email, customer_phone,
			address_line1, address_line2, city, state, postal_code, country,
			subtotal, total, status, payment_status, payment_method,
			tracking_number, estimated_delivery, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			customer_name = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			customer_phone = EXCLUDED.customer_phone,
			address_line1 = EXCLUDED.address_line1,
			address_line2 = EXCLUDED.address_line2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country,
			subtotal = EXCLUDED.subtotal,
			total = EXCLUDED.total,
			status = EXCLUDED.status,
			payment_status = EXCLUDED.payment_status,
			payment_method = EXCLUDED.payment_method,
			tracking_number = EXCLUDED.tracking_number,
			estimated_delivery = EXCLUDED.estimated_delivery,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`,
		order.ID, order.Customer.Name, order.Customer.Email, order.Customer.Phone,
		order.Customer.Address.Line1, order.Customer.Address.Line2,
		order.Customer.Address.City, order.Customer.Address.State,
		order.Customer.Address.PostalCode, order.Customer.Address.Country,
		order.Subtotal, order.Total, order.Status, order.PaymentStatus,
		order.PaymentMethod, order.TrackingNumber, order.EstimatedDelivery,
		order.Notes, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
		return err
	}
	if err := insertItems(ctx, tx, order); err != nil {
		return err
	}

	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	for _, item := range order.Items {
		itemID := uuid.New().String()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, book_id, title, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, itemID, order.ID, item.BookID, item.Title, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	var estimatedDelivery sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_email, customer_phone,
			address_line1, address_line2, city, state, postal_code, country,
			subtotal, total, status, payment_status, payment_method,
			tracking_number, estimated_delivery, notes, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.Customer.Name, &order.Customer.Email, &order.Customer.Phone,
		&order.Customer.Address.Line1, &order.Customer.Address.Line2,
		&order.Customer.Address.City, &order.Customer.Address.State,
		&order.Customer.Address.PostalCode, &order.Customer.Address.Country,
		&order.Subtotal, &order.Total, &order.Status, &order.PaymentStatus,
		&order.PaymentMethod, &order.TrackingNumber, &estimatedDelivery,
		&order.Notes, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if estimatedDelivery.Valid {
		t := estimatedDelivery.Time
		order.EstimatedDelivery = &t
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT book_id, title, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.BookID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2, payment_method = $3,
			tracking_number = $4, estimated_delivery = $5, notes = $6,
			updated_at = $7
		WHERE id = $8
	`,
		order.Status, order.PaymentStatus, order.PaymentMethod,
		order.TrackingNumber, order.EstimatedDelivery, order.Notes,
		order.UpdatedAt, order.ID,
	)
	return err
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_name, customer_email, customer_phone,
			address_line1, address_line2, city, state, postal_code, country,
			subtotal, total, status, payment_status, payment_method,
			tracking_number, estimated_delivery, notes, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		var estimatedDelivery sql.NullTime
		if err := rows.Scan(
			&order.ID, &order.Customer.Name, &order.Customer.Email, &order.Customer.Phone,
			&order.Customer.Address.Line1, &order.Customer.Address.Line2,
			&order.Customer.Address.City, &order.Customer.Address.State,
			&order.Customer.Address.PostalCode, &order.Customer.Address.Country,
			&order.Subtotal, &order.Total, &order.Status, &order.PaymentStatus,
			&order.PaymentMethod, &order.TrackingNumber, &estimatedDelivery,
			&order.Notes, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if estimatedDelivery.Valid {
			t := estimatedDelivery.Time
			order.EstimatedDelivery = &t
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, book_id, title, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.BookID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
