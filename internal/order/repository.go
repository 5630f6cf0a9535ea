package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID string, to Status) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, session_id, offering_id, first_name, last_name, email, phone,
		                    pickup_at, check_in, check_out, subtotal, tax, room_total, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		o.ID, o.SessionID, o.OfferingID,
		o.Contact.FirstName, o.Contact.LastName, o.Contact.Email, o.Contact.Phone,
		o.Fulfillment.PickupAt, o.Fulfillment.CheckIn, o.Fulfillment.CheckOut,
		o.Subtotal, o.Tax, o.RoomTotal, o.Total, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, name, sku, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), o.ID, it.ProductID, it.VariantID, it.Name, it.SKU, it.UnitPrice, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, offering_id, first_name, last_name, email, phone,
		       pickup_at, check_in, check_out, subtotal, tax, room_total, total, status, created_at
		FROM orders WHERE id = $1`, orderID)
	err := row.Scan(&o.ID, &o.SessionID, &o.OfferingID,
		&o.Contact.FirstName, &o.Contact.LastName, &o.Contact.Email, &o.Contact.Phone,
		&o.Fulfillment.PickupAt, &o.Fulfillment.CheckIn, &o.Fulfillment.CheckOut,
		&o.Subtotal, &o.Tax, &o.RoomTotal, &o.Total, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query order: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, variant_id, name, sku, unit_price, quantity
		FROM order_items WHERE order_id = $1`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.Name, &it.SKU, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, offering_id, subtotal, tax, room_total, total, status, created_at
		FROM orders WHERE session_id = $1 ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.SessionID, &o.OfferingID,
			&o.Subtotal, &o.Tax, &o.RoomTotal, &o.Total, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus applies a transition from the order lifecycle. The
// update is conditional on the current status so a stale caller cannot
// overwrite a newer transition.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, to Status) error {
	var current Status
	row := r.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("query order status: %w", err)
	}

	if current == to {
		return nil // idempotent callback redelivery
	}
	if !current.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, to)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`,
		orderID, to, current)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s changed concurrently", ErrIllegalTransition, orderID)
	}
	return nil
}
