package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrNumberTaken means another order committed the same order number
	// first. The transaction is aborted and must be retried from the start.
	ErrNumberTaken = errors.New("order number already taken")
)

const orderNumberConstraint = "orders_order_number_key"

const orderColumns = `id, user_id, order_number, total_amount, status, created_at, updated_at`

type OrderRepository struct {
	db       database.DBTX
	strategy string
}

// NewOrderRepository binds the repository to db. strategy selects how
// NextNumber allocates: config.NumberStrategyMax or config.NumberStrategySequence.
func NewOrderRepository(db database.DBTX, strategy string) *OrderRepository {
	return &OrderRepository{db: db, strategy: strategy}
}

func (r *OrderRepository) WithTx(tx database.DBTX) *OrderRepository {
	return &OrderRepository{db: tx, strategy: r.strategy}
}

// NextNumber returns the order number to use for the next order. Neither
// strategy reserves the number by itself; the unique constraint on
// order_number rejects a duplicate at insert time.
func (r *OrderRepository) NextNumber(ctx context.Context) (int64, error) {
	query := `SELECT nextval('order_number_seq')`
	if r.strategy == config.NumberStrategyMax {
		query = `SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders`
	}

	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("allocate order number: %w", err)
	}
	return n, nil
}

// Create inserts the order and its lines. It must run inside a transaction
// so that a failed line insert does not leave a partial order behind.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, order_number, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, order.ID, order.UserID, order.Number, order.Total, order.Status, order.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, orderNumberConstraint) {
			return fmt.Errorf("order number %d: %w", order.Number, ErrNumberTaken)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	order.UpdatedAt = order.CreatedAt

	for i, line := range order.Lines {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, line_no, product_id, name, price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, order.ID, i+1, line.ProductID, line.Name, line.Price, line.Quantity, line.Subtotal)
		if err != nil {
			return fmt.Errorf("insert order line %d: %w", i+1, err)
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &order.Number, &order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, price, quantity, subtotal
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_no
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	order.Lines = []domain.OrderLine{}
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.Price, &line.Quantity, &line.Subtotal); err != nil {
			return nil, err
		}
		order.Lines = append(order.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

// List returns every order, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, order_number DESC
	`)
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, order_number DESC
	`, userID)
}

// list loads the orders selected by query, then all their lines in one
// batch query.
func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[uuid.UUID]*domain.Order)
	var orderIDs []uuid.UUID

	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(&order.ID, &order.UserID, &order.Number, &order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Lines = []domain.OrderLine{}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	ids := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		ids[i] = id.String()
	}

	lineRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, price, quantity, subtotal
		FROM order_lines
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, line_no
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer func() { _ = lineRows.Close() }()

	for lineRows.Next() {
		var orderID uuid.UUID
		var line domain.OrderLine
		if err := lineRows.Scan(&orderID, &line.ProductID, &line.Name, &line.Price, &line.Quantity, &line.Subtotal); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Lines = append(order.Lines, line)
	}

	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
