package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrNotFound = errors.New("product not in cart")

type Repository struct {
	db database.DBTX
}

func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx database.DBTX) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Items(ctx context.Context, userID uuid.UUID) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at, product_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Get returns the cart joined with the live catalog price, so totals shown
// before checkout follow catalog changes.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.product_id, p.name, p.price, c.quantity
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.added_at, c.product_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cart := &domain.Cart{Lines: []domain.CartLine{}, Total: decimal.Zero}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.Price, &line.Quantity); err != nil {
			return nil, err
		}
		line.Subtotal = line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		cart.Total = cart.Total.Add(line.Subtotal)
		cart.Lines = append(cart.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// Add puts quantity units of the product in the cart, merging into the
// existing line when the product is already there.
func (r *Repository) Add(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	return r.AddItems(ctx, userID, []domain.CartItem{{ProductID: productID, Quantity: quantity}})
}

// AddItems merges every item into the cart in a single statement, so either
// all lines are written or none are. Repeated products are summed first.
func (r *Repository) AddItems(ctx context.Context, userID uuid.UUID, items []domain.CartItem) error {
	if len(items) == 0 {
		return nil
	}

	merged := make(map[uuid.UUID]int64, len(items))
	var order []uuid.UUID
	for _, item := range items {
		if _, seen := merged[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		merged[item.ProductID] += int64(item.Quantity)
	}
	ids := make([]string, len(order))
	quantities := make([]int64, len(order))
	for i, id := range order {
		ids[i] = id.String()
		quantities[i] = merged[id]
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		SELECT $1, u.product_id, u.quantity
		FROM unnest($2::uuid[], $3::int[]) AS u(product_id, quantity)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, pq.Array(ids), pq.Array(quantities))
	if err != nil {
		return fmt.Errorf("add cart items: %w", err)
	}
	return nil
}

func (r *Repository) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("set cart quantity: %w", err)
	}
	return requireRow(result.RowsAffected())
}

func (r *Repository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return requireRow(result.RowsAffected())
}

// Clear empties the user's cart.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func requireRow(rowsAffected int64, err error) error {
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
