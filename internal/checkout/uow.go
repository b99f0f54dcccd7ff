package checkout

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/orders"
)

// SQLUnitOfWork runs each unit in one postgres transaction with the
// repositories re-bound to it.
type SQLUnitOfWork struct {
	db       *sql.DB
	products *catalog.Repository
	orders   *orders.OrderRepository
	carts    *cart.Repository
}

func NewSQLUnitOfWork(db *sql.DB, products *catalog.Repository, orders *orders.OrderRepository, carts *cart.Repository) *SQLUnitOfWork {
	return &SQLUnitOfWork{db: db, products: products, orders: orders, carts: carts}
}

func (u *SQLUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	return database.WithTx(ctx, u.db, func(tx *sql.Tx) error {
		return fn(ctx, Stores{
			Products: u.products.WithTx(tx),
			Orders:   u.orders.WithTx(tx),
			Carts:    u.carts.WithTx(tx),
		})
	})
}
