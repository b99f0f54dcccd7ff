package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// ProductStore is the catalog as seen from inside the checkout transaction.
type ProductStore interface {
	// LockByIDs returns the existing products among ids and holds them
	// locked until the unit of work ends.
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type OrderStore interface {
	NextNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, order *domain.Order) error
}

type CartStore interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

// Stores are bound to one unit of work.
type Stores struct {
	Products ProductStore
	Orders   OrderStore
	Carts    CartStore
}

// UnitOfWork runs fn atomically: either every write made through stores is
// committed or none is.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Dispatcher delivers the order notification. It runs after commit and its
// errors never reach the buyer.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.OrderPlacedEvent) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
