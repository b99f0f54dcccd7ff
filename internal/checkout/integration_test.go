//go:build integration

package checkout_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/testsupport"
	"github.com/joao-fontenele/storefront/internal/users"
)

var seoul = domain.Address{Town: "Mapo-gu", State: "Seoul", Zipcode: "04001"}

type countingDispatcher struct {
	mu     sync.Mutex
	events []domain.OrderPlacedEvent
}

func (d *countingDispatcher) Dispatch(_ context.Context, event domain.OrderPlacedEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

type env struct {
	db       *sql.DB
	products *catalog.Repository
	orders   *orders.OrderRepository
	carts    *cart.Repository
	svc      *checkout.Service
	sent     *countingDispatcher
}

func newEnv(t *testing.T, db *sql.DB, strategy string, attempts int) *env {
	t.Helper()

	products := catalog.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db, strategy)
	carts := cart.NewRepository(db)
	sent := &countingDispatcher{}

	svc, err := checkout.NewService(checkout.Params{
		UnitOfWork:            checkout.NewSQLUnitOfWork(db, products, orderRepo, carts),
		Users:                 users.NewRepository(db),
		Dispatcher:            sent,
		Logger:                slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxAllocationAttempts: attempts,
	})
	require.NoError(t, err)

	return &env{db: db, products: products, orders: orderRepo, carts: carts, svc: svc, sent: sent}
}

func TestCheckoutAgainstPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := testsupport.SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := pg.Open(ctx, t)

	t.Run("places order and clears cart", func(t *testing.T) {
		testsupport.Reset(ctx, t, db)
		e := newEnv(t, db, config.NumberStrategySequence, 5)

		buyer := testsupport.InsertUser(ctx, t, db, "Hanok Mart", seoul)
		kimchi := testsupport.InsertProduct(ctx, t, db, "Kimchi", "fermented", 12500, 5)
		mandu := testsupport.InsertProduct(ctx, t, db, "Mandu", "frozen", 9900, 1)
		require.NoError(t, e.carts.Add(ctx, buyer.ID, kimchi.ID, 2))
		require.NoError(t, e.carts.Add(ctx, buyer.ID, mandu.ID, 1))

		order, err := e.svc.Checkout(ctx, checkout.Request{
			UserID:           buyer.ID,
			SelectedProducts: []string{kimchi.ID.String()},
			Quantities:       map[string]string{kimchi.ID.String(): "2"},
		})
		require.NoError(t, err)
		e.svc.Wait()

		assert.Equal(t, int64(1), order.Number)
		assert.True(t, order.Total.Equal(decimal.NewFromInt(25000)), "total %s", order.Total)

		stored, err := e.orders.GetByID(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, stored.Lines, 1)
		assert.Equal(t, "Kimchi", stored.Lines[0].Name)
		assert.True(t, stored.Total.Equal(domain.SumLines(stored.Lines)))

		p, err := e.products.Get(ctx, kimchi.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		items, err := e.carts.Items(ctx, buyer.ID)
		require.NoError(t, err)
		assert.Empty(t, items, "the whole cart is cleared, not only the purchased lines")

		e.sent.mu.Lock()
		defer e.sent.mu.Unlock()
		require.Len(t, e.sent.events, 1)
		assert.Equal(t, "Hanok Mart", e.sent.events[0].StoreName)
	})

	t.Run("out of stock leaves nothing behind", func(t *testing.T) {
		testsupport.Reset(ctx, t, db)
		e := newEnv(t, db, config.NumberStrategySequence, 5)

		buyer := testsupport.InsertUser(ctx, t, db, "Jeju Deli", seoul)
		a := testsupport.InsertProduct(ctx, t, db, "Tangerine", "fruit", 5000, 10)
		b := testsupport.InsertProduct(ctx, t, db, "Hallabong", "fruit", 7000, 1)
		require.NoError(t, e.carts.Add(ctx, buyer.ID, a.ID, 1))

		_, err := e.svc.Checkout(ctx, checkout.Request{
			UserID:           buyer.ID,
			SelectedProducts: []string{a.ID.String(), b.ID.String()},
			Quantities:       map[string]string{a.ID.String(): "3", b.ID.String(): "2"},
		})
		require.Error(t, err)
		assert.Equal(t, apperr.KindOutOfStock, apperr.KindOf(err))

		pa, err := e.products.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, pa.Stock)

		list, err := e.orders.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		items, err := e.carts.Items(ctx, buyer.ID)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("unknown product is an invalid request", func(t *testing.T) {
		testsupport.Reset(ctx, t, db)
		e := newEnv(t, db, config.NumberStrategySequence, 5)
		buyer := testsupport.InsertUser(ctx, t, db, "Busan Fish", seoul)

		ghost := uuid.NewString()
		_, err := e.svc.Checkout(ctx, checkout.Request{
			UserID:           buyer.ID,
			SelectedProducts: []string{ghost},
			Quantities:       map[string]string{ghost: "1"},
		})
		assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))
	})

	for _, strategy := range []string{config.NumberStrategySequence, config.NumberStrategyMax} {
		t.Run("last unit goes to one buyer/"+strategy, func(t *testing.T) {
			testsupport.Reset(ctx, t, db)
			e := newEnv(t, db, strategy, 5)

			last := testsupport.InsertProduct(ctx, t, db, "Last Jar", "sauces", 8000, 1)
			buyers := []domain.User{
				testsupport.InsertUser(ctx, t, db, "Store One", seoul),
				testsupport.InsertUser(ctx, t, db, "Store Two", seoul),
			}

			errs := make([]error, len(buyers))
			var wg sync.WaitGroup
			for i, buyer := range buyers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = e.svc.Checkout(ctx, checkout.Request{
						UserID:           buyer.ID,
						SelectedProducts: []string{last.ID.String()},
						Quantities:       map[string]string{last.ID.String(): "1"},
					})
				}()
			}
			wg.Wait()
			e.svc.Wait()

			var succeeded, outOfStock int
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case apperr.KindOf(err) == apperr.KindOutOfStock:
					outOfStock++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, succeeded)
			assert.Equal(t, 1, outOfStock)

			p, err := e.products.Get(ctx, last.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, p.Stock)
		})

		t.Run("parallel checkouts get distinct numbers/"+strategy, func(t *testing.T) {
			testsupport.Reset(ctx, t, db)
			const n = 12
			e := newEnv(t, db, strategy, n)

			products := make([]domain.Product, n)
			buyers := make([]domain.User, n)
			for i := range n {
				products[i] = testsupport.InsertProduct(ctx, t, db, "Item "+uuid.NewString()[:8], "misc", 1000, 5)
				buyers[i] = testsupport.InsertUser(ctx, t, db, "Store "+uuid.NewString()[:8], seoul)
			}

			numbers := make([]int64, n)
			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					order, err := e.svc.Checkout(ctx, checkout.Request{
						UserID:           buyers[i].ID,
						SelectedProducts: []string{products[i].ID.String()},
						Quantities:       map[string]string{products[i].ID.String(): "1"},
					})
					errs[i] = err
					if err == nil {
						numbers[i] = order.Number
					}
				}()
			}
			wg.Wait()
			e.svc.Wait()

			seen := make(map[int64]bool, n)
			for i := range n {
				require.NoError(t, errs[i])
				assert.False(t, seen[numbers[i]], "order number %d allocated twice", numbers[i])
				seen[numbers[i]] = true
			}

			list, err := e.orders.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, n)
		})
	}
}
