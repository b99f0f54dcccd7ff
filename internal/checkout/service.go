package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/users"
)

const (
	defaultMaxAllocationAttempts = 5
	defaultNotifyTimeout         = 30 * time.Second
)

type Params struct {
	UnitOfWork UnitOfWork
	Users      UserLoader
	Dispatcher Dispatcher
	Clock      Clock
	Logger     *slog.Logger

	// MaxAllocationAttempts bounds how many times the whole unit of work is
	// replayed after losing an order number race.
	MaxAllocationAttempts int
	NotifyTimeout         time.Duration
}

// Service places orders.
type Service struct {
	uow           UnitOfWork
	users         UserLoader
	dispatcher    Dispatcher
	clock         Clock
	logger        *slog.Logger
	maxAttempts   int
	notifyTimeout time.Duration
	metrics       *metrics

	notifications sync.WaitGroup
}

func NewService(p Params) (*Service, error) {
	if p.UnitOfWork == nil {
		return nil, fmt.Errorf("unit of work required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if p.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if p.Clock == nil {
		p.Clock = systemClock{}
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.MaxAllocationAttempts <= 0 {
		p.MaxAllocationAttempts = defaultMaxAllocationAttempts
	}
	if p.NotifyTimeout <= 0 {
		p.NotifyTimeout = defaultNotifyTimeout
	}

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("checkout metrics: %w", err)
	}

	return &Service{
		uow:           p.UnitOfWork,
		users:         p.Users,
		dispatcher:    p.Dispatcher,
		clock:         p.Clock,
		logger:        p.Logger,
		maxAttempts:   p.MaxAllocationAttempts,
		notifyTimeout: p.NotifyTimeout,
		metrics:       m,
	}, nil
}

// Checkout validates the request, then decrements stock, allocates the order
// number, stores the order and clears the cart in one unit of work. The
// notification is sent in the background once that unit has committed.
//
// Returned errors are *apperr.Error.
func (s *Service) Checkout(ctx context.Context, req Request) (*domain.Order, error) {
	order, err := s.checkout(ctx, req)
	s.metrics.recordAttempt(ctx, err)
	return order, err
}

func (s *Service) checkout(ctx context.Context, req Request) (*domain.Order, error) {
	ids, quantities, err := req.validate()
	if err != nil {
		return nil, err
	}

	user, err := s.loadBuyer(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	for attempt := 1; ; attempt++ {
		err = s.uow.Do(ctx, func(ctx context.Context, stores Stores) error {
			placed, err := s.place(ctx, stores, user.ID, ids, quantities)
			if err != nil {
				return err
			}
			order = placed
			return nil
		})
		if err == nil {
			break
		}
		if !errors.Is(err, orders.ErrNumberTaken) {
			return nil, s.classify(err, user.ID)
		}
		if attempt >= s.maxAttempts {
			s.logger.Error("order number allocation exhausted", "error", err, "user_id", user.ID, "attempts", attempt)
			return nil, apperr.Wrap(apperr.KindAllocationConflict, err, "could not allocate an order number")
		}
		s.metrics.allocationRetries.Add(ctx, 1)
		s.logger.Warn("order number taken, retrying checkout", "user_id", user.ID, "attempt", attempt)
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.FormattedNumber(),
		"user_id", user.ID,
		"total", order.Total.StringFixed(2),
	)

	s.notify(ctx, domain.NewOrderPlacedEvent(*order, *user))

	return order, nil
}

func (s *Service) loadBuyer(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if userID == uuid.Nil {
		return nil, apperr.New(apperr.KindAuthenticationRequired, "authentication required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, apperr.New(apperr.KindAuthenticationRequired, "authentication required")
		}
		s.logger.Error("failed to load buyer", "error", err, "user_id", userID)
		return nil, apperr.Wrap(apperr.KindPersistenceFailure, err, "load user")
	}
	if !user.Address.IsComplete() {
		return nil, apperr.New(apperr.KindIncompleteProfile, "store address is incomplete, update your profile before checking out")
	}
	return user, nil
}

// place runs inside the unit of work. Every line is checked before any stock
// is touched so that a failing request reports all offending products.
func (s *Service) place(ctx context.Context, stores Stores, userID uuid.UUID, ids []uuid.UUID, quantities map[uuid.UUID]string) (*domain.Order, error) {
	products, err := stores.Products.LockByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	if missing := missingIDs(ids, byID); len(missing) > 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid products selected").
			WithDetails(map[string]any{"invalid_products": missing})
	}

	lines := make([]domain.OrderLine, 0, len(ids))
	var short []OutOfStockItem
	for _, id := range ids {
		p := byID[id]
		raw := quantities[id]
		qty, ok := parseQuantity(raw)
		if !ok || qty > p.Stock {
			short = append(short, OutOfStockItem{ProductID: p.ID, Name: p.Name, Requested: raw, Available: p.Stock})
			continue
		}
		lines = append(lines, domain.NewOrderLine(p, qty))
	}
	if len(short) > 0 {
		return nil, outOfStock(short)
	}

	for _, line := range lines {
		if err := stores.Products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, catalog.ErrInsufficientStock) {
				p := byID[line.ProductID]
				return nil, outOfStock([]OutOfStockItem{{ProductID: p.ID, Name: p.Name, Requested: quantities[p.ID], Available: p.Stock}})
			}
			return nil, err
		}
	}

	number, err := stores.Orders.NextNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	order := &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Number:    number,
		Lines:     lines,
		Total:     domain.SumLines(lines),
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := stores.Orders.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := stores.Carts.Clear(ctx, userID); err != nil {
		return nil, err
	}

	return order, nil
}

// classify turns a failed unit of work into a caller-facing error. Typed
// errors raised by place pass through unchanged.
func (s *Service) classify(err error, userID uuid.UUID) error {
	if typed := apperr.As(err); typed != nil {
		return typed
	}
	s.logger.Error("checkout failed", "error", err, "user_id", userID)
	return apperr.Wrap(apperr.KindPersistenceFailure, err, "could not place order")
}

// notify dispatches the event on its own goroutine. It is detached from the
// request context so that the response returning does not cancel delivery.
func (s *Service) notify(ctx context.Context, event domain.OrderPlacedEvent) {
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		if err := s.dispatcher.Dispatch(ctx, event); err != nil {
			s.metrics.notificationFailures.Add(ctx, 1)
			s.logger.Error("order notification failed",
				"error", err,
				"kind", apperr.KindNotificationFailure,
				"order_id", event.OrderID,
				"order_number", domain.FormatOrderNumber(event.OrderNumber),
			)
			return
		}
		s.logger.Info("order notification dispatched", "order_id", event.OrderID)
	}()
}

// Wait blocks until every in-flight notification has finished.
func (s *Service) Wait() {
	s.notifications.Wait()
}

func missingIDs(ids []uuid.UUID, found map[uuid.UUID]domain.Product) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	return missing
}

func outOfStock(items []OutOfStockItem) *apperr.Error {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return apperr.Newf(apperr.KindOutOfStock, "insufficient stock for: %s", strings.Join(names, ", ")).
		WithDetails(map[string]any{"out_of_stock": items})
}
