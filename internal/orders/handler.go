package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type Handler struct {
	repo   Store
	logger *slog.Logger
}

func NewHandler(repo Store, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// orderView adds the display order number to the stored order.
type orderView struct {
	domain.Order
	Reference string `json:"reference"`
}

func newOrderView(o domain.Order) orderView {
	return orderView{Order: o, Reference: o.FormattedNumber()}
}

func newOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views
}

type orderResponse struct {
	Success bool      `json:"success"`
	Order   orderView `json:"order"`
}

type listResponse struct {
	Success bool        `json:"success"`
	Orders  []orderView `json:"orders"`
}

var errOrderNotFound = apperr.New(apperr.KindNotFound, "order not found")

// HandleListOwn returns the caller's order history, newest first.
func (h *Handler) HandleListOwn(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, apperr.New(apperr.KindAuthenticationRequired, "authentication required"))
		return
	}

	orders, err := h.repo.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", identity.UserID)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "list orders"))
		return
	}

	h.logger.Info("orders listed", "count", len(orders), "user_id", identity.UserID)
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Orders: newOrderViews(orders)})
}

// HandleGet returns one order to its owner or to an admin. Anyone else gets
// the same 404 as for an unknown id.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, apperr.New(apperr.KindAuthenticationRequired, "authentication required"))
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, errOrderNotFound)
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, errOrderNotFound)
			return
		}
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "get order"))
		return
	}

	if order.UserID != identity.UserID && identity.Role != domain.RoleAdmin {
		httpx.WriteError(w, errOrderNotFound)
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Success: true, Order: newOrderView(*order)})
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=Pending Processing Shipped Delivered Cancelled"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, errOrderNotFound)
		return
	}

	var req updateStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, errOrderNotFound)
			return
		}
		h.logger.Error("failed to update order status", "error", err, "order_id", id)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "update order status"))
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Success: true, Order: newOrderView(*order)})
}

// HandleList returns every order. Admin only.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "list orders"))
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Orders: newOrderViews(orders)})
}
