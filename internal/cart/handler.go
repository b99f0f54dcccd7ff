package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Store interface {
	Items(ctx context.Context, userID uuid.UUID) ([]domain.CartItem, error)
	Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	AddItems(ctx context.Context, userID uuid.UUID, items []domain.CartItem) error
	SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
}

type ProductFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Product, error)
}

type Handler struct {
	store    Store
	products ProductFinder
	logger   *slog.Logger
}

func NewHandler(store Store, products ProductFinder, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		products: products,
		logger:   logger,
	}
}

type addRequest struct {
	SelectedProducts httpx.ProductSelection `json:"selectedProducts"`
	Quantities       json.RawMessage        `json:"quantities"`
}

type updateRequest struct {
	Quantities json.RawMessage `json:"quantities"`
}

type cartResponse struct {
	Success bool         `json:"success"`
	Cart    *domain.Cart `json:"cart"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	h.writeCart(w, r, identity.UserID)
}

// HandleAdd merges the selected products into the cart. Lines whose quantity
// is not a positive integer are skipped; at least one line must remain.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req addRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	quantities, err := httpx.DecodeQuantities(req.Quantities)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	lines := make(map[uuid.UUID]int)
	var ids []uuid.UUID
	for _, raw := range req.SelectedProducts {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		qty, ok := positiveQuantity(quantities[raw])
		if !ok {
			continue
		}
		if _, seen := lines[id]; !seen {
			ids = append(ids, id)
		}
		lines[id] = qty
	}
	if len(ids) == 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "no products selected"))
		return
	}

	found, err := h.products.FindByIDs(r.Context(), ids)
	if err != nil {
		h.logger.Error("failed to look up products", "error", err, "user_id", identity.UserID)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "look up products"))
		return
	}
	if len(found) != len(ids) {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid products selected"))
		return
	}

	items := make([]domain.CartItem, len(ids))
	for i, id := range ids {
		items[i] = domain.CartItem{ProductID: id, Quantity: lines[id]}
	}
	if err := h.store.AddItems(r.Context(), identity.UserID, items); err != nil {
		h.logger.Error("failed to add cart items", "error", err, "user_id", identity.UserID)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "add cart items"))
		return
	}

	h.logger.Info("cart items added", "user_id", identity.UserID, "count", len(ids))
	h.writeCart(w, r, identity.UserID)
}

// HandleUpdate sets the quantity of lines already in the cart. Invalid
// quantities are ignored; a product that is not in the cart is a 404 and
// nothing is changed.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	quantities, err := httpx.DecodeQuantities(req.Quantities)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	items, err := h.store.Items(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", identity.UserID)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "load cart"))
		return
	}
	inCart := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		inCart[item.ProductID] = true
	}

	updates := make(map[uuid.UUID]int)
	for raw, value := range quantities {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		qty, ok := positiveQuantity(value)
		if !ok {
			continue
		}
		if !inCart[id] {
			httpx.WriteError(w, apperr.Newf(apperr.KindNotFound, "product %s not in cart", id))
			return
		}
		updates[id] = qty
	}

	for id, qty := range updates {
		if err := h.store.SetQuantity(r.Context(), identity.UserID, id, qty); err != nil {
			if errors.Is(err, ErrNotFound) {
				httpx.WriteError(w, apperr.Newf(apperr.KindNotFound, "product %s not in cart", id))
				return
			}
			h.logger.Error("failed to update cart item", "error", err, "user_id", identity.UserID, "product_id", id)
			httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "update cart item"))
			return
		}
	}

	h.writeCart(w, r, identity.UserID)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("productId"))
	if err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindNotFound, "product not in cart"))
		return
	}

	if err := h.store.Remove(r.Context(), identity.UserID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, apperr.New(apperr.KindNotFound, "product not in cart"))
			return
		}
		h.logger.Error("failed to remove cart item", "error", err, "user_id", identity.UserID, "product_id", id)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "remove cart item"))
		return
	}

	h.writeCart(w, r, identity.UserID)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	cart, err := h.store.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", userID)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "load cart"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cartResponse{Success: true, Cart: cart})
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, apperr.New(apperr.KindAuthenticationRequired, "authentication required"))
	}
	return identity, ok
}

func positiveQuantity(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
