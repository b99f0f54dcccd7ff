package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Reader interface {
	List(ctx context.Context, category string) ([]domain.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

type Handler struct {
	repo   Reader
	logger *slog.Logger
}

func NewHandler(repo Reader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type listResponse struct {
	Success  bool             `json:"success"`
	Products []domain.Product `json:"products"`
}

type getResponse struct {
	Success bool            `json:"success"`
	Product *domain.Product `json:"product"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	products, err := h.repo.List(r.Context(), category)
	if err != nil {
		h.logger.Error("failed to list products", "error", err, "category", category)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "list products"))
		return
	}

	h.logger.Debug("products listed", "count", len(products), "category", category)
	httpx.WriteJSON(w, http.StatusOK, listResponse{Success: true, Products: products})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindNotFound, "product not found"))
		return
	}

	product, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, apperr.New(apperr.KindNotFound, "product not found"))
			return
		}
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "get product"))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, getResponse{Success: true, Product: product})
}
