package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type Checkouter interface {
	Checkout(ctx context.Context, req Request) (*domain.Order, error)
}

type Handler struct {
	svc    Checkouter
	logger *slog.Logger
}

func NewHandler(svc Checkouter, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

type checkoutRequest struct {
	SelectedProducts httpx.ProductSelection `json:"selectedProducts"`
	Quantities       json.RawMessage        `json:"quantities"`
}

type checkoutResponse struct {
	Success     bool          `json:"success"`
	OrderID     uuid.UUID     `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	Order       *domain.Order `json:"order"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, apperr.New(apperr.KindAuthenticationRequired, "authentication required"))
		return
	}

	var req checkoutRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	quantities, err := httpx.DecodeQuantities(req.Quantities)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	order, err := h.svc.Checkout(r.Context(), Request{
		UserID:           identity.UserID,
		SelectedProducts: req.SelectedProducts,
		Quantities:       quantities,
	})
	if err != nil {
		if apperr.MetadataFor(apperr.KindOf(err)).HTTPStatus >= http.StatusInternalServerError {
			h.logger.Error("checkout failed", "error", err, "user_id", identity.UserID)
		} else {
			h.logger.Info("checkout rejected", "kind", apperr.KindOf(err), "reason", apperr.PublicMessage(err), "user_id", identity.UserID)
		}
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, checkoutResponse{
		Success:     true,
		OrderID:     order.ID,
		OrderNumber: order.FormattedNumber(),
		Order:       order,
	})
}
