package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type stubCheckouter struct {
	got   Request
	order *domain.Order
	err   error
}

func (s *stubCheckouter) Checkout(_ context.Context, req Request) (*domain.Order, error) {
	s.got = req
	return s.order, s.err
}

func checkoutRequestAs(userID uuid.UUID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID, Role: domain.RoleStoreOwner}))
	}
	return req
}

func TestHandleCheckout_Success(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	order := &domain.Order{ID: uuid.New(), Number: 42, Total: decimal.RequireFromString("30.00"), Status: domain.OrderStatusPending}
	stub := &stubCheckouter{order: order}
	handler := NewHandler(stub, slog.Default())

	body := `{"selectedProducts":["` + productID.String() + `"],"quantities":{"` + productID.String() + `":3}}`
	rec := httptest.NewRecorder()

	handler.HandleCheckout(rec, checkoutRequestAs(userID, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		Success     bool   `json:"success"`
		OrderID     string `json:"orderId"`
		OrderNumber string `json:"orderNumber"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.OrderID != order.ID.String() {
		t.Errorf("expected orderId %s, got %s", order.ID, resp.OrderID)
	}
	if resp.OrderNumber != "ORD-00042" {
		t.Errorf("expected orderNumber ORD-00042, got %s", resp.OrderNumber)
	}

	if stub.got.UserID != userID {
		t.Errorf("expected user %s passed to service, got %s", userID, stub.got.UserID)
	}
	if q := stub.got.Quantities[productID.String()]; q != "3" {
		t.Errorf("expected numeric quantity decoded as \"3\", got %q", q)
	}
}

func TestHandleCheckout_Errors(t *testing.T) {
	productID := uuid.New().String()

	tests := []struct {
		name       string
		userID     uuid.UUID
		body       string
		serviceErr error
		wantStatus int
	}{
		{"no identity", uuid.Nil, `{}`, nil, http.StatusUnauthorized},
		{"malformed body", uuid.New(), `{"selectedProducts":`, nil, http.StatusBadRequest},
		{"quantities not an object", uuid.New(), `{"selectedProducts":["` + productID + `"],"quantities":[1]}`, nil, http.StatusBadRequest},
		{"out of stock", uuid.New(), `{"selectedProducts":["` + productID + `"],"quantities":{}}`, apperr.New(apperr.KindOutOfStock, "insufficient stock for: Kimchi"), http.StatusBadRequest},
		{"incomplete profile", uuid.New(), `{"selectedProducts":["` + productID + `"],"quantities":{}}`, apperr.New(apperr.KindIncompleteProfile, "store address is incomplete"), http.StatusBadRequest},
		{"allocation conflict", uuid.New(), `{"selectedProducts":["` + productID + `"],"quantities":{}}`, apperr.New(apperr.KindAllocationConflict, "exhausted"), http.StatusInternalServerError},
		{"persistence failure", uuid.New(), `{"selectedProducts":["` + productID + `"],"quantities":{}}`, apperr.New(apperr.KindPersistenceFailure, "db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(&stubCheckouter{err: tt.serviceErr}, slog.Default())
			rec := httptest.NewRecorder()

			handler.HandleCheckout(rec, checkoutRequestAs(tt.userID, tt.body))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var resp struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Success {
				t.Error("expected success=false")
			}
			if resp.Message == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestProductSelection_AcceptsSingleString(t *testing.T) {
	var body checkoutRequest
	if err := json.Unmarshal([]byte(`{"selectedProducts":"abc"}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(body.SelectedProducts) != 1 || body.SelectedProducts[0] != "abc" {
		t.Errorf("expected [abc], got %v", body.SelectedProducts)
	}
}
