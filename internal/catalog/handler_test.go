package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type stubReader struct {
	products []domain.Product
	err      error
	category string
}

func (s *stubReader) List(_ context.Context, category string) ([]domain.Product, error) {
	s.category = category
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Product
	for _, p := range s.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubReader) Get(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, p := range s.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func newTestHandler(repo Reader) (*Handler, *http.ServeMux) {
	h := NewHandler(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", h.HandleList)
	mux.HandleFunc("GET /products/{id}", h.HandleGet)
	return h, mux
}

func sampleProducts() []domain.Product {
	return []domain.Product{
		{ID: uuid.New(), Name: "Kimchi", Category: "fermented", Price: decimal.NewFromInt(12500), Stock: 10},
		{ID: uuid.New(), Name: "Gochujang", Category: "sauces", Price: decimal.NewFromInt(8000), Stock: 4},
	}
}

func TestHandleList_FiltersByCategory(t *testing.T) {
	repo := &stubReader{products: sampleProducts()}
	_, mux := newTestHandler(repo)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?category=sauces", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if repo.category != "sauces" {
		t.Errorf("expected category filter sauces, got %q", repo.category)
	}

	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Name != "Gochujang" {
		t.Errorf("unexpected products: %+v", resp.Products)
	}
}

func TestHandleList_StorageError(t *testing.T) {
	_, mux := newTestHandler(&stubReader{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestHandleGet(t *testing.T) {
	products := sampleProducts()
	_, mux := newTestHandler(&stubReader{products: products})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"found", "/products/" + products[0].ID.String(), http.StatusOK},
		{"unknown", "/products/" + uuid.NewString(), http.StatusNotFound},
		{"malformed id", "/products/not-a-uuid", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
