package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront/internal/apperr"
)

type sampleRequest struct {
	Name  string   `json:"name" validate:"required"`
	Items []string `json:"items" validate:"min=1,dive,uuid"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestWriteError_Typed(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, apperr.New(apperr.KindOutOfStock, "insufficient stock for Kimchi").WithDetails([]string{"Kimchi"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Message != "insufficient stock for Kimchi" {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if resp.Code != string(apperr.KindOutOfStock) {
		t.Errorf("unexpected code %q", resp.Code)
	}
}

func TestWriteError_UntypedHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if strings.Contains(resp.Message, "pq") {
		t.Errorf("internal message leaked: %q", resp.Message)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"a","items":["0b6f0a36-54f4-4d5c-9d0e-1f0a8f3c0001"]}`, false},
		{"empty body", ``, true},
		{"malformed", `{"name":`, true},
		{"missing name", `{"items":["0b6f0a36-54f4-4d5c-9d0e-1f0a8f3c0001"]}`, true},
		{"bad id", `{"name":"a","items":["nope"]}`, true},
		{"no items", `{"name":"a","items":[]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst sampleRequest
			err := DecodeJSON(rec, req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && apperr.KindOf(err) != apperr.KindInvalidRequest {
				t.Errorf("expected kind %s, got %s", apperr.KindInvalidRequest, apperr.KindOf(err))
			}
		})
	}
}

func TestValidate_DetailsUseJSONNames(t *testing.T) {
	err := Validate(&sampleRequest{})

	typed := apperr.As(err)
	if typed == nil {
		t.Fatalf("expected *apperr.Error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", typed.Details())
	}
	if _, ok := details["name"]; !ok {
		t.Errorf("expected details keyed by json name, got %v", details)
	}
}
