// Package httpx holds the JSON request and response helpers shared by the
// API handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/storefront/internal/apperr"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// WriteError renders err as the failure envelope. Errors without a kind are
// reported as internal errors and their message is not exposed.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	resp := errorResponse{
		Success: false,
		Message: apperr.PublicMessage(err),
		Code:    string(kind),
	}
	if typed := apperr.As(err); typed != nil {
		resp.Details = typed.Details()
	}
	WriteJSON(w, apperr.MetadataFor(kind).HTTPStatus, resp)
}

// DecodeJSON reads a single JSON document into dst and validates it. Failures
// are returned as InvalidRequest errors with per-field details.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	decoder := json.NewDecoder(body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.KindInvalidRequest, "request body is required")
		}
		return apperr.Wrap(apperr.KindInvalidRequest, err, "invalid request body")
	}

	return Validate(dst)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := map[string]string{}
			for _, fe := range fieldErrs {
				details[fe.Field()] = validationMessage(fe)
			}
			return apperr.New(apperr.KindInvalidRequest, "validation failed").WithDetails(details)
		}
		return apperr.Wrap(apperr.KindInvalidRequest, err, "validation failed")
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s", fe.Param())
	case "uuid":
		return "must be a valid id"
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}
