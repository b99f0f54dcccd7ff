// Package idempotency replays the stored response when a client repeats a
// request with the same Idempotency-Key.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

const (
	HeaderKey = "Idempotency-Key"
	lockTTL   = time.Minute
	maxKeyLen = 255

	maxBodyBytes = 1 << 20
)

type record struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Middleware stores the first response for each key and replays it for
// repeats with the same body. Keys are scoped per caller and route. A repeat
// with a different body is rejected, as is one that arrives while the first
// is still running. Requests without the header pass through. Server errors
// are not stored, so a retry after one runs again.
func Middleware(store Store, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderKey))
			if id == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(id) > maxKeyLen {
				httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "Idempotency-Key is too long"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "request body too large"))
					return
				}
				httpx.WriteError(w, apperr.Wrap(apperr.KindInvalidRequest, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			scope := buildScope(r)
			key := recordKey(scope, id)
			requestHash := hashBody(body)

			if replayed(ctx, w, store, key, requestHash, logger) {
				return
			}

			lock := lockKey(scope, id)
			acquired, err := store.SetNX(ctx, lock, requestHash, lockTTL)
			if err != nil {
				logger.Error("idempotency lock failed", "error", err)
				httpx.WriteError(w, apperr.Wrap(apperr.KindInternal, err, "lock idempotency key"))
				return
			}
			if !acquired {
				httpx.WriteError(w, apperr.New(apperr.KindIdempotencyReused, "a request with this Idempotency-Key is already in progress"))
				return
			}
			// the client may hang up mid request; the record and the lock
			// release must still be written
			storeCtx := context.WithoutCancel(ctx)
			defer func() {
				if err := store.Del(storeCtx, lock); err != nil {
					logger.Warn("failed to release idempotency lock", "error", err)
				}
			}()

			// the first request may have stored its record and released the
			// lock between our lookup and the SetNX
			if replayed(ctx, w, store, key, requestHash, logger) {
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			if status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(record{
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			})
			if err != nil {
				logger.Error("failed to encode idempotency record", "error", err)
				return
			}
			if _, err := store.SetNX(storeCtx, key, string(payload), ttl); err != nil {
				logger.Error("failed to persist idempotency record", "error", err)
			}
		})
	}
}

// replayed writes the stored response for key when one exists. It reports
// whether the response was written, including a lookup failure.
func replayed(ctx context.Context, w http.ResponseWriter, store Store, key, requestHash string, logger *slog.Logger) bool {
	stored, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		logger.Error("idempotency lookup failed", "error", err)
		httpx.WriteError(w, apperr.Wrap(apperr.KindInternal, err, "check idempotency"))
		return true
	}
	replay(w, stored, requestHash)
	return true
}

func replay(w http.ResponseWriter, stored, requestHash string) {
	var rec record
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		httpx.WriteError(w, apperr.Wrap(apperr.KindInternal, err, "decode idempotency record"))
		return
	}
	if rec.RequestHash != requestHash {
		httpx.WriteError(w, apperr.New(apperr.KindIdempotencyReused, "Idempotency-Key reused with a different request body"))
		return
	}

	body, err := base64.StdEncoding.DecodeString(rec.Body)
	if err != nil {
		httpx.WriteError(w, apperr.Wrap(apperr.KindInternal, err, "decode idempotency record"))
		return
	}
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(body)
}

func buildScope(r *http.Request) string {
	user := "anonymous"
	if id, ok := auth.FromContext(r.Context()); ok {
		user = id.UserID.String()
	}
	return user + "|" + r.Method + "|" + r.URL.Path
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
