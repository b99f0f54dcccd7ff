package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type ctxKey struct{}

// Identity is the authenticated caller as asserted by the token. It is not
// re-checked against the users table.
type Identity struct {
	UserID uuid.UUID
	Role   domain.Role
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Middleware validates the bearer token and stores the caller identity in the
// request context.
func (t *Tokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			raw = strings.TrimSpace(raw[7:])
		} else {
			raw = ""
		}
		if raw == "" {
			httpx.WriteError(w, apperr.New(apperr.KindAuthenticationRequired, "missing credentials"))
			return
		}

		claims, err := t.Parse(raw)
		if err != nil {
			httpx.WriteError(w, apperr.Wrap(apperr.KindAuthenticationRequired, err, "invalid token"))
			return
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				httpx.WriteError(w, apperr.New(apperr.KindAuthenticationRequired, "authentication required"))
				return
			}
			if !slices.Contains(roles, id.Role) {
				httpx.WriteError(w, apperr.New(apperr.KindForbidden, "access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
