package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/storefront/internal/apperr"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpx"
)

type EmailFinder interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type TokenIssuer interface {
	Issue(user domain.User, now time.Time) (string, error)
}

type Handler struct {
	repo   EmailFinder
	tokens TokenIssuer
	logger *slog.Logger
}

func NewHandler(repo EmailFinder, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		tokens: tokens,
		logger: logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	user, err := h.repo.GetByEmail(r.Context(), req.Email)
	if err == nil {
		err = CheckPassword(user.PasswordHash, req.Password)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCredentials) {
			httpx.WriteError(w, apperr.New(apperr.KindAuthenticationRequired, "invalid email or password"))
			return
		}
		h.logger.Error("failed to load user", "error", err)
		httpx.WriteError(w, apperr.Wrap(apperr.KindPersistenceFailure, err, "load user"))
		return
	}

	token, err := h.tokens.Issue(*user, time.Now())
	if err != nil {
		h.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		httpx.WriteError(w, apperr.Wrap(apperr.KindInternal, err, "issue token"))
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, User: *user})
}
