package handlers

import (
	"net/http"
	"time"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/httperr"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/middleware"
)

type authenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Account         *models.AccountInfo `json:"account"`
	AccessToken     string              `json:"jwt_token"`
	AccessExpiresAt time.Time           `json:"jwt_expires_at"`
	RefreshToken    string              `json:"refresh_token"`
}

// Authenticate — POST /accounts/authenticate.
// Вход по email+пароль; refresh-токен дополнительно уходит в HttpOnly-куку.
func (h *Handlers) Authenticate(w http.ResponseWriter, r *http.Request) {
	var in authenticateRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	pair, account, err := h.svc.Authenticate(r.Context(), in.Email, in.Password, clientIP(r))
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		Account:         models.InfoFromAccount(account),
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		RefreshToken:    pair.RefreshToken,
	})
}

type refreshRequest struct {
	Token string `json:"token,omitempty"`
}

// RefreshToken — POST /accounts/refresh-token.
// Ротирует refresh-токен из тела или куки и возвращает новую пару.
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeStrict(r, &in); err != nil {
			httperr.WriteError(w, r, httperr.ErrInvalidJSON)
			return
		}
	}

	token := refreshTokenFrom(r, in.Token)
	if token == "" {
		httperr.WriteUnauthorized(w, r)
		return
	}

	pair, account, err := h.svc.RefreshToken(r.Context(), token, clientIP(r))
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, tokenResponse{
		Account:         models.InfoFromAccount(account),
		AccessToken:     pair.AccessToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		RefreshToken:    pair.RefreshToken,
	})
}

type revokeRequest struct {
	Token string `json:"token,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// RevokeToken — POST /accounts/revoke-token (требует аутентификации).
// Пользователь может отзывать только собственные токены; администратор — любые.
func (h *Handlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		httperr.WriteUnauthorized(w, r)
		return
	}

	var in revokeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeStrict(r, &in); err != nil {
			httperr.WriteError(w, r, httperr.ErrInvalidJSON)
			return
		}
	}

	token := refreshTokenFrom(r, in.Token)
	if token == "" {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if !principal.IsAdmin() && !principal.OwnsToken(r.Context(), token) {
		httperr.WriteForbidden(w, r)
		return
	}

	if err := h.svc.RevokeToken(r.Context(), token, clientIP(r)); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "token revoked"})
}
