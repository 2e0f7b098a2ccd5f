package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/service"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/httperr"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/middleware"
)

// accountIDParam парсит {id} из пути.
func accountIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// ListAccounts — GET /accounts (только админ).
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Accounts(r.Context())
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	out := make([]*models.AccountInfo, 0, len(accounts))
	for i := range accounts {
		out = append(out, models.InfoFromAccount(&accounts[i]))
	}

	writeJSON(w, http.StatusOK, out)
}

// GetAccount — GET /accounts/{id} (сам аккаунт или админ).
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		httperr.WriteUnauthorized(w, r)
		return
	}

	id, err := accountIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if !principal.IsAdmin() && principal.AccountID != id {
		httperr.WriteForbidden(w, r)
		return
	}

	account, err := h.svc.AccountByID(r.Context(), id)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.InfoFromAccount(account))
}

type createAccountRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Title     string `json:"title,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// CreateAccount — POST /accounts (только админ).
// Созданный аккаунт сразу подтверждён, письмо не отправляется.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in createAccountRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), service.CreateParams{
		Email:     in.Email,
		Password:  in.Password,
		Title:     in.Title,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      models.Role(in.Role),
	})
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.InfoFromAccount(account))
}

type updateAccountRequest struct {
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	Title     *string `json:"title,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *string `json:"role,omitempty"`
}

// UpdateAccount — PUT /accounts/{id} (сам аккаунт или админ).
// Смена роли доступна только администратору; у обычного пользователя
// поле молча игнорируется.
func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		httperr.WriteUnauthorized(w, r)
		return
	}

	id, err := accountIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if !principal.IsAdmin() && principal.AccountID != id {
		httperr.WriteForbidden(w, r)
		return
	}

	var in updateAccountRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	params := service.UpdateParams{
		Email:     in.Email,
		Password:  in.Password,
		Title:     in.Title,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if in.Role != nil && principal.IsAdmin() {
		role := models.Role(*in.Role)
		params.Role = &role
	}

	account, err := h.svc.UpdateAccount(r.Context(), id, params)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.InfoFromAccount(account))
}

// DeleteAccount — DELETE /accounts/{id} (сам аккаунт или админ).
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		httperr.WriteUnauthorized(w, r)
		return
	}

	id, err := accountIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if !principal.IsAdmin() && principal.AccountID != id {
		httperr.WriteForbidden(w, r)
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), id); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "account deleted"})
}

type updateStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// UpdateStatus — PATCH /accounts/{id}/status (только админ).
// Деактивировать аккаунт администратора нельзя.
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	var in updateStatusRequest
	if err := decodeStrict(r, &in); err != nil || in.IsActive == nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	account, err := h.svc.UpdateAccountStatus(r.Context(), id, *in.IsActive)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.InfoFromAccount(account))
}

type refreshTokenInfo struct {
	CreatedAt   time.Time  `json:"created_at"`
	CreatedByIP string     `json:"created_by_ip,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	RevokedByIP string     `json:"revoked_by_ip,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// ListRefreshTokens — GET /accounts/{id}/refresh-tokens (только админ).
// Обзор сессий аккаунта; сами токены (и их хэши) наружу не отдаются.
func (h *Handlers) ListRefreshTokens(w http.ResponseWriter, r *http.Request) {
	id, err := accountIDParam(r)
	if err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if _, err := h.svc.AccountByID(r.Context(), id); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	tokens, err := h.svc.RefreshTokensByAccount(r.Context(), id)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	now := time.Now().UTC()
	out := make([]refreshTokenInfo, 0, len(tokens))
	for i := range tokens {
		t := &tokens[i]
		out = append(out, refreshTokenInfo{
			CreatedAt:   t.CreatedAt,
			CreatedByIP: t.CreatedByIP,
			ExpiresAt:   t.ExpiresAt,
			RevokedAt:   t.RevokedAt,
			RevokedByIP: t.RevokedByIP,
			IsActive:    t.Active(now),
		})
	}

	writeJSON(w, http.StatusOK, out)
}
