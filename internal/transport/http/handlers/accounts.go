package handlers

import (
	"errors"
	"net/http"

	"github.com/pribylovaa/go-accounts-service/internal/service"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/httperr"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Title     string `json:"title,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register — POST /accounts/register.
// Создаёт аккаунт и отправляет письмо подтверждения.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	err := h.svc.Register(r.Context(), service.RegisterParams{
		Email:     in.Email,
		Password:  in.Password,
		Title:     in.Title,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{
		Message: "registration successful, please check your email for verification instructions",
	})
}

type tokenBodyRequest struct {
	Token string `json:"token"`
}

// VerifyEmail — POST /accounts/verify-email.
// Подтверждает e-mail по одноразовому токену из письма.
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in tokenBodyRequest
	if err := decodeStrict(r, &in); err != nil || in.Token == "" {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if err := h.svc.VerifyEmail(r.Context(), in.Token); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "verification successful, you can now login",
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword — POST /accounts/forgot-password.
// Ответ одинаков для известных и неизвестных адресов.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotPasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), in.Email); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "please check your email for password reset instructions",
	})
}

// ValidateResetToken — POST /accounts/validate-reset-token.
// Фронт дергает его до показа формы нового пароля.
func (h *Handlers) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	var in tokenBodyRequest
	if err := decodeStrict(r, &in); err != nil || in.Token == "" {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if err := h.svc.ValidateResetToken(r.Context(), in.Token); err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			httperr.WriteInvalidToken(w, r)
			return
		}

		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "token is valid"})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword — POST /accounts/reset-password.
// Устанавливает новый пароль по действующему reset-токену.
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordRequest
	if err := decodeStrict(r, &in); err != nil || in.Token == "" {
		httperr.WriteError(w, r, httperr.ErrInvalidJSON)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), in.Token, in.Password); err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			httperr.WriteInvalidToken(w, r)
			return
		}

		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "password reset successful, you can now login",
	})
}
