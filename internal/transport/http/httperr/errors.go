// httperr стандартизирует ответы об ошибках HTTP-слоя accounts-сервиса.
// На вход он принимает доменную ошибку сервисного слоя, а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Причины отказа аутентификации (неизвестный email, неподтверждённый аккаунт,
// неверный пароль, битый/просроченный/отозванный токен) намеренно
// неразличимы в ответе — все дают 401/unauthenticated.
package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-accounts-service/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ErrInvalidJSON — локальная ошибка HTTP-слоя: тело запроса не распарсилось.
var ErrInvalidJSON = errors.New("invalid request body")

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - это программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг.
//   - неизвестная ошибка - 500/internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := base(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// base — маппинг доменных ошибок -> HTTP/FE-код/сообщение.
// Таблица повторяет контракты сервисного слоя:
//   - битые входные данные (email/пароль/роль/JSON) -> 400
//   - провал аутентификации любого рода -> 401 (без деталей)
//   - деактивированный аккаунт / защита админа -> 403
//   - аккаунт не найден -> 404
//   - занятый email -> 409
//   - Canceled -> 499 (клиент закрыл соединение)
//   - DeadlineExceeded -> 504
//   - прочее -> 500/internal
func base(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"

	case errors.Is(err, ErrInvalidJSON):
		return http.StatusBadRequest, "invalid_argument", "invalid request body"
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_argument", "invalid email format"
	case errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "invalid_argument", "password is empty"
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "invalid_argument", "password does not meet complexity requirements"
	case errors.Is(err, service.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_argument", "invalid role"
	case errors.Is(err, service.ErrVerificationFailed):
		return http.StatusBadRequest, "verification_failed", "verification failed"

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"

	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, "permission_denied", "account is inactive"
	case errors.Is(err, service.ErrCannotModifyAdmin):
		return http.StatusForbidden, "permission_denied", "cannot modify administrator account"

	case errors.Is(err, service.ErrAccountNotFound):
		return http.StatusNotFound, "not_found", "account not found"

	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already taken"

	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"

	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteForbidden пишет 403/permission_denied с безопасным сообщением.
// Используется middleware авторизации для недостаточных прав.
func WriteForbidden(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, r, http.StatusForbidden, "permission_denied", "insufficient permissions")
}

// WriteUnauthorized пишет 401/unauthenticated.
func WriteUnauthorized(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, r, http.StatusUnauthorized, "unauthenticated", "unauthenticated")
}

// WriteInvalidToken пишет 400/invalid_token: reset-токены приходят в теле
// запроса, а не в Authorization, поэтому их невалидность — ошибка входных
// данных, не аутентификации.
func WriteInvalidToken(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, r, http.StatusBadRequest, "invalid_token", "invalid or expired token")
}

func writeStatic(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	resp := ErrorResponse{Error: APIError{Code: code, Message: msg}}
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
