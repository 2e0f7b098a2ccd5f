// handlers содержит REST-хендлеры accounts-сервиса.
//
// Конвенции:
//   - тело запроса парсится строго (неизвестные поля — ошибка 400);
//   - все ошибки уходят через httperr.WriteError в едином конверте;
//   - refresh-токен живёт в HttpOnly-куке и дублируется в теле ответа
//     для не-браузерных клиентов.
package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pribylovaa/go-accounts-service/internal/service"
)

// refreshCookieName — имя HttpOnly-куки с refresh-токеном.
const refreshCookieName = "refreshToken"

// Handlers агрегирует зависимости HTTP-слоя.
type Handlers struct {
	svc *service.Service

	// refreshTTL задаёт срок жизни refresh-куки (совпадает с TTL токена).
	refreshTTL time.Duration
	// secureCookies включает флаг Secure на куках (прод за TLS).
	secureCookies bool
}

// New создаёт набор хендлеров.
func New(svc *service.Service, refreshTTL time.Duration, secureCookies bool) *Handlers {
	return &Handlers{
		svc:           svc,
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
	}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через httperr.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// setRefreshCookie выставляет HttpOnly-куку с refresh-токеном.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.refreshTTL),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie затирает refresh-куку (logout).
func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshTokenFrom достаёт refresh-токен: сначала из тела (поле bodyToken),
// затем из куки.
func refreshTokenFrom(r *http.Request, bodyToken string) string {
	if bodyToken != "" {
		return bodyToken
	}

	if c, err := r.Cookie(refreshCookieName); err == nil {
		return c.Value
	}

	return ""
}

// clientIP возвращает адрес клиента: первый элемент X-Forwarded-For,
// если сервис стоит за прокси, иначе host-часть RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
