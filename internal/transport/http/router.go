// http собирает REST-роутер accounts-сервиса.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/service"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/handlers"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger        *slog.Logger
	Timeout       time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
	BasePath      string // например, "/api"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	// Зависимости хендлеров.
	h := handlers.New(svc, opts.RefreshTTL, opts.SecureCookies)

	// Регистрация маршрутов.
	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, svc)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, svc)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, svc *service.Service) {
	authed := middleware.Authorize(svc)
	adminOnly := middleware.Authorize(svc, models.RoleAdmin)

	// Публичный флоу регистрации и входа.
	r.Post("/accounts/register", h.Register)
	r.Post("/accounts/verify-email", h.VerifyEmail)
	r.Post("/accounts/authenticate", h.Authenticate)
	r.Post("/accounts/refresh-token", h.RefreshToken)
	r.Post("/accounts/forgot-password", h.ForgotPassword)
	r.Post("/accounts/validate-reset-token", h.ValidateResetToken)
	r.Post("/accounts/reset-password", h.ResetPassword)

	// Отзыв refresh-токена: свой токен или админ.
	r.With(authed).Post("/accounts/revoke-token", h.RevokeToken)

	// Управление аккаунтами.
	r.With(adminOnly).Get("/accounts", h.ListAccounts)
	r.With(adminOnly).Post("/accounts", h.CreateAccount)
	r.With(authed).Get("/accounts/{id}", h.GetAccount)
	r.With(authed).Put("/accounts/{id}", h.UpdateAccount)
	r.With(authed).Delete("/accounts/{id}", h.DeleteAccount)
	r.With(adminOnly).Patch("/accounts/{id}/status", h.UpdateStatus)
	r.With(adminOnly).Get("/accounts/{id}/refresh-tokens", h.ListRefreshTokens)
}
