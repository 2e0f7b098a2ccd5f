package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/pribylovaa/go-accounts-service/internal/pkg/log"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/httperr"
)

// Recover перехватывает панику хендлера и отвечает единым конвертом
// 500/internal. Причина и стек остаются в логе, клиенту не утекают.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				reason := recover()
				if reason == nil {
					return
				}

				log.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("reason", reason),
					slog.String("stack", string(debug.Stack())),
				)
				httperr.WriteError(w, r, errors.New("internal"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
