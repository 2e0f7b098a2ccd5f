package middleware

import (
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/go-accounts-service/internal/pkg/log"
)

// Logging кладёт request-scoped логгер (с request_id) в контекст и пишет
// access-запись по завершении запроса. Уровень зависит от исхода:
// 5xx — Error, 4xx — Warn, остальное — Info.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := RequestIDFrom(r.Context()); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			r = r.WithContext(logctx.Into(r.Context(), reqLogger))

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			switch {
			case sw.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case sw.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			reqLogger.LogAttrs(r.Context(), level, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
			)
		})
	}
}
