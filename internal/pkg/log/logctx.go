// log переносит request-scoped *slog.Logger через context.Context:
// HTTP-мидлвар кладёт логгер с request_id, сервисный слой достаёт его
// через From и пишет доменные события тем же логгером.
package log

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// Into возвращает контекст с привязанным логгером.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From достаёт логгер из контекста; если логгер не привязан (или привязан
// nil), возвращается slog.Default() — вызывающему не нужен nil-check.
func From(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || l == nil {
		return slog.Default()
	}

	return l
}
