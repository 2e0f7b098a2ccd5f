// postgres реализует storage.Storage поверх пула pgx.
// Схема (accounts + refresh_tokens) задаётся миграциями из каталога
// migrations/ и в рантайме сервисом не создаётся.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

type Storage struct {
	db *pgxpool.Pool
}

// New подключается к PostgreSQL по DSN и проверяет соединение.
// Живость соединений поддерживается периодическим health check пула.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse dsn: %w", op, err)
	}
	cfg.HealthCheckPeriod = time.Minute

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}
