// cache — Redis-кэш refresh-токенов. Ускоряет быстрый отказ по
// отозванным и просроченным токенам; источником истины остаётся БД,
// положительные решения подтверждаются условным UPDATE при ротации.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RefreshEntry — кэшируемое состояние refresh-токена (ключ — его хэш).
type RefreshEntry struct {
	AccountID uuid.UUID `json:"aid"`
	Revoked   bool      `json:"rev"`
	ExpiresAt time.Time `json:"exp"`
}

// RefreshCache — минимальный контракт кэша refresh-токенов.
type RefreshCache interface {
	// Get возвращает запись и признак её наличия в кэше.
	Get(ctx context.Context, hash string) (*RefreshEntry, bool, error)
	// Set сохраняет запись с TTL (обычно ExpiresAt-now).
	Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error
	// MarkRevoked помечает запись revoked=true, сохраняя остаточный TTL.
	MarkRevoked(ctx context.Context, hash string) error
	// Close закрывает клиент Redis.
	Close() error
}

const defaultPrefix = "accounts:rt:"

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

var _ RefreshCache = (*redisCache)(nil)

// NewRedisCache создаёт клиент по URL (redis://:pass@host:6379/0) и
// проверяет соединение. Пустой prefix заменяется на "accounts:rt:".
func NewRedisCache(redisURL, prefix string) (RefreshCache, error) {
	if prefix == "" {
		prefix = defaultPrefix
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

// Запись хранится одним JSON-значением с TTL на ключе: состояние токена
// читается и пишется атомарно, без пайплайна.
func (c *redisCache) Get(ctx context.Context, hash string) (*RefreshEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, err
	}

	var e RefreshEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, err
	}

	return &e, true, nil
}

func (c *redisCache) Set(ctx context.Context, hash string, e *RefreshEntry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, c.key(hash), raw, ttl).Err()
}

// MarkRevoked перечитывает запись, ставит revoked и сохраняет её с
// остаточным TTL ключа. Отсутствующая запись — no-op: БД отклонит
// отозванный токен и без кэша.
func (c *redisCache) MarkRevoked(ctx context.Context, hash string) error {
	key := c.key(hash)

	entry, found, err := c.Get(ctx, hash)
	if err != nil || !found {
		return err
	}

	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	entry.Revoked = true
	return c.Set(ctx, hash, entry, ttl)
}

func (c *redisCache) Close() error { return c.rdb.Close() }
