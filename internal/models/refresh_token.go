package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken — персистентная запись refresh-токена.
//
// Описание:
//   - в БД хранится только SHA-256 хэш «сырого» токена (TokenHash);
//   - записи образуют односвязную цепочку ротации: при каждом refresh
//     предшественник получает RevokedAt/RevokedByIP и ReplacedByHash
//     с хэшем преемника;
//   - отозванный токен неизменяем — повторная ротация от него невозможна.
type RefreshToken struct {
	// TokenHash — base64url(SHA-256) сырого токена; уникален.
	TokenHash string
	AccountID uuid.UUID
	CreatedAt time.Time
	// CreatedByIP — адрес клиента, которому токен был выдан.
	CreatedByIP string
	ExpiresAt   time.Time
	// RevokedAt — момент отзыва (nil — токен не отозван).
	RevokedAt   *time.Time
	RevokedByIP string
	// ReplacedByHash — хэш токена-преемника при ротации; пустая строка,
	// если токен отозван без замены (logout) или ещё активен.
	ReplacedByHash string
}

// Expired — истёк ли срок действия токена на момент now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active — токен не отозван и не просрочен.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && !t.Expired(now)
}
