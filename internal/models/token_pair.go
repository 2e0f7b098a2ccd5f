package models

import "time"

// TokenPair — пара токенов, выдаваемая при аутентификации/ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — случайный секрет, который клиент хранит и предъявляет
//     для выпуска новой пары; на сервере хранится только его хэш;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}
