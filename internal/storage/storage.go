package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-accounts-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (аккаунт/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/refresh-token).
	ErrAlreadyExists = errors.New("already exists")
)

// AccountStorage выполняет операции над аккаунтами.
type AccountStorage interface {
	// SaveAccount создает новый аккаунт в БД.
	SaveAccount(ctx context.Context, account *models.Account) error
	// AccountByEmail находит аккаунт по email (нормализованному).
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// AccountByID находит аккаунт по ID.
	AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// AccountByVerificationToken находит аккаунт по токену подтверждения e-mail.
	AccountByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	// AccountByResetToken находит аккаунт по токену сброса пароля.
	AccountByResetToken(ctx context.Context, token string) (*models.Account, error)
	// ListAccounts возвращает все аккаунты (для административного CRUD).
	ListAccounts(ctx context.Context) ([]models.Account, error)
	// UpdateAccount сохраняет изменённые поля существующего аккаунта.
	UpdateAccount(ctx context.Context, account *models.Account) error
	// DeleteAccount удаляет аккаунт; refresh-токены удаляются каскадно.
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	// CountAccounts возвращает число аккаунтов (правило «первый — Admin»).
	CountAccounts(ctx context.Context) (int64, error)
}

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-токен в БД.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeRefreshTokenIfActive пытается атомарно отозвать токен,
	// если он ещё не был отозван. replacedByHash — хэш преемника при
	// ротации (пустая строка при logout). Возвращает:
	//   (true, nil)  — токен был активен и отозван сейчас;
	//   (false, nil) — токен существует, но уже был отозван;
	//   (false, ErrNotFound) — токен не найден.
	RevokeRefreshTokenIfActive(ctx context.Context, hash string, now time.Time, byIP, replacedByHash string) (bool, error)
	// RefreshTokensByAccount возвращает все токены аккаунта (новые первыми).
	RefreshTokensByAccount(ctx context.Context, accountID uuid.UUID) ([]models.RefreshToken, error)
	// DeleteExpiredTokens удаляет все просроченные токены.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	AccountStorage
	RefreshTokenStorage
	Close()
}
