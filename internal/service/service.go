// service содержит бизнес-логику accounts-сервиса:
// регистрацию с подтверждением e-mail, аутентификацию, выпуск/ротацию/отзыв
// refresh-токенов, сброс пароля и административный CRUD аккаунтов.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Ошибки возвращаются доменными переменными и далее маппятся
//     HTTP-слоем на статус-коды (см. комментарии к переменным ниже).
//   - Отправка писем всегда асинхронна и никогда не роняет основную операцию.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pribylovaa/go-accounts-service/internal/cache"
	"github.com/pribylovaa/go-accounts-service/internal/config"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

var (
	// ErrInvalidCredentials — e-mail не найден, аккаунт не подтверждён или
	// пароль неверен. Случаи намеренно не различаются, чтобы не раскрывать,
	// какие адреса зарегистрированы. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive — аккаунт подтверждён, но деактивирован
	// администратором. HTTP 403.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrInvalidToken — токен (access/refresh/reset) некорректен или
	// отсутствует в хранилище. HTTP 401 (для reset-токена — 400).
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked — токен отозван (logout/ротация) и недействителен
	// независимо от срока; сюда же попадает проигравшая сторона
	// конкурентной ротации. HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят подтверждённым аккаунтом. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrVerificationFailed — токен подтверждения e-mail не найден. HTTP 400.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrAccountNotFound — аккаунт не найден (CRUD/middleware). HTTP 404;
	// в middleware — 401, т.к. удалённый аккаунт с живым JWT не авторизован.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCannotModifyAdmin — попытка сменить статус аккаунта администратора.
	// HTTP 403.
	ErrCannotModifyAdmin = errors.New("cannot modify administrator account")

	// ErrRefreshTokenCollision — исчерпаны попытки сгенерировать уникальный
	// refresh-токен (хэш уже есть в БД). HTTP 500.
	ErrRefreshTokenCollision = errors.New("refresh token collision")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrInvalidRole — неизвестная роль в административном CRUD. HTTP 400.
	ErrInvalidRole = errors.New("invalid role")
)

// EmailSender — коллаборатор отправки писем. Реализация обязана быть
// потокобезопасной; ошибки отправки логируются и не влияют на исход
// операций сервиса.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Service описывает бизнес-логику accounts-сервиса.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
	email   EmailSender        // может быть nil, тогда письма только логируются
	origin  string             // базовый URL фронтенда для ссылок в письмах

	// now — источник времени; подменяется в тестах для детерминированной
	// проверки сроков действия.
	now func() time.Time
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}

// SetEmailSender устанавливает отправителя писем (опционально).
// origin — базовый URL фронтенда для ссылок; пустой origin означает,
// что в письме отправляется сам токен.
func (s *Service) SetEmailSender(e EmailSender, origin string) {
	s.email = e
	s.origin = strings.TrimRight(origin, "/")
}
