package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/pkg/log"
	"github.com/pribylovaa/go-accounts-service/internal/pkg/redact"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

// Authenticate выполняет вход по email+пароль и выпускает пару токенов.
//
// Несуществующий адрес, неподтверждённый аккаунт и неверный пароль
// неразличимы снаружи — все три случая возвращают ErrInvalidCredentials.
// Деактивированный аккаунт получает ErrAccountInactive уже после проверки
// пароля; администратор при включённом AdminIgnoresInactive проходит.
func (s *Service) Authenticate(ctx context.Context, email, password, ip string) (*models.TokenPair, *models.Account, error) {
	const op = "service.auth.Authenticate"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	account, err := s.storage.AccountByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("auth_unknown_email",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		lg.Error("account_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !account.IsVerified() {
		lg.Warn("auth_unverified_account",
			slog.String("op", op),
			slog.String("account_id", account.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !checkPassword(account.PasswordHash, password) {
		lg.Warn("auth_wrong_password",
			slog.String("op", op),
			slog.String("account_id", account.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := s.checkActive(account); err != nil {
		lg.Warn("auth_inactive_account",
			slog.String("op", op),
			slog.String("account_id", account.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issueTokenPair(ctx, account, ip)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("authenticated",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
	)

	return pair, account, nil
}

// RefreshToken ротирует refresh-токен: отзывает предъявленный и выпускает
// новую пару.
//
// Отзыв выполняется условным UPDATE, поэтому из двух конкурентных запросов
// с одним токеном ровно один получает новую пару; проигравший — ErrTokenRevoked.
func (s *Service) RefreshToken(ctx context.Context, refreshToken, ip string) (*models.TokenPair, *models.Account, error) {
	const op = "service.auth.RefreshToken"

	lg := log.From(ctx)

	current, err := s.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.storage.AccountByID(ctx, current.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Аккаунт удалён, токен-сирота больше не действителен.
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.checkActive(account); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	// Хэш преемника вычисляем до отзыва, чтобы условный UPDATE записал
	// связь replaced_by_hash тем же стейтментом, которым выигрывает гонку.
	newPlain, err := randomToken()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	newHash := hashToken(newPlain)

	now := s.now()
	revoked, err := s.storage.RevokeRefreshTokenIfActive(ctx, current.TokenHash, now, ip, newHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.markRevokedInCache(ctx, current.TokenHash)

	if !revoked {
		// Проигравшая сторона конкурентной ротации.
		lg.Warn("refresh_rotation_lost",
			slog.String("op", op),
			slog.String("account_id", account.ID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	successor := &models.RefreshToken{
		TokenHash:   newHash,
		AccountID:   account.ID,
		CreatedAt:   now,
		CreatedByIP: ip,
		ExpiresAt:   now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.storage.SaveRefreshToken(ctx, successor); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheRefreshToken(ctx, successor)

	accessToken, err := s.generateAccessToken(ctx, account.ID, account.Role, now)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("refresh_rotated",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
	)

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    newPlain,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, account, nil
}

// RevokeToken отзывает refresh-токен (logout) без выпуска преемника.
// Действует только на живой токен — условия те же, что при ротации:
// неизвестный — ErrInvalidToken, просроченный — ErrTokenExpired,
// уже отозванный — ErrTokenRevoked.
func (s *Service) RevokeToken(ctx context.Context, refreshToken, ip string) error {
	const op = "service.auth.RevokeToken"

	lg := log.From(ctx)

	current, err := s.validateRefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	revoked, err := s.storage.RevokeRefreshTokenIfActive(ctx, current.TokenHash, s.now(), ip, "")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	s.markRevokedInCache(ctx, current.TokenHash)

	if !revoked {
		// Конкурентный logout/ротация успели первыми.
		return fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	lg.Info("refresh_revoked_manual",
		slog.String("op", op),
		slog.String("account_id", current.AccountID.String()),
	)

	return nil
}

// ValidateAccessToken проверяет access-токен и возвращает субъект и роль.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (uuid.UUID, models.Role, error) {
	const op = "service.auth.ValidateAccessToken"

	id, role, err := s.validateAccessToken(accessToken)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, err)
	}

	return id, role, nil
}

// CheckAccess проверяет access-токен и возвращает актуальное состояние
// аккаунта-субъекта. Используется middleware авторизации.
//
// Валидный JWT удалённого аккаунта не даёт доступа (ErrAccountNotFound);
// роль и активность берутся из БД, а не из клеймов, чтобы деактивация
// и смена роли действовали немедленно, не дожидаясь истечения токена.
func (s *Service) CheckAccess(ctx context.Context, accessToken string) (*models.Account, error) {
	const op = "service.auth.CheckAccess"

	id, _, err := s.validateAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	account, err := s.storage.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.checkActive(account); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

// OwnsToken сообщает, принадлежит ли живой (не отозванный и не
// просроченный) refresh-токен указанному аккаунту. Используется
// HTTP-слоем: обычный пользователь может отзывать только собственные
// активные токены.
func (s *Service) OwnsToken(ctx context.Context, accountID uuid.UUID, refreshToken string) (bool, error) {
	const op = "service.auth.OwnsToken"

	token, err := s.storage.RefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return token.AccountID == accountID && token.Active(s.now()), nil
}

// RefreshTokensByAccount возвращает все refresh-токены аккаунта
// (активные и отозванные) для административного обзора сессий.
func (s *Service) RefreshTokensByAccount(ctx context.Context, accountID uuid.UUID) ([]models.RefreshToken, error) {
	const op = "service.auth.RefreshTokensByAccount"

	tokens, err := s.storage.RefreshTokensByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// checkActive проверяет флаг активности с учётом политики для администраторов.
func (s *Service) checkActive(account *models.Account) error {
	if account.IsActive {
		return nil
	}

	if account.Role == models.RoleAdmin && s.cfg.AdminIgnoresInactive {
		return nil
	}

	return ErrAccountInactive
}

// issueTokenPair выпускает новую пару access+refresh токенов.
func (s *Service) issueTokenPair(ctx context.Context, account *models.Account, ip string) (*models.TokenPair, error) {
	const op = "service.auth.issueTokenPair"

	now := s.now()

	accessToken, err := s.generateAccessToken(ctx, account.ID, account.Role, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plain, err := s.issueRefreshToken(ctx, account.ID, ip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    plain,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
