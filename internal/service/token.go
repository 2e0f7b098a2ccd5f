package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-accounts-service/internal/cache"
	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/pkg/log"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

// refreshTokenBytes — размер случайной части refresh-токена и одноразовых
// токенов (верификация e-mail, сброс пароля): 40 байт → 80 hex-символов.
const refreshTokenBytes = 40

type accessClaims struct {
	AccountID string `json:"id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// generateAccessToken генерирует access-токен (HS256).
func (s *Service) generateAccessToken(ctx context.Context, accountID uuid.UUID, role models.Role, now time.Time) (string, error) {
	const op = "service.token.generateAccessToken"

	lg := log.From(ctx)

	claims := accessClaims{
		AccountID: accountID.String(),
		Role:      string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   accountID.String(),
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// validateAccessToken валидирует access-токен и возвращает субъект и роль.
func (s *Service) validateAccessToken(tokenStr string) (uuid.UUID, models.Role, error) {
	const op = "service.token.validateAccessToken"

	token, err := jwt.ParseWithClaims(tokenStr, &accessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	role := models.Role(claims.Role)
	if !role.Valid() {
		return uuid.Nil, "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return id, role, nil
}

// randomToken возвращает криптографически стойкий одноразовый токен
// (refresh/верификация/сброс): 40 случайных байт в hex.
func randomToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// hashToken возвращает base64url(SHA-256) сырого токена — форму хранения
// refresh-токенов в БД.
func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// issueRefreshToken создает и сохраняет новый refresh-токен аккаунта.
// Возвращает сырой токен; в БД попадает только хэш.
func (s *Service) issueRefreshToken(ctx context.Context, accountID uuid.UUID, ip string) (string, error) {
	const (
		op          = "service.token.issueRefreshToken"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		plain, err := randomToken()
		if err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}

		now := s.now()
		token := &models.RefreshToken{
			TokenHash:   hashToken(plain),
			AccountID:   accountID,
			CreatedAt:   now,
			CreatedByIP: ip,
			ExpiresAt:   now.Add(s.cfg.RefreshTokenTTL),
		}

		if err := s.storage.SaveRefreshToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}

		s.cacheRefreshToken(ctx, token)

		return plain, nil
	}

	lg.Error("refresh_collision_exceeded",
		slog.String("op", op),
	)

	return "", fmt.Errorf("%s: %w", op, ErrRefreshTokenCollision)
}

// validateRefreshToken валидирует refresh-токен. Кэш используется только
// как быстрый отказ по отозванным/просроченным токенам: положительные
// решения всё равно подтверждаются условным UPDATE при ротации.
func (s *Service) validateRefreshToken(ctx context.Context, plain string) (*models.RefreshToken, error) {
	const op = "service.token.validateRefreshToken"

	lg := log.From(ctx)
	hash := hashToken(plain)

	if s.rcache != nil {
		entry, found, err := s.rcache.Get(ctx, hash)
		if err != nil {
			// Кэш не должен ломать аутентификацию — идём в БД.
			lg.Warn("refresh_cache_get_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if found {
			if entry.Revoked {
				return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
			}
			if !s.now().Before(entry.ExpiresAt) {
				return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
			}

			return &models.RefreshToken{
				TokenHash: hash,
				AccountID: entry.AccountID,
				ExpiresAt: entry.ExpiresAt,
			}, nil
		}
	}

	token, err := s.storage.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found",
				slog.String("op", op),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		lg.Error("refresh_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if token.RevokedAt != nil {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("account_id", token.AccountID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	if token.Expired(s.now()) {
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("account_id", token.AccountID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	s.cacheRefreshToken(ctx, token)

	return token, nil
}

// cacheRefreshToken кладёт запись токена в кэш (best effort).
func (s *Service) cacheRefreshToken(ctx context.Context, token *models.RefreshToken) {
	if s.rcache == nil {
		return
	}

	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}

	entry := &cache.RefreshEntry{
		AccountID: token.AccountID,
		Revoked:   token.RevokedAt != nil,
		ExpiresAt: token.ExpiresAt,
	}
	if err := s.rcache.Set(ctx, token.TokenHash, entry, ttl); err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed",
			slog.String("err", err.Error()),
		)
	}
}

// markRevokedInCache помечает токен отозванным в кэше (best effort).
func (s *Service) markRevokedInCache(ctx context.Context, hash string) {
	if s.rcache == nil {
		return
	}

	if err := s.rcache.MarkRevoked(ctx, hash); err != nil {
		log.From(ctx).Warn("refresh_cache_revoke_failed",
			slog.String("err", err.Error()),
		)
	}
}
