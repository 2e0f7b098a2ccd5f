package service

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

func TestGenerateAndValidateAccessToken_OK(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()

	at, err := svc.generateAccessToken(ctx, id, models.RoleAdmin, time.Now().UTC())
	require.NoError(t, err)

	gotID, gotRole, err := svc.validateAccessToken(at)
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.Equal(t, models.RoleAdmin, gotRole)
}

func TestValidateAccessToken_InvalidAndExpired(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	// Мусор вместо JWT.
	_, _, err := svc.validateAccessToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	// Просроченный: токен выпущен сильно в прошлом (за пределами leeway).
	at, err := svc.generateAccessToken(ctx, uuid.New(), models.RoleUser,
		time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	_, _, err = svc.validateAccessToken(at)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	other, _, ctrl2 := newSvc(t)
	defer ctrl2.Finish()
	other.cfg.JWTSecret = "different-secret"

	at, err := other.generateAccessToken(context.Background(), uuid.New(), models.RoleUser, time.Now().UTC())
	require.NoError(t, err)

	_, _, err = svc.validateAccessToken(at)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_WrongIssuerOrAudience(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	other, _, ctrl2 := newSvc(t)
	defer ctrl2.Finish()
	other.cfg.Issuer = "some-other-service"

	at, err := other.generateAccessToken(context.Background(), uuid.New(), models.RoleUser, time.Now().UTC())
	require.NoError(t, err)

	_, _, err = svc.validateAccessToken(at)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRandomToken_HexAndUnique(t *testing.T) {
	t.Parallel()

	a, err := randomToken()
	require.NoError(t, err)
	b, err := randomToken()
	require.NoError(t, err)

	// 40 байт -> 80 hex-символов.
	require.Len(t, a, 2*refreshTokenBytes)
	_, err = hex.DecodeString(a)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestHashToken_Deterministic(t *testing.T) {
	t.Parallel()

	require.Equal(t, hashToken("abc"), hashToken("abc"))
	require.NotEqual(t, hashToken("abc"), hashToken("abd"))
	// base64url без паддинга: 32 байта -> 43 символа.
	require.Len(t, hashToken("abc"), 43)
}

func TestIssueRefreshToken_CollisionRetry(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	accountID := uuid.New()

	// Первая попытка натыкается на коллизию хэша, вторая проходит.
	first := st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		Return(nil).After(first)

	plain, err := svc.issueRefreshToken(context.Background(), accountID, "")
	require.NoError(t, err)
	require.NotEmpty(t, plain)
}

func TestIssueRefreshToken_CollisionExhausted(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists).Times(5)

	_, err := svc.issueRefreshToken(context.Background(), uuid.New(), "")
	require.ErrorIs(t, err, ErrRefreshTokenCollision)
}

func TestValidateRefreshToken_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	plain := "r"
	hash := hashToken(plain)

	// ExpiresAt == now — токен уже просрочен (срок строго в будущем).
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&models.RefreshToken{
		TokenHash: hash, AccountID: uuid.New(),
		CreatedAt: fixed.Add(-time.Hour), ExpiresAt: fixed,
	}, nil)

	_, err := svc.validateRefreshToken(context.Background(), plain)
	require.ErrorIs(t, err, ErrTokenExpired)
}
