package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/service"
)

// fakeChecker — управляемая реализация AccessChecker для тестов.
type fakeChecker struct {
	account *models.Account
	err     error

	owns    bool
	ownsErr error

	gotToken string
}

func (f *fakeChecker) CheckAccess(_ context.Context, accessToken string) (*models.Account, error) {
	f.gotToken = accessToken
	if f.err != nil {
		return nil, f.err
	}
	return f.account, nil
}

func (f *fakeChecker) OwnsToken(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return f.owns, f.ownsErr
}

func activeAccount(role models.Role) *models.Account {
	return &models.Account{
		ID:       uuid.New(),
		Email:    "user@example.com",
		Role:     role,
		IsActive: true,
	}
}

func doAuthorized(t *testing.T, svc AccessChecker, authHeader string, allowed ...models.Role) (*httptest.ResponseRecorder, *Principal) {
	t.Helper()

	var got *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFrom(r.Context()); ok {
			got = p
		}
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()

	Authorize(svc, allowed...)(next).ServeHTTP(rec, req)
	return rec, got
}

func TestAuthorize_MissingBearer_RoleRequired(t *testing.T) {
	t.Parallel()

	svc := &fakeChecker{account: activeAccount(models.RoleUser)}

	for _, header := range []string{"", "Basic abc", "bearer lowercase", "Bearer "} {
		rec, principal := doAuthorized(t, svc, header, models.RoleAdmin)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		require.Nil(t, principal)
	}

	// До сервиса запрос не дошёл ни разу.
	require.Empty(t, svc.gotToken)
}

func TestAuthorize_MissingBearer_NoRoles_PassesWithoutPrincipal(t *testing.T) {
	t.Parallel()

	// Маршрут без требования ролей: анонимный запрос проходит, субъект
	// в контекст не кладётся.
	svc := &fakeChecker{account: activeAccount(models.RoleUser)}
	rec, principal := doAuthorized(t, svc, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, principal)
	require.Empty(t, svc.gotToken)
}

func TestAuthorize_InvalidOrExpiredToken(t *testing.T) {
	t.Parallel()

	for _, err := range []error{service.ErrInvalidToken, service.ErrTokenExpired} {
		svc := &fakeChecker{err: err}
		rec, _ := doAuthorized(t, svc, "Bearer some.jwt.token")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthorize_DeletedAccount_Unauthorized(t *testing.T) {
	t.Parallel()

	// Живой JWT удалённого аккаунта даёт 401, а не 404.
	svc := &fakeChecker{err: service.ErrAccountNotFound}
	rec, _ := doAuthorized(t, svc, "Bearer some.jwt.token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorize_InactiveAccount_Forbidden(t *testing.T) {
	t.Parallel()

	svc := &fakeChecker{err: service.ErrAccountInactive}
	rec, _ := doAuthorized(t, svc, "Bearer some.jwt.token")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthorize_RoleNotAllowed_Forbidden(t *testing.T) {
	t.Parallel()

	svc := &fakeChecker{account: activeAccount(models.RoleUser)}
	rec, principal := doAuthorized(t, svc, "Bearer some.jwt.token", models.RoleAdmin)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Nil(t, principal)
}

func TestAuthorize_OK_PrincipalInContext(t *testing.T) {
	t.Parallel()

	account := activeAccount(models.RoleAdmin)
	svc := &fakeChecker{account: account, owns: true}

	rec, principal := doAuthorized(t, svc, "Bearer some.jwt.token", models.RoleAdmin)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "some.jwt.token", svc.gotToken)

	require.NotNil(t, principal)
	require.Equal(t, account.ID, principal.AccountID)
	require.Equal(t, models.RoleAdmin, principal.Role)
	require.True(t, principal.IsAdmin())
	require.True(t, principal.OwnsToken(context.Background(), "refresh-token"))
}

func TestAuthorize_EmptyAllowedList_AnyAuthenticated(t *testing.T) {
	t.Parallel()

	svc := &fakeChecker{account: activeAccount(models.RoleUser)}
	rec, principal := doAuthorized(t, svc, "Bearer some.jwt.token")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, principal)
	require.False(t, principal.IsAdmin())
}

func TestPrincipal_OwnsToken_ErrorMeansNo(t *testing.T) {
	t.Parallel()

	svc := &fakeChecker{account: activeAccount(models.RoleUser), ownsErr: context.DeadlineExceeded}
	_, principal := doAuthorized(t, svc, "Bearer some.jwt.token")

	require.NotNil(t, principal)
	require.False(t, principal.OwnsToken(context.Background(), "refresh-token"))
}

func TestPrincipalFrom_EmptyContext(t *testing.T) {
	t.Parallel()

	p, ok := PrincipalFrom(context.Background())
	require.False(t, ok)
	require.Nil(t, p)
}
