package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

// Файл интеграционных тестов для пакета postgres (репозиторий account.go):
// - поднимает реальный PostgreSQL через testcontainers-go (образ postgres:16-alpine);
// - применяет миграции из ./migrations;
// - проверяет happy-path, уникальность email (CITEXT), поиск по одноразовым
//   токенам и корректную обработку ошибок контекста.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// repoRootFromThisFile — определяет корень репозитория относительно текущего файла тестов.
// Используется для поиска SQL-миграций в каталоге ./migrations независимо от текущего рабочего каталога.
func repoRootFromThisFile() string {
	// internal/storage/postgres/... -> подняться на 3 уровня до корня.
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", ".."))
}

// readMigration — читает содержимое SQL-миграции из подкаталога ./migrations.
func readMigration(t *testing.T, name string) string {
	t.Helper()
	root := repoRootFromThisFile()
	path := filepath.Join(root, "migrations", name)
	b, err := os.ReadFile(path)
	require.NoError(t, err, "read migration %s", path)
	return string(b)
}

// startPostgres — поднимает временный экземпляр PostgreSQL через testcontainers-go,
// применяет миграции и возвращает инициализированное хранилище и функцию очистки.
// Если переменная окружения GO_TEST_INTEGRATION не установлена — тест пропускается.
func startPostgres(t *testing.T) (*Storage, func()) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	// применяем миграции.
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, readMigration(t, "1_init_accounts.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, readMigration(t, "2_init_refresh_tokens.up.sql"))
	require.NoError(t, err)

	st, err := New(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		st.Close()
		_ = c.Terminate(context.Background())
	}
	return st, cleanup
}

// testAccount — минимальный валидный аккаунт для вставки.
func testAccount(email string) *models.Account {
	now := time.Now().UTC()
	return &models.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TestIntegration_SaveAccount_And_Lookups_OK — happy-path: сохранение аккаунта
// и последующий поиск по email (регистронезависимо) и ID.
func TestIntegration_SaveAccount_And_Lookups_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	a := testAccount("User@Example.Com")
	require.NoError(t, st.SaveAccount(context.Background(), a))

	gotByEmail, err := st.AccountByEmail(context.Background(), strings.ToLower(a.Email))
	require.NoError(t, err)
	require.Equal(t, a.ID, gotByEmail.ID)
	require.WithinDuration(t, a.CreatedAt, gotByEmail.CreatedAt, time.Second)

	gotByID, err := st.AccountByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, gotByID.ID)
	require.Nil(t, gotByID.VerifiedAt)
	require.False(t, gotByID.IsVerified())
}

// TestIntegration_SaveAccount_UniqueEmail_CaseInsensitive — конфликт
// уникальности по email при различии только в регистре.
func TestIntegration_SaveAccount_UniqueEmail_CaseInsensitive(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	require.NoError(t, st.SaveAccount(context.Background(), testAccount("user@example.com")))

	dup := testAccount("USER@EXAMPLE.COM") // тот же email, другой регистр
	err := st.SaveAccount(context.Background(), dup)
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

// TestIntegration_AccountByTokens — поиск по одноразовым токенам; пустой
// токен не должен находить подтверждённые аккаунты с пустой колонкой.
func TestIntegration_AccountByTokens(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	a := testAccount("user@example.com")
	a.VerificationToken = "verify-tok"
	a.ResetToken = "reset-tok"
	exp := time.Now().UTC().Add(time.Hour)
	a.ResetTokenExpiresAt = &exp
	require.NoError(t, st.SaveAccount(ctx, a))

	got, err := st.AccountByVerificationToken(ctx, "verify-tok")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	got, err = st.AccountByResetToken(ctx, "reset-tok")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.NotNil(t, got.ResetTokenExpiresAt)
	require.WithinDuration(t, exp, *got.ResetTokenExpiresAt, time.Second)

	// Пустая строка — не ключ поиска: ErrNotFound без похода за аккаунтами
	// с уже затёртым токеном.
	_, err = st.AccountByVerificationToken(ctx, "")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = st.AccountByResetToken(ctx, "")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_UpdateAccount_RoundTrip — обновление всех изменяемых полей
// и проверка RowsAffected()==0 -> ErrNotFound.
func TestIntegration_UpdateAccount_RoundTrip(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	a := testAccount("user@example.com")
	a.VerificationToken = "tok"
	require.NoError(t, st.SaveAccount(ctx, a))

	now := time.Now().UTC()
	a.VerifiedAt = &now
	a.VerificationToken = ""
	a.FirstName = "Grace"
	a.Role = models.RoleAdmin
	a.UpdatedAt = now
	require.NoError(t, st.UpdateAccount(ctx, a))

	got, err := st.AccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.VerifiedAt)
	require.True(t, got.IsVerified())
	require.Empty(t, got.VerificationToken)
	require.Equal(t, "Grace", got.FirstName)
	require.Equal(t, models.RoleAdmin, got.Role)

	// Несуществующий аккаунт.
	ghost := testAccount("ghost@example.com")
	err = st.UpdateAccount(ctx, ghost)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_ListAndCountAccounts — список (старые первыми) и счётчик.
func TestIntegration_ListAndCountAccounts(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	count, err := st.CountAccounts(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	first := testAccount("a@example.com")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, st.SaveAccount(ctx, first))
	require.NoError(t, st.SaveAccount(ctx, testAccount("b@example.com")))

	count, err = st.CountAccounts(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	list, err := st.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a@example.com", list[0].Email)
}

// TestIntegration_DeleteAccount_CascadesTokens — удаление аккаунта каскадно
// удаляет его refresh-токены (FK ON DELETE CASCADE).
func TestIntegration_DeleteAccount_CascadesTokens(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()

	a := testAccount("user@example.com")
	require.NoError(t, st.SaveAccount(ctx, a))

	now := time.Now().UTC()
	require.NoError(t, st.SaveRefreshToken(ctx, &models.RefreshToken{
		TokenHash: "h1",
		AccountID: a.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))

	require.NoError(t, st.DeleteAccount(ctx, a.ID))

	_, err := st.RefreshTokenByHash(ctx, "h1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Повторное удаление — ErrNotFound.
	err = st.DeleteAccount(ctx, a.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

// TestIntegration_AccountQueries_ContextCanceled — отменённый контекст
// «просачивается» в ошибки чтения как context.Canceled.
func TestIntegration_AccountQueries_ContextCanceled(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // отменяем заранее

	_, err := st.AccountByEmail(ctx, "user@example.com")
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)

	_, err = st.AccountByID(ctx, uuid.New())
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}
