package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

const accountColumns = `
	id, email, password_hash, title, first_name, last_name, role, is_active,
	verification_token, verified_at, reset_token, reset_token_expires_at,
	password_reset_at, created_at, updated_at
`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Title,
		&account.FirstName,
		&account.LastName,
		&account.Role,
		&account.IsActive,
		&account.VerificationToken,
		&account.VerifiedAt,
		&account.ResetToken,
		&account.ResetTokenExpiresAt,
		&account.PasswordResetAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &account, nil
}

// SaveAccount создает новый аккаунт в БД.
func (s *Storage) SaveAccount(ctx context.Context, account *models.Account) error {
	const op = "storage.postgres.SaveAccount"

	query := `
		INSERT INTO accounts(
			id, email, password_hash, title, first_name, last_name, role, is_active,
			verification_token, verified_at, reset_token, reset_token_expires_at,
			password_reset_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Title,
		account.FirstName,
		account.LastName,
		account.Role,
		account.IsActive,
		account.VerificationToken,
		account.VerifiedAt,
		account.ResetToken,
		account.ResetTokenExpiresAt,
		account.PasswordResetAt,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AccountByEmail находит аккаунт по email.
func (s *Storage) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.postgres.AccountByEmail"

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	account, err := scanAccount(s.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

// AccountByID находит аккаунт по ID.
func (s *Storage) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const op = "storage.postgres.AccountByID"

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

// AccountByVerificationToken находит аккаунт по токену подтверждения e-mail.
// Пустой токен не ищем: после подтверждения колонка хранит пустую строку.
func (s *Storage) AccountByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	const op = "storage.postgres.AccountByVerificationToken"

	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE verification_token = $1`

	account, err := scanAccount(s.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

// AccountByResetToken находит аккаунт по токену сброса пароля.
func (s *Storage) AccountByResetToken(ctx context.Context, token string) (*models.Account, error) {
	const op = "storage.postgres.AccountByResetToken"

	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE reset_token = $1`

	account, err := scanAccount(s.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

// ListAccounts возвращает все аккаунты, старые первыми.
func (s *Storage) ListAccounts(ctx context.Context) ([]models.Account, error) {
	const op = "storage.postgres.ListAccounts"

	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return accounts, nil
}

// UpdateAccount сохраняет изменённые поля существующего аккаунта.
func (s *Storage) UpdateAccount(ctx context.Context, account *models.Account) error {
	const op = "storage.postgres.UpdateAccount"

	query := `
		UPDATE accounts
		SET email = $2, password_hash = $3, title = $4, first_name = $5,
			last_name = $6, role = $7, is_active = $8, verification_token = $9,
			verified_at = $10, reset_token = $11, reset_token_expires_at = $12,
			password_reset_at = $13, updated_at = $14
		WHERE id = $1
	`

	cmdTag, err := s.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Title,
		account.FirstName,
		account.LastName,
		account.Role,
		account.IsActive,
		account.VerificationToken,
		account.VerifiedAt,
		account.ResetToken,
		account.ResetTokenExpiresAt,
		account.PasswordResetAt,
		account.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteAccount удаляет аккаунт; refresh-токены удаляются каскадно (FK).
func (s *Storage) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteAccount"

	cmdTag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// CountAccounts возвращает общее число аккаунтов.
func (s *Storage) CountAccounts(ctx context.Context) (int64, error) {
	const op = "storage.postgres.CountAccounts"

	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}
