package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
		INSERT INTO refresh_tokens(
			token_hash, account_id, created_at, created_by_ip,
			expires_at, revoked_at, revoked_by_ip, replaced_by_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.Exec(ctx, query,
		token.TokenHash,
		token.AccountID,
		token.CreatedAt,
		token.CreatedByIP,
		token.ExpiresAt,
		token.RevokedAt,
		token.RevokedByIP,
		token.ReplacedByHash,
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

// RefreshTokenByHash находит refresh-токен по его хэшу.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
		SELECT token_hash, account_id, created_at, created_by_ip,
			expires_at, revoked_at, revoked_by_ip, replaced_by_hash
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&token.TokenHash,
		&token.AccountID,
		&token.CreatedAt,
		&token.CreatedByIP,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.RevokedByIP,
		&token.ReplacedByHash,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// RevokeRefreshTokenIfActive пытается отозвать refresh-токен, если он ещё
// не был отозван. Ровно одно условное UPDATE: конкурентные вызовы с одним
// и тем же хэшем не могут выиграть оба.
//
// Возвращает:
//
//	(true, nil)  — токен был активен и успешно отозван сейчас;
//	(false, nil) — токен существует, но уже был отозван;
//	(false, ErrNotFound) — токен не найден.
func (s *Storage) RevokeRefreshTokenIfActive(ctx context.Context, hash string, now time.Time, byIP, replacedByHash string) (bool, error) {
	const op = "storage.postgres.RevokeRefreshTokenIfActive"

	const upd = `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_by_ip = $3, replaced_by_hash = $4
		WHERE token_hash = $1 AND revoked_at IS NULL
		RETURNING account_id
	`

	var accountID uuid.UUID
	err := s.db.QueryRow(ctx, upd, hash, now, byIP, replacedByHash).Scan(&accountID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	const sel = `
		SELECT revoked_at IS NOT NULL
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, hash).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return false, nil
}

// RefreshTokensByAccount возвращает все токены аккаунта, новые первыми.
func (s *Storage) RefreshTokensByAccount(ctx context.Context, accountID uuid.UUID) ([]models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokensByAccount"

	query := `
		SELECT token_hash, account_id, created_at, created_by_ip,
			expires_at, revoked_at, revoked_by_ip, replaced_by_hash
		FROM refresh_tokens
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tokens []models.RefreshToken
	for rows.Next() {
		var token models.RefreshToken
		if err := rows.Scan(
			&token.TokenHash,
			&token.AccountID,
			&token.CreatedAt,
			&token.CreatedByIP,
			&token.ExpiresAt,
			&token.RevokedAt,
			&token.RevokedByIP,
			&token.ReplacedByHash,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
