package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/pkg/log"
	"github.com/pribylovaa/go-accounts-service/internal/pkg/redact"
	"github.com/pribylovaa/go-accounts-service/internal/storage"
)

// RegisterParams — входные данные самостоятельной регистрации.
type RegisterParams struct {
	Email     string
	Password  string
	Title     string
	FirstName string
	LastName  string
}

// CreateParams — входные данные административного создания аккаунта.
// Созданный аккаунт сразу подтверждён и активен, письмо не отправляется.
type CreateParams struct {
	Email     string
	Password  string
	Title     string
	FirstName string
	LastName  string
	Role      models.Role
}

// UpdateParams — частичное обновление аккаунта; nil-поля не меняются.
type UpdateParams struct {
	Email     *string
	Password  *string
	Title     *string
	FirstName *string
	LastName  *string
	Role      *models.Role
}

// Register регистрирует новый аккаунт.
//
// Самый первый аккаунт в системе становится администратором и считается
// подтверждённым сразу; остальные получают роль User и письмо со ссылкой
// подтверждения. Занятый подтверждённым аккаунтом адрес — ErrEmailTaken
// (владельцу уходит письмо-напоминание); брошенная неподтверждённая
// регистрация с тем же адресом молча замещается новой.
func (s *Service) Register(ctx context.Context, params RegisterParams) error {
	const op = "service.accounts.Register"

	lg := log.From(ctx)

	normEmail, err := validateEmail(params.Email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(params.Password); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	existing, err := s.storage.AccountByEmail(ctx, normEmail)
	if err == nil {
		if existing.IsVerified() {
			s.sendAsync(ctx, normEmail, alreadyRegisteredSubject, s.alreadyRegisteredBody(normEmail))

			lg.Warn("register_email_taken",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		// Незавершённая регистрация: замещаем брошенный аккаунт новым.
		if err := s.storage.DeleteAccount(ctx, existing.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := hashPassword(params.Password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	count, err := s.storage.CountAccounts(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	account := &models.Account{
		ID:           uuid.New(),
		Email:        normEmail,
		PasswordHash: passwordHash,
		Title:        strings.TrimSpace(params.Title),
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Role:         models.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if count == 0 {
		// Первый аккаунт — администратор, подтверждение не требуется.
		account.Role = models.RoleAdmin
		account.VerifiedAt = &now
	} else {
		token, err := randomToken()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		account.VerificationToken = token
	}

	if err := s.storage.SaveAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if account.VerificationToken != "" {
		s.sendAsync(ctx, normEmail, verificationSubject, s.verificationBody(account.VerificationToken))
	}

	lg.Info("account_registered",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
		slog.String("role", string(account.Role)),
	)

	return nil
}

// VerifyEmail подтверждает e-mail по одноразовому токену из письма.
// Токен одноразовый: после успеха он затирается, повторное предъявление
// вернёт ErrVerificationFailed.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	const op = "service.accounts.VerifyEmail"

	lg := log.From(ctx)

	account, err := s.storage.AccountByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrVerificationFailed)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	account.VerifiedAt = &now
	account.VerificationToken = ""
	account.UpdatedAt = now

	if err := s.storage.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("email_verified",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
	)

	return nil
}

// ForgotPassword инициирует сброс пароля. Чтобы не раскрывать, какие адреса
// зарегистрированы, неизвестный или неподтверждённый e-mail обрабатывается
// молча — операция всегда завершается успешно.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "service.accounts.ForgotPassword"

	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	account, err := s.storage.AccountByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("forgot_password_unknown_email",
				slog.String("op", op),
				slog.String("email", redact.Email(normEmail)),
			)
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !account.IsVerified() {
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	expires := now.Add(s.cfg.ResetTokenTTL)
	account.ResetToken = token
	account.ResetTokenExpiresAt = &expires
	account.UpdatedAt = now

	if err := s.storage.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.sendAsync(ctx, normEmail, resetPasswordSubject, s.resetPasswordBody(token))

	lg.Info("password_reset_initiated",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
	)

	return nil
}

// ValidateResetToken проверяет, что reset-токен существует и не просрочен.
func (s *Service) ValidateResetToken(ctx context.Context, token string) error {
	const op = "service.accounts.ValidateResetToken"

	if _, err := s.resetTokenAccount(ctx, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPassword устанавливает новый пароль по действующему reset-токену.
// Токен одноразовый; успешный сброс дополнительно подтверждает аккаунт
// (владение почтой доказано).
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	const op = "service.accounts.ResetPassword"

	lg := log.From(ctx)

	account, err := s.resetTokenAccount(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(password); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	account.PasswordHash = passwordHash
	account.PasswordResetAt = &now
	account.ResetToken = ""
	account.ResetTokenExpiresAt = nil
	account.UpdatedAt = now

	if err := s.storage.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("password_reset_done",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
	)

	return nil
}

// resetTokenAccount находит аккаунт по reset-токену и проверяет срок действия.
func (s *Service) resetTokenAccount(ctx context.Context, token string) (*models.Account, error) {
	account, err := s.storage.AccountByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, err
	}

	// Срок действия строго в будущем: истёкший в эту же миллисекунду токен
	// уже недействителен.
	if account.ResetTokenExpiresAt == nil || !s.now().Before(*account.ResetTokenExpiresAt) {
		return nil, ErrTokenExpired
	}

	return account, nil
}

// Accounts возвращает все аккаунты (административная операция).
func (s *Service) Accounts(ctx context.Context) ([]models.Account, error) {
	const op = "service.accounts.Accounts"

	accounts, err := s.storage.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return accounts, nil
}

// AccountByID возвращает аккаунт по идентификатору.
func (s *Service) AccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const op = "service.accounts.AccountByID"

	account, err := s.storage.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return account, nil
}

// CreateAccount создаёт аккаунт от имени администратора: сразу подтверждён,
// активен, без письма.
func (s *Service) CreateAccount(ctx context.Context, params CreateParams) (*models.Account, error) {
	const op = "service.accounts.CreateAccount"

	lg := log.From(ctx)

	normEmail, err := validateEmail(params.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(params.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !params.Role.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	if _, err := s.storage.AccountByEmail(ctx, normEmail); err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := hashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	account := &models.Account{
		ID:           uuid.New(),
		Email:        normEmail,
		PasswordHash: passwordHash,
		Title:        strings.TrimSpace(params.Title),
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Role:         params.Role,
		IsActive:     true,
		VerifiedAt:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("account_created",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
		slog.String("role", string(account.Role)),
	)

	return account, nil
}

// UpdateAccount частично обновляет аккаунт. Смена e-mail проверяется на
// уникальность (не считая самого аккаунта), новый пароль валидируется и
// хэшируется заново.
func (s *Service) UpdateAccount(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Account, error) {
	const op = "service.accounts.UpdateAccount"

	lg := log.From(ctx)

	account, err := s.storage.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if params.Email != nil {
		normEmail, err := validateEmail(*params.Email)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
		}

		if normEmail != account.Email {
			other, err := s.storage.AccountByEmail(ctx, normEmail)
			if err == nil && other.ID != account.ID {
				return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
			}
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			account.Email = normEmail
		}
	}

	if params.Password != nil {
		if err := validatePassword(*params.Password); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		passwordHash, err := hashPassword(*params.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		account.PasswordHash = passwordHash
	}

	if params.Title != nil {
		account.Title = strings.TrimSpace(*params.Title)
	}
	if params.FirstName != nil {
		account.FirstName = strings.TrimSpace(*params.FirstName)
	}
	if params.LastName != nil {
		account.LastName = strings.TrimSpace(*params.LastName)
	}
	if params.Role != nil {
		if !params.Role.Valid() {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidRole)
		}

		account.Role = *params.Role
	}

	account.UpdatedAt = s.now()

	if err := s.storage.UpdateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("account_updated",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
	)

	return account, nil
}

// DeleteAccount удаляет аккаунт; refresh-токены уходят каскадом по FK.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	const op = "service.accounts.DeleteAccount"

	lg := log.From(ctx)

	if err := s.storage.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("account_deleted",
		slog.String("op", op),
		slog.String("account_id", id.String()),
	)

	return nil
}

// UpdateAccountStatus активирует/деактивирует аккаунт. Аккаунт администратора
// деактивировать нельзя — чтобы нельзя было выключить последнего админа.
func (s *Service) UpdateAccountStatus(ctx context.Context, id uuid.UUID, active bool) (*models.Account, error) {
	const op = "service.accounts.UpdateAccountStatus"

	lg := log.From(ctx)

	account, err := s.storage.AccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if account.Role == models.RoleAdmin && !active {
		return nil, fmt.Errorf("%s: %w", op, ErrCannotModifyAdmin)
	}

	if account.IsActive == active {
		return account, nil
	}

	account.IsActive = active
	account.UpdatedAt = s.now()

	if err := s.storage.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("account_status_updated",
		slog.String("op", op),
		slog.String("account_id", account.ID.String()),
		slog.Bool("active", active),
	)

	return account, nil
}
