package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль аккаунта в системе.
type Role string

const (
	// RoleAdmin — администратор: полный доступ к управлению аккаунтами.
	RoleAdmin Role = "Admin"
	// RoleUser — обычный пользователь.
	RoleUser Role = "User"
)

// Valid сообщает, является ли значение известной ролью.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Account — внутренняя модель аккаунта. Содержит хэш пароля и служебные
// токены (верификация e-mail, сброс пароля), поэтому за пределы слоёв
// storage/service не выходит; наружу отдаётся AccountInfo.
//
// Производные состояния не хранятся: IsVerified вычисляется из
// VerifiedAt/PasswordResetAt на чтении.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Title        string
	FirstName    string
	LastName     string
	Role         Role
	IsActive     bool
	// VerificationToken — одноразовый токен подтверждения e-mail;
	// пустая строка после подтверждения.
	VerificationToken string
	// VerifiedAt — момент подтверждения e-mail (nil — не подтверждён).
	VerifiedAt *time.Time
	// ResetToken + ResetTokenExpiresAt — одноразовый токен сброса пароля
	// и срок его действия; очищаются после использования.
	ResetToken          string
	ResetTokenExpiresAt *time.Time
	// PasswordResetAt — момент последнего сброса пароля.
	PasswordResetAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsVerified — подтверждён ли контроль над почтовым ящиком.
// Успешный сброс пароля тоже доказывает контроль: ссылка сброса
// доставляется только на сам ящик.
func (a *Account) IsVerified() bool {
	return a.VerifiedAt != nil || a.PasswordResetAt != nil
}

// AccountInfo — публичное представление аккаунта.
// Структурно не может содержать хэш пароля и служебные токены.
type AccountInfo struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Title      string    `json:"title,omitempty"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       Role      `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InfoFromAccount строит публичное представление по внутренней модели.
func InfoFromAccount(a *Account) *AccountInfo {
	return &AccountInfo{
		ID:         a.ID,
		Email:      a.Email,
		Title:      a.Title,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Role:       a.Role,
		IsActive:   a.IsActive,
		IsVerified: a.IsVerified(),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}
