package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-accounts-service/internal/pkg/log"
	"github.com/pribylovaa/go-accounts-service/internal/pkg/redact"
)

const (
	verificationSubject      = "Accounts API - Verify Email"
	alreadyRegisteredSubject = "Accounts API - Email Already Registered"
	resetPasswordSubject     = "Accounts API - Reset Password"

	// sendTimeout ограничивает фоновую отправку письма: SMTP-сервер
	// не должен держать горутину вечно.
	sendTimeout = 10 * time.Second
)

// verificationBody — письмо со ссылкой (или токеном) подтверждения e-mail.
func (s *Service) verificationBody(token string) string {
	if s.origin != "" {
		link := fmt.Sprintf("%s/account/verify-email?token=%s", s.origin, token)
		return fmt.Sprintf(
			`<h4>Verify Email</h4>
<p>Thanks for registering!</p>
<p>Please click the below link to verify your email address:</p>
<p><a href="%s">%s</a></p>`, link, link)
	}

	return fmt.Sprintf(
		`<h4>Verify Email</h4>
<p>Thanks for registering!</p>
<p>Please use the below token to verify your email address with the <code>/accounts/verify-email</code> api route:</p>
<p><code>%s</code></p>`, token)
}

// alreadyRegisteredBody — письмо владельцу уже занятого адреса.
func (s *Service) alreadyRegisteredBody(email string) string {
	body := fmt.Sprintf(`<h4>Email Already Registered</h4>
<p>Your email <strong>%s</strong> is already registered.</p>`, email)

	if s.origin != "" {
		return body + fmt.Sprintf(
			`<p>If you don't know your password please visit the <a href="%s/account/forgot-password">forgot password</a> page.</p>`,
			s.origin)
	}

	return body + `<p>If you don't know your password you can reset it via the <code>/accounts/forgot-password</code> api route.</p>`
}

// resetPasswordBody — письмо со ссылкой (или токеном) сброса пароля.
func (s *Service) resetPasswordBody(token string) string {
	if s.origin != "" {
		link := fmt.Sprintf("%s/account/reset-password?token=%s", s.origin, token)
		return fmt.Sprintf(
			`<h4>Reset Password Email</h4>
<p>Please click the below link to reset your password, the link will be valid for 1 day:</p>
<p><a href="%s">%s</a></p>`, link, link)
	}

	return fmt.Sprintf(
		`<h4>Reset Password Email</h4>
<p>Please use the below token to reset your password with the <code>/accounts/reset-password</code> api route:</p>
<p><code>%s</code></p>`, token)
}

// sendAsync отправляет письмо в фоне. Ошибки отправки только логируются:
// исход операции сервиса от доставки письма не зависит. Контекст запроса
// не наследуется — его отмена не должна обрывать уже начатую отправку.
func (s *Service) sendAsync(ctx context.Context, to, subject, htmlBody string) {
	lg := log.From(ctx)

	if s.email == nil {
		lg.Info("email_skipped",
			slog.String("to", redact.Email(to)),
			slog.String("subject", subject),
		)
		return
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := s.email.Send(sendCtx, to, subject, htmlBody); err != nil {
			lg.Error("email_send_failed",
				slog.String("to", redact.Email(to)),
				slog.String("subject", subject),
				slog.String("err", err.Error()),
			)
			return
		}

		lg.Info("email_sent",
			slog.String("to", redact.Email(to)),
			slog.String("subject", subject),
		)
	}()
}
