// mail реализует отправку писем через SMTP поверх gomail.
package mail

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/pribylovaa/go-accounts-service/internal/config"
	"github.com/pribylovaa/go-accounts-service/internal/service"
)

// Mailer — SMTP-отправитель писем; реализует service.EmailSender.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

var _ service.EmailSender = (*Mailer)(nil)

// New создаёт отправителя из SMTP-конфигурации.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send отправляет HTML-письмо одному получателю.
// Библиотека не принимает контекст, поэтому отправка выполняется в отдельной
// горутине, а ожидание ограничено ctx.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	const op = "mail.Send"

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
