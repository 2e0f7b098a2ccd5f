// redact маскирует чувствительные значения перед записью в лог.
// Сырые токены и пароли в лог не попадают никогда; e-mail оставляет
// домен и первые символы локальной части, чтобы запись можно было
// сопоставить с обращением пользователя.
package redact

import "strings"

// Email возвращает адрес с замаскированной локальной частью:
// "user@example.com" -> "us***@example.com". Строка без единственного
// '@' маскируется целиком.
func Email(s string) string {
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 || strings.Count(s, "@") != 1 {
		return "***"
	}

	local, domain := s[:at], s[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}

	return local[:2] + "***@" + domain
}

// Token — плейсхолдер вместо любого сырого токена.
func Token() string { return "[REDACTED_TOKEN]" }

// Password — плейсхолдер вместо пароля.
func Password() string { return "[REDACTED_PASSWORD]" }
