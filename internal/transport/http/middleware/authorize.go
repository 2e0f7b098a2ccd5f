package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-accounts-service/internal/models"
	"github.com/pribylovaa/go-accounts-service/internal/service"
	"github.com/pribylovaa/go-accounts-service/internal/transport/http/httperr"
)

// AccessChecker — срез сервисного слоя, нужный авторизации.
// Выделен интерфейсом для подмены в тестах middleware.
type AccessChecker interface {
	CheckAccess(ctx context.Context, accessToken string) (*models.Account, error)
	OwnsToken(ctx context.Context, accountID uuid.UUID, refreshToken string) (bool, error)
}

// Principal — аутентифицированный субъект запроса.
type Principal struct {
	AccountID uuid.UUID
	Role      models.Role

	// OwnsToken сообщает, принадлежит ли refresh-токен субъекту;
	// хендлеры используют это для правила "свой токен или админ".
	OwnsToken func(ctx context.Context, refreshToken string) bool
}

// IsAdmin — субъект имеет роль администратора.
func (p *Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

type ctxKeyPrincipal struct{}

// PrincipalFrom возвращает субъекта из контекста запроса.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	if v := ctx.Value(ctxKeyPrincipal{}); v != nil {
		if p, ok := v.(*Principal); ok {
			return p, true
		}
	}

	return nil, false
}

// Authorize — мидлвар аутентификации и проверки ролей.
//
// Порядок проверок:
//  1. предъявленный, но битый/просроченный/подписанный чужим ключом JWT,
//     а также удалённый аккаунт -> 401;
//  2. деактивированный аккаунт -> 403;
//  3. роль не входит в allowed (если список непустой) -> 403.
//
// Пустой список ролей означает, что маршрут роли не требует: запрос без
// Bearer-токена проходит дальше без субъекта (хендлеры, которым субъект
// обязателен, отвечают 401 сами), а предъявленный токен всё равно
// валидируется и обогащает контекст. Непустой список требует токен.
// Роль берётся из БД на каждый запрос: смена роли и деактивация действуют
// немедленно, не дожидаясь истечения access-токена.
func Authorize(svc AccessChecker, allowed ...models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if len(allowed) == 0 {
					next.ServeHTTP(w, r)
					return
				}

				httperr.WriteUnauthorized(w, r)
				return
			}

			account, err := svc.CheckAccess(r.Context(), token)
			if err != nil {
				// Живой JWT удалённого аккаунта неотличим для клиента
				// от просроченного: 401, а не 404.
				if errors.Is(err, service.ErrAccountNotFound) {
					httperr.WriteUnauthorized(w, r)
					return
				}

				httperr.WriteError(w, r, err)
				return
			}

			if len(allowed) > 0 && !roleAllowed(account.Role, allowed) {
				httperr.WriteForbidden(w, r)
				return
			}

			principal := &Principal{
				AccountID: account.ID,
				Role:      account.Role,
				OwnsToken: func(ctx context.Context, refreshToken string) bool {
					owns, err := svc.OwnsToken(ctx, account.ID, refreshToken)
					return err == nil && owns
				},
			}

			ctx := context.WithValue(r.Context(), ctxKeyPrincipal{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}

func roleAllowed(role models.Role, allowed []models.Role) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}

	return false
}
