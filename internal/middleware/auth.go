// Package middleware содержит HTTP middleware сервиса управления жилым комплексом.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/livewell/tenancy-system/internal/model"
	"github.com/livewell/tenancy-system/internal/repository"
)

type contextKey string

const emailKey contextKey = "userEmail"

// Verifier описывает контракт внешнего сервиса проверки токенов.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// AuthMiddleware выполняет проверку bearer-токена через внешний сервис идентификации.
type AuthMiddleware struct {
	verifier Verifier
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware. Если verifier равен
// nil, все защищённые запросы получают 401.
func NewAuthMiddleware(verifier Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Middleware проверяет заголовок Authorization и добавляет подтверждённый email
// в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.verifier == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		email, err := a.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), emailKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// GetEmailFromContext извлекает подтверждённый email из контекста запроса.
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

// RoleSource описывает источник ролей пользователей для проверки доступа.
type RoleSource interface {
	GetRole(ctx context.Context, email string) (model.Role, error)
}

// RequireRole возвращает middleware, пропускающий запрос только при совпадении
// роли аутентифицированного пользователя с требуемой.
func RequireRole(src RoleSource, role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, ok := GetEmailFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			got, err := src.GetRole(r.Context(), email)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if got != role {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
