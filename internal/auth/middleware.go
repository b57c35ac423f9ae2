package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-booking/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware guards HTTP handlers with bearer tokens.
type Middleware struct {
	Tokens *TokenService
}

// RequireAdmin rejects requests without a valid admin token and stores the
// subject and role on the request context.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(RoleAdmin)(next)
}

// RequireRole rejects requests whose token does not carry role.
func (m Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := m.authenticate(r, role)
			if err != nil {
				var appErr *common.AppError
				if errors.As(err, &appErr) {
					common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
					return
				}
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m Middleware) authenticate(r *http.Request, role string) (context.Context, error) {
	if m.Tokens == nil {
		return r.Context(), errors.New("auth: token service not configured")
	}
	token := bearerToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	claims, err := m.Tokens.ParseWithRole(token, role)
	if err != nil {
		return r.Context(), err
	}
	ctx := common.WithUserID(r.Context(), claims.Subject)
	return common.WithRole(ctx, claims.Role), nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
