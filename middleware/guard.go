package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pymesuite/authcore/permission"
)

// SessionCookie is the cookie consulted when no Authorization header is sent.
const SessionCookie = "session_token"

// Authorizer is the part of authcore.Engine the guards need.
type Authorizer interface {
	ValidateSession(ctx context.Context, token string) (int64, bool)
	RoleOf(ctx context.Context, userID int64) permission.Role
	HasPermission(role, module, action string) bool
}

type userIDContextKey struct{}

type roleContextKey struct{}

// UserIDFromContext returns the account id stored by the guards.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(int64)
	return id, ok
}

// RoleFromContext returns the role resolved by [RequirePermission].
func RoleFromContext(ctx context.Context) (permission.Role, bool) {
	role, ok := ctx.Value(roleContextKey{}).(permission.Role)
	return role, ok
}

// RequireSession rejects requests without a valid session token with 401
// and stores the owner's id in the request context.
func RequireSession(engine Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := authenticate(engine, r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission is [RequireSession] followed by a permission check of
// the owner's role on module and action. Denied requests get 403.
func RequirePermission(engine Authorizer, module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := authenticate(engine, r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			role := engine.RoleOf(r.Context(), userID)
			if !engine.HasPermission(string(role), module, action) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
			ctx = context.WithValue(ctx, roleContextKey{}, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(engine Authorizer, r *http.Request) (int64, bool) {
	if engine == nil {
		return 0, false
	}
	token, ok := requestToken(r)
	if !ok {
		return 0, false
	}
	return engine.ValidateSession(r.Context(), token)
}

// requestToken prefers the Authorization header over the session cookie.
func requestToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		return bearerToken(h)
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
