package chi

import (
	"context"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type userKey struct{}

// UserFromContext returns the user bound to the request by the auth
// middleware, or "" when authentication is disabled.
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

// WithUser binds a user ID to ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// BearerAuthMiddleware validates Bearer tokens against apiKeys, a map of
// key to user ID, and binds the user to the request context. A key with an
// empty user ID authenticates as the key itself. If apiKeys is empty,
// authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys map[string]string) func(http.Handler) http.Handler {
	users := make(map[string]string, len(apiKeys))
	for k, u := range apiKeys {
		if k == "" {
			continue
		}
		if u == "" {
			u = k
		}
		users[k] = u
	}

	return func(next http.Handler) http.Handler {
		if len(users) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			user, ok := users[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
