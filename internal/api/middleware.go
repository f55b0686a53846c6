// Package api implements the Plume REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/plumeblog/plume/internal/auth"
)

type ctxKey int

const userKey ctxKey = iota

// AuthMiddleware returns middleware that resolves a Bearer token to a user
// identity via the registry. If enabled is false, all requests pass through
// as the fallback user. If enabled is true, requests must carry a valid
// "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, registry *auth.Registry, fallback auth.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r.WithContext(withUser(r.Context(), fallback)))
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			user, ok := registry.Lookup(strings.TrimPrefix(header, "Bearer "))
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

func withUser(ctx context.Context, u auth.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user attached by the middleware.
func UserFrom(ctx context.Context) (auth.User, bool) {
	u, ok := ctx.Value(userKey).(auth.User)
	return u, ok
}
