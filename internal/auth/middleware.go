package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"canteen/internal/core"
	"canteen/internal/log"
)

type contextKey struct{}

// UserLookup loads the current state of a user. The middleware uses it so
// that capability changes take effect without waiting for tokens to expire.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
}

// WithIdentity returns a context carrying the caller's identity.
func WithIdentity(ctx context.Context, id core.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (core.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(core.Identity)
	return id, ok
}

// Middleware authenticates "Authorization: Bearer <access token>" requests.
// Requests without the header pass through anonymously; a header carrying a
// bad token is rejected with 401.
func Middleware(issuer *Issuer, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				reject(w, "Authorization header must contain a Bearer token.")
				return
			}

			claims, err := issuer.Verify(strings.TrimSpace(token), AccessToken)
			if err != nil {
				log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
					WarnContext(r.Context(), "Rejected access token", log.FieldError, err.Error())
				reject(w, "Given token not valid for any token type")
				return
			}

			id := claims.Identity()
			if users != nil {
				u, err := users.GetUser(r.Context(), claims.UserID)
				if err != nil {
					reject(w, "User not found")
					return
				}
				id = u.Identity()
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func reject(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
