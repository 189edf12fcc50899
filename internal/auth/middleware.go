package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/felixgeelhaar/canvass/internal/errors"
	"github.com/felixgeelhaar/canvass/internal/log"
)

type contextKey string

const userContextKey contextKey = "auth_user"

// RequireUser is middleware that rejects requests without a valid bearer
// token. On success the verified user id is attached to the request
// context (see UserFromContext).
func (i *Issuer) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			writeAuthError(w, errors.NewUnauthorizedError("no bearer token provided"))
			return
		}

		claims, err := i.Verify(token)
		if err != nil {
			log.DefaultLogger().Debug("rejected token", "path", r.URL.Path, "error", err.Error())
			writeAuthError(w, errors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID())))
	})
}

// ExtractToken returns the bearer token from the Authorization header, or
// the session_token cookie, or "".
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Fields(h)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if c, err := r.Cookie("session_token"); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// WithUser returns a copy of ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserFromContext returns the user attached by RequireUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userContextKey).(string)
	return id, ok && id != ""
}

func writeAuthError(w http.ResponseWriter, err *errors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="canvass"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(err.Code),
		"message": err.Message,
	})
}
