package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/result"
)

type contextKey string

const userIDKey contextKey = "auth_user_id"

// UserID returns the authenticated user id, or "" on unauthenticated
// requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Middleware rejects requests without a valid bearer token and records a
// session touch for the authenticated user.
func Middleware(a *Authenticator, sessions *Sessions, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			userID, err := a.Validate(token)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			if err := sessions.Touch(r.Context(), userID); err != nil {
				// A session bookkeeping failure must not block the request.
				log.Warn("touching session", zap.String("user_id", userID), zap.Error(err))
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(result.Fail[struct{}](result.Errf(result.KindInvalid, msg)))
}
