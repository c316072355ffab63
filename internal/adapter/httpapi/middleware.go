package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ContextKey is the private type for request context values.
type ContextKey string

const (
	// UserIDCtxKey holds the authenticated user's id.
	UserIDCtxKey ContextKey = "userID"
	// UserRoleCtxKey holds the authenticated user's role.
	UserRoleCtxKey ContextKey = "userRole"
)

// JWTAuth validates the Bearer token and stores the user id and role in the
// request context.
func JWTAuth(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "authorization header required")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "authorization header must be Bearer token")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				log.Debug("Rejected invalid token", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			userID, _ := claims["user_id"].(string)
			if userID == "" {
				if sub, serr := claims.GetSubject(); serr == nil {
					userID = sub
				}
			}
			if userID == "" {
				writeError(w, http.StatusUnauthorized, "token carries no user identity")
				return
			}
			role, _ := claims["role"].(string)

			ctx := context.WithValue(r.Context(), UserIDCtxKey, userID)
			ctx = context.WithValue(ctx, UserRoleCtxKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin allows only requests whose token carries the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(UserRoleCtxKey).(string)
		if role != "admin" {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserIDCtxKey).(string)
	return id
}

func userRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleCtxKey).(string)
	return role
}
