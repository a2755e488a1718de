package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// RevocationChecker reports whether a signed-out token id was revoked.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// HTTPMiddleware authenticates requests carrying a bearer token. Requests
// without an Authorization header pass through anonymously; handlers decide
// whether they need a principal. A malformed, expired or revoked token is
// rejected with 401.
func HTTPMiddleware(next http.Handler, jwtSecret string, revoked RevocationChecker, logger *zap.Logger) http.Handler {
	logger = logger.Named("auth")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractTokenFromHeader(r)
		if err != nil {
			unauthorized(w, err.Error())
			return
		}

		principal, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			logger.Debug("rejected token", zap.Error(err))
			unauthorized(w, "invalid token")
			return
		}

		if revoked != nil && principal.TokenID != "" {
			isRevoked, err := revoked.IsTokenRevoked(r.Context(), principal.TokenID)
			if err != nil {
				logger.Error("failed to check token revocation",
					zap.Error(err),
					zap.String("user_id", principal.UserID),
				)
				unauthorized(w, "unable to verify session")
				return
			}
			if isRevoked {
				unauthorized(w, "session has been signed out")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func extractTokenFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization format: missing Bearer prefix")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return "", fmt.Errorf("invalid authorization format: empty token")
	}
	return tokenString, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthenticated",
		"message": msg,
	})
}
