// This is a **mock authentication service**, designed to provide JWT tokens
// for the onboarding service during local development.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/onboard/internal/onboarding/auth"
	"go.uber.org/zap"
)

const (
	defaultPort   = "8081"       // Default port for the authentication service
	defaultSecret = "jwt_secret" // Secret for signing JWT
	defaultUserID = "12345"
)

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// tokenHandler issues a token for ?user_id=&email=, defaulting the user id.
func tokenHandler(secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = defaultUserID
		}
		email := r.URL.Query().Get("email")

		ttl := 24 * time.Hour
		token, err := auth.GenerateToken(userID, email, secret, ttl)
		if err != nil {
			logger.Error("failed to generate token", zap.Error(err))
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(TokenResponse{Token: token, ExpiresAt: time.Now().Add(ttl).UTC()})
		if err != nil {
			logger.Error("failed to encode token", zap.Error(err))
		}
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = defaultSecret
	}
	port := os.Getenv("AUTH_PORT")
	if port == "" {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(secret, logger))

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("Authentication service running", zap.String("port", port))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("authentication service stopped", zap.Error(err))
	}
}
