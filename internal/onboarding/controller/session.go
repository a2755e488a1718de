package controller

import (
	"context"
	"fmt"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"go.uber.org/zap"
)

type TokenRepository interface {
	RevokeToken(ctx context.Context, token *models.RevokedToken) error
}

// Session describes where a caller lands.
type Session struct {
	Authenticated bool              `json:"authenticated"`
	Principal     *models.Principal `json:"principal,omitempty"`
	Role          models.Role       `json:"role,omitempty"`
	Screen        models.Screen     `json:"screen"`
}

// SessionService answers the root redirect and signs users out.
type SessionService struct {
	roles  *RoleService
	tokens TokenRepository
	logger *zap.Logger
}

func NewSessionService(roles *RoleService, tokens TokenRepository, logger *zap.Logger) *SessionService {
	return &SessionService{roles: roles, tokens: tokens, logger: logger.Named("session_service")}
}

// Resolve routes anonymous callers to login, admins to the admin screen and
// everyone else to the main screen.
func (s *SessionService) Resolve(ctx context.Context, principal *models.Principal) (*Session, error) {
	if principal == nil {
		return &Session{Screen: models.ScreenLogin}, nil
	}
	role, err := s.roles.Resolve(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Authenticated: true,
		Principal:     principal,
		Role:          role,
		Screen:        models.HomeFor(role),
	}, nil
}

// SignOut revokes the principal's token until it expires.
func (s *SessionService) SignOut(ctx context.Context, principal *models.Principal) error {
	if principal == nil {
		return e.ErrUnauthenticated
	}
	if principal.TokenID == "" {
		return fmt.Errorf("%w: token has no id", e.ErrInvalidInput)
	}
	err := s.tokens.RevokeToken(ctx, &models.RevokedToken{
		TokenID:   principal.TokenID,
		UserID:    principal.UserID,
		ExpiresAt: principal.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	s.logger.Info("signed out", zap.String("user_id", principal.UserID))
	return nil
}
