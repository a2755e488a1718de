package controller

import (
	"context"
	"fmt"
	"strings"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"go.uber.org/zap"
)

type RoleRepository interface {
	GetUserRole(ctx context.Context, userID string) (*models.UserRole, error)
	UpsertUserRole(ctx context.Context, role *models.UserRole) error
	ListUserRoles(ctx context.Context) ([]models.UserRole, error)
}

// RoleService resolves and assigns user roles.
type RoleService struct {
	repo     RoleRepository
	fallback models.Role
	metrics  Recorder
	logger   *zap.Logger
}

// NewRoleService constructs a RoleService. Users without a role row resolve
// to fallback; an empty fallback makes them forbidden instead.
func NewRoleService(repo RoleRepository, fallback models.Role, metrics Recorder, logger *zap.Logger) *RoleService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &RoleService{
		repo:     repo,
		fallback: fallback,
		metrics:  metrics,
		logger:   logger.Named("role_service"),
	}
}

// Resolve returns the role of userID. A missing role table is not treated
// as a missing row: it is returned as a NotConfigured store error.
func (s *RoleService) Resolve(ctx context.Context, userID string) (models.Role, error) {
	row, err := s.repo.GetUserRole(ctx, userID)
	if err == nil {
		return row.Role, nil
	}

	switch e.KindOf(err) {
	case e.KindNotFound:
		if s.fallback == "" {
			return "", fmt.Errorf("%w: no role assigned", e.ErrForbidden)
		}
		s.metrics.RecordRoleFallback()
		s.logger.Debug("no role row, using default role",
			zap.String("user_id", userID),
			zap.String("role", string(s.fallback)),
		)
		return s.fallback, nil
	case e.KindNotConfigured:
		s.logger.Error("user_roles table is missing, run migrations", zap.Error(err))
		return "", err
	default:
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
}

// RequireAdmin fails with ErrForbidden unless principal is an administrator.
func (s *RoleService) RequireAdmin(ctx context.Context, principal *models.Principal) error {
	if principal == nil {
		return e.ErrUnauthenticated
	}
	role, err := s.Resolve(ctx, principal.UserID)
	if err != nil {
		return err
	}
	if role != models.RoleAdmin {
		return fmt.Errorf("%w: admin role required", e.ErrForbidden)
	}
	return nil
}

// Set assigns role to userID, replacing any previous assignment.
func (s *RoleService) Set(ctx context.Context, userID string, role models.Role, email string) (*models.UserRole, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", e.ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", e.ErrInvalidInput, role)
	}

	row := &models.UserRole{UserID: userID, Role: role, Email: stringOrNil(email)}
	if err := s.repo.UpsertUserRole(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	s.logger.Info("role assigned", zap.String("user_id", userID), zap.String("role", string(role)))
	return row, nil
}

// List returns every role assignment, newest first.
func (s *RoleService) List(ctx context.Context) ([]models.UserRole, error) {
	return s.repo.ListUserRoles(ctx)
}
