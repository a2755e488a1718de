package controller

import (
	"context"
	"fmt"
	"strings"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
}

// CategoryService manages the vendor types offered by the add-vendor form.
type CategoryService struct {
	repo   CategoryRepository
	logger *zap.Logger
}

func NewCategoryService(repo CategoryRepository, logger *zap.Logger) *CategoryService {
	return &CategoryService{repo: repo, logger: logger.Named("category_service")}
}

// List returns categories ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.repo.ListCategories(ctx)
}

// Create adds a category. Names are unique.
func (s *CategoryService) Create(ctx context.Context, name, description string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		verr := &e.ValidationError{}
		verr.Add("name", "Category name is required")
		return nil, verr
	}

	category := &models.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: stringOrNil(description),
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	s.logger.Info("category created", zap.String("category_id", category.ID.String()), zap.String("name", name))
	return category, nil
}
