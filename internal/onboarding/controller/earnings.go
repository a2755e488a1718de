package controller

import (
	"context"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"go.uber.org/zap"
)

type EarningsRepository interface {
	ListVendorsBySalesperson(ctx context.Context, salespersonID string) ([]models.Vendor, error)
	GetSalespersonEarnings(ctx context.Context, salespersonID string) (*models.SalespersonEarnings, error)
}

// EarningsService computes a salesperson's dashboard figures.
type EarningsService struct {
	repo    EarningsRepository
	metrics Recorder
	logger  *zap.Logger
}

func NewEarningsService(repo EarningsRepository, metrics Recorder, logger *zap.Logger) *EarningsService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &EarningsService{repo: repo, metrics: metrics, logger: logger.Named("earnings_service")}
}

// Summary counts the principal's vendors and reports total earnings. The
// total comes from the salesperson_earnings aggregate when it has a row and
// is summed from the vendors otherwise; an aggregate failure never fails
// the summary.
func (s *EarningsService) Summary(ctx context.Context, principal *models.Principal) (*models.EarningsSummary, error) {
	if principal == nil {
		return nil, e.ErrUnauthenticated
	}

	vendors, err := s.repo.ListVendorsBySalesperson(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	summary := models.Summarize(vendors)

	row, err := s.repo.GetSalespersonEarnings(ctx, principal.UserID)
	if err == nil {
		summary.TotalEarnings = row.TotalEarnings
		summary.EarningsSource = models.SourceAggregate
		return &summary, nil
	}

	kind := e.KindOf(err)
	s.metrics.RecordEarningsFallback(kind.String())
	fields := []zap.Field{zap.String("user_id", principal.UserID), zap.Error(err)}
	switch kind {
	case e.KindNotFound:
		s.logger.Debug("no earnings aggregate row, computing locally", fields...)
	case e.KindNotConfigured:
		s.logger.Warn("earnings aggregate unavailable, computing locally", fields...)
	default:
		s.logger.Error("failed to read earnings aggregate, computing locally", fields...)
	}
	return &summary, nil
}
