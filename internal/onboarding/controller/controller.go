// Package controller implements the business logic of vendor onboarding:
// submitting vendors with their photos, the approval workflow, role
// resolution and earnings summaries. It orchestrates the repository, the
// photo store and the event producer.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/events"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/gartstein/onboard/internal/onboarding/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(eventType events.EventType, vendor *models.Vendor)
}

// VendorRepository defines the storage interface for vendors.
type VendorRepository interface {
	CreateVendor(ctx context.Context, vendor *models.Vendor) error
	GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	ListVendorsBySalesperson(ctx context.Context, salespersonID string) ([]models.Vendor, error)
	ListVendorsBySalespersonAndStatus(ctx context.Context, salespersonID string, status models.VendorStatus) ([]models.Vendor, error)
	ListPendingVendors(ctx context.Context) ([]models.Vendor, error)
	ListAllVendors(ctx context.Context) ([]models.Vendor, error)
	ListVendors(ctx context.Context, filter models.VendorFilter) ([]models.Vendor, error)
	ApplyDecision(ctx context.Context, id uuid.UUID, update models.VendorUpdate) (*models.Vendor, error)
}

// PhotoStore uploads vendor photos and returns their object paths.
type PhotoStore interface {
	Upload(ctx context.Context, kind models.PhotoKind, ownerID string, photo *models.Photo) (string, error)
	Bucket(kind models.PhotoKind) string
}

// Recorder receives business metrics.
type Recorder interface {
	RecordVendorCreated()
	RecordDecision(action string)
	RecordUploadFailure(bucket, kind string)
	RecordRoleFallback()
	RecordEarningsFallback(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordVendorCreated()               {}
func (nopRecorder) RecordDecision(string)              {}
func (nopRecorder) RecordUploadFailure(string, string) {}
func (nopRecorder) RecordRoleFallback()                {}
func (nopRecorder) RecordEarningsFallback(string)      {}

// Warning codes attached to a vendor created without one of its photos.
const (
	WarningStorageNotConfigured = "storage_not_configured"
	WarningUploadFailed         = "upload_failed"
)

const storageNotConfiguredMessage = "File storage not configured yet - photo uploads will be available after setup. Vendor will be created without photo."

// Warning is a non-fatal problem reported alongside a successful operation.
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CreateResult is the created vendor plus any photo upload warnings.
type CreateResult struct {
	Vendor   *models.Vendor `json:"vendor"`
	Warnings []Warning      `json:"warnings,omitempty"`
}

// VendorService manages vendor submissions and the approval workflow.
type VendorService struct {
	repo      VendorRepository
	photos    PhotoStore
	validator *validation.Validator
	producer  EventProducer
	metrics   Recorder
	strict    bool
	logger    *zap.Logger
	now       func() time.Time
}

type VendorOption func(*VendorService)

// WithStrictTransitions only lets pending vendors be approved or rejected.
func WithStrictTransitions(strict bool) VendorOption {
	return func(s *VendorService) { s.strict = strict }
}

// WithRecorder reports business metrics to r.
func WithRecorder(r Recorder) VendorOption {
	return func(s *VendorService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewVendorService constructs a VendorService. photos may be nil when object
// storage is not configured; photos are then skipped with a warning.
func NewVendorService(
	repo VendorRepository,
	photos PhotoStore,
	validator *validation.Validator,
	producer EventProducer,
	logger *zap.Logger,
	opts ...VendorOption,
) *VendorService {
	s := &VendorService{
		repo:      repo,
		photos:    photos,
		validator: validator,
		producer:  producer,
		metrics:   nopRecorder{},
		logger:    logger.Named("vendor_service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateVendor validates and stores a vendor submitted by the principal.
// Validation runs before any storage call. Photo uploads are best-effort:
// a failed upload becomes a warning and the vendor is stored without it.
func (s *VendorService) CreateVendor(
	ctx context.Context,
	principal *models.Principal,
	in *models.NewVendor,
	verified, business *models.Photo,
) (*CreateResult, error) {
	if principal == nil {
		return nil, e.ErrUnauthenticated
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if err := s.validator.Vendor(in, verified, business); err != nil {
		return nil, err
	}
	categoryID, err := uuid.Parse(in.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid vendor type", e.ErrInvalidInput)
	}

	result := &CreateResult{}
	vendor := &models.Vendor{
		ID:               uuid.New(),
		Name:             in.Name,
		CategoryID:       &categoryID,
		PhoneNumber:      in.PhoneNumber,
		Address:          in.Address,
		ListingCount:     in.ListingCount,
		TotalPrice:       models.TotalPrice(in.ListingCount),
		SalespersonID:    principal.UserID,
		SalespersonEmail: principal.Email,
		Status:           models.StatusPending,
		CreatedAt:        s.now().UTC(),
	}
	vendor.VerifiedPhotoURL = s.uploadPhoto(ctx, principal, models.VerifiedPhoto, validation.FieldVerifiedPhoto, verified, result)
	vendor.BusinessPhotoURL = s.uploadPhoto(ctx, principal, models.BusinessPhoto, validation.FieldBusinessPhoto, business, result)

	if err := s.repo.CreateVendor(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}

	s.metrics.RecordVendorCreated()
	s.logger.Info("vendor created",
		zap.String("vendor_id", vendor.ID.String()),
		zap.String("user_id", principal.UserID),
		zap.Int("warnings", len(result.Warnings)),
	)
	go func() {
		s.producer.Produce(events.VendorCreated, vendor)
	}()

	result.Vendor = vendor
	return result, nil
}

func (s *VendorService) uploadPhoto(
	ctx context.Context,
	principal *models.Principal,
	kind models.PhotoKind,
	field string,
	photo *models.Photo,
	result *CreateResult,
) *string {
	if photo == nil {
		return nil
	}
	if s.photos == nil {
		s.metrics.RecordUploadFailure("", e.KindNotConfigured.String())
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarningStorageNotConfigured,
			Field:   field,
			Message: storageNotConfiguredMessage,
		})
		return nil
	}

	path, err := s.photos.Upload(ctx, kind, principal.UserID, photo)
	if err == nil {
		return &path
	}

	kindOfErr := e.KindOf(err)
	s.metrics.RecordUploadFailure(s.photos.Bucket(kind), kindOfErr.String())
	s.logger.Warn("continuing without photo",
		zap.String("photo", string(kind)),
		zap.String("user_id", principal.UserID),
		zap.Error(err),
	)

	if e.IsKind(err, e.KindNotConfigured) {
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarningStorageNotConfigured,
			Field:   field,
			Message: storageNotConfiguredMessage,
		})
		return nil
	}
	result.Warnings = append(result.Warnings, Warning{
		Code:    WarningUploadFailed,
		Field:   field,
		Message: fmt.Sprintf("%s upload failed: %s. Vendor will be created without photo.", kind.Label(), uploadReason(kindOfErr, err, s.validator.MaxPhotoBytes())),
	})
	return nil
}

func uploadReason(kind e.Kind, err error, maxBytes int64) string {
	switch kind {
	case e.KindTooLarge:
		return fmt.Sprintf("File size is too large (max %dMB)", maxBytes>>20)
	case e.KindPolicyDenied:
		return "File upload not allowed"
	}
	var se *e.StoreError
	if errors.As(err, &se) {
		err = se.Err
	}
	return fmt.Sprintf("Failed to upload file: %v", err)
}

// ListMyVendors returns the principal's vendors, optionally narrowed to a status.
func (s *VendorService) ListMyVendors(ctx context.Context, principal *models.Principal, status models.VendorStatus) ([]models.Vendor, error) {
	if principal == nil {
		return nil, e.ErrUnauthenticated
	}
	if status == "" {
		return s.repo.ListVendorsBySalesperson(ctx, principal.UserID)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", e.ErrInvalidInput, status)
	}
	return s.repo.ListVendorsBySalespersonAndStatus(ctx, principal.UserID, status)
}

// ListPendingVendors returns pending vendors newest first, optionally only
// those of one salesperson.
func (s *VendorService) ListPendingVendors(ctx context.Context, salespersonEmail string) ([]models.Vendor, error) {
	if salespersonEmail == "" {
		return s.repo.ListPendingVendors(ctx)
	}
	return s.repo.ListVendors(ctx, models.VendorFilter{
		SalespersonEmail: salespersonEmail,
		Status:           models.StatusPending,
	})
}

// ListAllVendors returns every vendor newest first, optionally only those of
// one salesperson.
func (s *VendorService) ListAllVendors(ctx context.Context, salespersonEmail string) ([]models.Vendor, error) {
	if salespersonEmail == "" {
		return s.repo.ListAllVendors(ctx)
	}
	return s.repo.ListVendors(ctx, models.VendorFilter{SalespersonEmail: salespersonEmail})
}

// Scope selects which vendors the grouped admin view covers.
type Scope string

const (
	ScopePending Scope = "pending"
	ScopeAll     Scope = "all"
)

// GroupedVendors returns vendors grouped per salesperson email.
func (s *VendorService) GroupedVendors(ctx context.Context, scope Scope) ([]models.SalespersonGroup, error) {
	var (
		vendors []models.Vendor
		err     error
	)
	switch scope {
	case ScopePending, "":
		vendors, err = s.repo.ListPendingVendors(ctx)
	case ScopeAll:
		vendors, err = s.repo.ListAllVendors(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", e.ErrInvalidInput, scope)
	}
	if err != nil {
		return nil, err
	}
	return GroupBySalesperson(vendors), nil
}

// Salespeople lists the distinct salesperson emails across all vendors.
func (s *VendorService) Salespeople(ctx context.Context) ([]string, error) {
	vendors, err := s.repo.ListAllVendors(ctx)
	if err != nil {
		return nil, err
	}
	return SalespersonEmails(vendors), nil
}

// Approve marks a vendor approved for count listings and records the approver.
func (s *VendorService) Approve(ctx context.Context, approver *models.Principal, vendorID uuid.UUID, count int, notes string) (*models.Vendor, error) {
	if approver == nil {
		return nil, e.ErrUnauthenticated
	}
	if count < 0 {
		verr := &e.ValidationError{}
		verr.Add("approved_listing_count", "Listing count cannot be negative")
		return nil, verr
	}
	if err := s.checkTransition(ctx, vendorID, ActionApprove); err != nil {
		return nil, err
	}

	update := ApprovalUpdate(*approver, count, notes, s.now().UTC())
	return s.decide(ctx, ActionApprove, vendorID, update, approver)
}

// Reject marks a vendor rejected with a mandatory reason.
func (s *VendorService) Reject(ctx context.Context, approver *models.Principal, vendorID uuid.UUID, reason, notes string) (*models.Vendor, error) {
	if approver == nil {
		return nil, e.ErrUnauthenticated
	}
	if strings.TrimSpace(reason) == "" {
		verr := &e.ValidationError{}
		verr.Add("rejection_reason", "Rejection reason is required")
		return nil, verr
	}
	if err := s.checkTransition(ctx, vendorID, ActionReject); err != nil {
		return nil, err
	}

	update := RejectionUpdate(*approver, reason, notes)
	return s.decide(ctx, ActionReject, vendorID, update, approver)
}

// checkTransition enforces the strict workflow. The permissive default lets
// any vendor be decided again without reading it first.
func (s *VendorService) checkTransition(ctx context.Context, vendorID uuid.UUID, action Action) error {
	if !s.strict {
		return nil
	}
	current, err := s.repo.GetVendor(ctx, vendorID)
	if err != nil {
		return err
	}
	_, err = Transition(current.Status, action, true)
	return err
}

func (s *VendorService) decide(ctx context.Context, action Action, vendorID uuid.UUID, update models.VendorUpdate, approver *models.Principal) (*models.Vendor, error) {
	updated, err := s.repo.ApplyDecision(ctx, vendorID, update)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to %s vendor: %w", action, err)
	}

	s.metrics.RecordDecision(string(action))
	s.logger.Info("vendor decided",
		zap.String("action", string(action)),
		zap.String("vendor_id", vendorID.String()),
		zap.String("user_id", approver.UserID),
	)

	eventType := events.VendorApproved
	if action == ActionReject {
		eventType = events.VendorRejected
	}
	go func() {
		s.producer.Produce(eventType, updated)
	}()
	return updated, nil
}
