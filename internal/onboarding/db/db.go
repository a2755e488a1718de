// Package db implements the repository over the relational backing store:
// vendors joined with their categories, user roles, the salesperson earnings
// aggregate and revoked session tokens. Every driver error leaving this
// package is classified into an errors.Kind.
package db

import (
	"context"
	"fmt"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the connection string understood by the postgres driver.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NewRepository connects to PostgreSQL. Schema creation is left to Migrate.
func NewRepository(cfg *Config) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Repository{db: db}, nil
}

// New wraps an already opened GORM handle.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the tables and the salesperson_earnings view.
func (r *Repository) Migrate(ctx context.Context) error {
	tx := r.db.WithContext(ctx)
	if err := tx.AutoMigrate(&models.Category{}, &models.Vendor{}, &models.UserRole{}, &models.RevokedToken{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := tx.Migrator().DropView(models.SalespersonEarnings{}.TableName()); err != nil {
		return fmt.Errorf("failed to drop earnings view: %w", err)
	}
	if err := tx.Exec(earningsViewSQL).Error; err != nil {
		return fmt.Errorf("failed to create earnings view: %w", err)
	}
	return nil
}

const earningsViewSQL = `CREATE VIEW salesperson_earnings AS
SELECT salesperson_id,
	SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END) AS pending_count,
	SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END) AS approved_count,
	SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END) AS rejected_count,
	SUM(CASE WHEN status = 'approved' THEN COALESCE(approved_earnings, 0) ELSE 0 END) AS total_earnings
FROM vendors
GROUP BY salesperson_id`

func (r *Repository) CreateVendor(ctx context.Context, vendor *models.Vendor) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(vendor).Error; err != nil {
		return classify("create vendor", err)
	}
	return nil
}

// GetVendor loads a vendor together with its category.
func (r *Repository) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Joins("Category").
		Take(&vendor, "vendors.id = ?", id).Error
	if err != nil {
		return nil, classify("get vendor", err)
	}
	return &vendor, nil
}

// ListVendorsBySalesperson returns every vendor submitted by one salesperson.
func (r *Repository) ListVendorsBySalesperson(ctx context.Context, salespersonID string) ([]models.Vendor, error) {
	return r.listVendors(ctx, "list vendors by salesperson", models.VendorFilter{SalespersonID: salespersonID})
}

// ListVendorsBySalespersonAndStatus narrows a salesperson's vendors to one status.
func (r *Repository) ListVendorsBySalespersonAndStatus(ctx context.Context, salespersonID string, status models.VendorStatus) ([]models.Vendor, error) {
	return r.listVendors(ctx, "list vendors by salesperson and status", models.VendorFilter{
		SalespersonID: salespersonID,
		Status:        status,
	})
}

func (r *Repository) ListPendingVendors(ctx context.Context) ([]models.Vendor, error) {
	return r.listVendors(ctx, "list pending vendors", models.VendorFilter{Status: models.StatusPending})
}

func (r *Repository) ListAllVendors(ctx context.Context) ([]models.Vendor, error) {
	return r.listVendors(ctx, "list all vendors", models.VendorFilter{})
}

// ListVendors is the general filtered listing used by the admin views.
func (r *Repository) ListVendors(ctx context.Context, filter models.VendorFilter) ([]models.Vendor, error) {
	return r.listVendors(ctx, "list vendors", filter)
}

// listVendors left-joins categories and orders newest first.
func (r *Repository) listVendors(ctx context.Context, op string, filter models.VendorFilter) ([]models.Vendor, error) {
	q := r.db.WithContext(ctx).Joins("Category")
	if filter.SalespersonID != "" {
		q = q.Where("vendors.salesperson_id = ?", filter.SalespersonID)
	}
	if filter.SalespersonEmail != "" {
		q = q.Where("vendors.salesperson_email = ?", filter.SalespersonEmail)
	}
	if filter.Status != "" {
		q = q.Where("vendors.status = ?", filter.Status)
	}

	var vendors []models.Vendor
	if err := q.Order("vendors.created_at DESC").Find(&vendors).Error; err != nil {
		return nil, classify(op, err)
	}
	return vendors, nil
}

// UpdateVendor overwrites the decision columns of a vendor. Nil fields are
// written as NULL.
func (r *Repository) UpdateVendor(ctx context.Context, id uuid.UUID, update models.VendorUpdate) error {
	result := r.db.WithContext(ctx).Model(&models.Vendor{}).
		Where("id = ?", id).
		Updates(update.Columns())

	if result.Error != nil {
		return classify("update vendor", result.Error)
	}
	if result.RowsAffected == 0 {
		return e.NewStoreError(e.KindNotFound, "update vendor", gorm.ErrRecordNotFound)
	}
	return nil
}

// ApplyDecision writes a decision and re-reads the vendor in one transaction.
func (r *Repository) ApplyDecision(ctx context.Context, id uuid.UUID, update models.VendorUpdate) (*models.Vendor, error) {
	var updated *models.Vendor
	err := r.WithTransaction(ctx, func(repo *Repository) error {
		if err := repo.UpdateVendor(ctx, id, update); err != nil {
			return err
		}
		v, err := repo.GetVendor(ctx, id)
		if err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListCategories returns categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, classify("list categories", err)
	}
	return categories, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return classify("create category", err)
	}
	return nil
}

// GetUserRole returns the stored role row. A missing row is reported as
// KindNotFound, a missing table as KindNotConfigured.
func (r *Repository) GetUserRole(ctx context.Context, userID string) (*models.UserRole, error) {
	var role models.UserRole
	if err := r.db.WithContext(ctx).Take(&role, "user_id = ?", userID).Error; err != nil {
		return nil, classify("get user role", err)
	}
	return &role, nil
}

// UpsertUserRole inserts or replaces the role of a user. Last write wins.
func (r *Repository) UpsertUserRole(ctx context.Context, role *models.UserRole) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "email", "created_at"}),
	}).Create(role).Error
	if err != nil {
		return classify("upsert user role", err)
	}
	return nil
}

// ListUserRoles returns all role assignments, newest first.
func (r *Repository) ListUserRoles(ctx context.Context) ([]models.UserRole, error) {
	var roles []models.UserRole
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&roles).Error; err != nil {
		return nil, classify("list user roles", err)
	}
	return roles, nil
}

// GetSalespersonEarnings reads one row of the earnings aggregate.
func (r *Repository) GetSalespersonEarnings(ctx context.Context, salespersonID string) (*models.SalespersonEarnings, error) {
	var row models.SalespersonEarnings
	if err := r.db.WithContext(ctx).Take(&row, "salesperson_id = ?", salespersonID).Error; err != nil {
		return nil, classify("get salesperson earnings", err)
	}
	return &row, nil
}

// RevokeToken records a signed-out token id. Revoking twice is a no-op.
func (r *Repository) RevokeToken(ctx context.Context, token *models.RevokedToken) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(token).Error
	if err != nil {
		return classify("revoke token", err)
	}
	return nil
}

func (r *Repository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("token_id = ?", tokenID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, classify("check revoked token", err)
	}
	return count > 0, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return classify("exec", result.Error)
	}
	return nil
}

// Ping checks connectivity of the underlying pool.
func (r *Repository) Ping(ctx context.Context) error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
