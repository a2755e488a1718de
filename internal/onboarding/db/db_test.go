package db

import (
	"context"
	"testing"
	"time"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a private in-memory SQLite database with foreign keys on.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SetupTestDB returns a migrated repository backed by SQLite.
func SetupTestDB(t *testing.T) *Repository {
	t.Helper()
	repo := New(openTestDB(t))
	require.NoError(t, repo.Migrate(context.Background()), "failed to migrate test database")
	return repo
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func seedCategory(t *testing.T, repo *Repository, name string) *models.Category {
	t.Helper()
	c := &models.Category{ID: uuid.New(), Name: name}
	require.NoError(t, repo.CreateCategory(context.Background(), c))
	return c
}

func newVendor(salesperson, phone string, category *models.Category, created time.Time) *models.Vendor {
	v := &models.Vendor{
		ID:               uuid.New(),
		Name:             "Vendor " + phone,
		PhoneNumber:      phone,
		Address:          "1 Main Street",
		ListingCount:     5,
		TotalPrice:       models.TotalPrice(5),
		SalespersonID:    salesperson,
		SalespersonEmail: salesperson + "@example.com",
		Status:           models.StatusPending,
		CreatedAt:        created,
	}
	if category != nil {
		v.CategoryID = &category.ID
	}
	return v
}

func TestCreateAndGetVendor(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	cat := seedCategory(t, repo, "Restaurant")

	vendor := newVendor("sp-1", "9876543210", cat, time.Now())
	require.NoError(t, repo.CreateVendor(ctx, vendor))

	got, err := repo.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, vendor.Name, got.Name)
	assert.Equal(t, 300, got.TotalPrice)
	assert.Equal(t, models.StatusPending, got.Status)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Restaurant", got.CategoryName())
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.RejectionReason)
}

func TestGetVendorWithoutCategory(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	vendor := newVendor("sp-1", "9876543210", nil, time.Now())
	require.NoError(t, repo.CreateVendor(ctx, vendor))

	got, err := repo.GetVendor(ctx, vendor.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Category)
	assert.Empty(t, got.CategoryName())
}

func TestGetVendorNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	_, err := repo.GetVendor(context.Background(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
	assert.Equal(t, e.KindNotFound, e.KindOf(err))
}

func TestCreateVendorDuplicatePhone(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateVendor(ctx, newVendor("sp-1", "9876543210", nil, time.Now())))
	err := repo.CreateVendor(ctx, newVendor("sp-2", "9876543210", nil, time.Now()))

	require.Error(t, err)
	assert.Equal(t, e.KindConflict, e.KindOf(err))
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")
}

func TestCreateVendorUnknownCategory(t *testing.T) {
	repo := SetupTestDB(t)
	ghost := &models.Category{ID: uuid.New()}

	err := repo.CreateVendor(context.Background(), newVendor("sp-1", "9876543210", ghost, time.Now()))

	require.Error(t, err)
	assert.Equal(t, e.KindInvalidReference, e.KindOf(err))
}

func TestListVendors(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	cat := seedCategory(t, repo, "Retail")
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	oldest := newVendor("sp-1", "1000000001", cat, base)
	middle := newVendor("sp-2", "1000000002", nil, base.Add(time.Hour))
	newest := newVendor("sp-1", "1000000003", cat, base.Add(2*time.Hour))
	for _, v := range []*models.Vendor{oldest, middle, newest} {
		require.NoError(t, repo.CreateVendor(ctx, v))
	}
	_, err := repo.ApplyDecision(ctx, newest.ID, models.VendorUpdate{
		Status:               models.StatusApproved,
		ApprovedListingCount: intPtr(5),
		ApprovedEarnings:     intPtr(100),
	})
	require.NoError(t, err)

	t.Run("all newest first", func(t *testing.T) {
		all, err := repo.ListAllVendors(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uuid.UUID{newest.ID, middle.ID, oldest.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})
		assert.Equal(t, "Retail", all[0].CategoryName())
		assert.Nil(t, all[1].Category)
	})

	t.Run("pending only", func(t *testing.T) {
		pending, err := repo.ListPendingVendors(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, middle.ID, pending[0].ID)
		assert.Equal(t, oldest.ID, pending[1].ID)
	})

	t.Run("by salesperson", func(t *testing.T) {
		mine, err := repo.ListVendorsBySalesperson(ctx, "sp-1")
		require.NoError(t, err)
		assert.Len(t, mine, 2)
	})

	t.Run("by salesperson and status", func(t *testing.T) {
		approved, err := repo.ListVendorsBySalespersonAndStatus(ctx, "sp-1", models.StatusApproved)
		require.NoError(t, err)
		require.Len(t, approved, 1)
		assert.Equal(t, newest.ID, approved[0].ID)
	})

	t.Run("by salesperson email", func(t *testing.T) {
		got, err := repo.ListVendors(ctx, models.VendorFilter{SalespersonEmail: "sp-2@example.com"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, middle.ID, got[0].ID)
	})
}

func TestApplyDecisionApproveThenReject(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	vendor := newVendor("sp-1", "9876543210", nil, time.Now())
	require.NoError(t, repo.CreateVendor(ctx, vendor))

	now := time.Now().UTC().Truncate(time.Second)
	approved, err := repo.ApplyDecision(ctx, vendor.ID, models.VendorUpdate{
		Status:               models.StatusApproved,
		ApprovedListingCount: intPtr(5),
		ApprovedEarnings:     intPtr(100),
		ApprovedAt:           &now,
		ApprovedBy:           strPtr("admin-1"),
		ApproverEmail:        strPtr("admin@example.com"),
		AdminNotes:           strPtr("looks good"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedEarnings)
	assert.Equal(t, 100, *approved.ApprovedEarnings)
	require.NotNil(t, approved.ApprovedAt)

	rejected, err := repo.ApplyDecision(ctx, vendor.ID, models.VendorUpdate{
		Status:          models.StatusRejected,
		ApprovedBy:      strPtr("admin-2"),
		ApproverEmail:   strPtr("other@example.com"),
		RejectionReason: strPtr("bad address"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	assert.Nil(t, rejected.ApprovedListingCount)
	assert.Nil(t, rejected.ApprovedEarnings)
	assert.Nil(t, rejected.ApprovedAt)
	assert.Nil(t, rejected.AdminNotes)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "bad address", *rejected.RejectionReason)
	assert.Equal(t, "admin-2", *rejected.ApprovedBy)
}

func TestApplyDecisionNotFound(t *testing.T) {
	repo := SetupTestDB(t)

	_, err := repo.ApplyDecision(context.Background(), uuid.New(), models.VendorUpdate{Status: models.StatusRejected})
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestListCategoriesOrderedByName(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	seedCategory(t, repo, "Salon")
	seedCategory(t, repo, "Bakery")
	seedCategory(t, repo, "Pharmacy")

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 3)
	assert.Equal(t, "Bakery", categories[0].Name)
	assert.Equal(t, "Pharmacy", categories[1].Name)
	assert.Equal(t, "Salon", categories[2].Name)
}

func TestUserRoles(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	_, err := repo.GetUserRole(ctx, "user-1")
	assert.Equal(t, e.KindNotFound, e.KindOf(err), "absent row is not-found")

	require.NoError(t, repo.UpsertUserRole(ctx, &models.UserRole{
		UserID:    "user-1",
		Role:      models.RoleSalesperson,
		CreatedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, repo.UpsertUserRole(ctx, &models.UserRole{
		UserID:    "user-2",
		Role:      models.RoleUser,
		CreatedAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, repo.UpsertUserRole(ctx, &models.UserRole{
		UserID:    "user-1",
		Role:      models.RoleAdmin,
		Email:     strPtr("boss@example.com"),
		CreatedAt: time.Now(),
	}))

	role, err := repo.GetUserRole(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role.Role, "last write wins")
	require.NotNil(t, role.Email)
	assert.Equal(t, "boss@example.com", *role.Email)

	roles, err := repo.ListUserRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "user-1", roles[0].UserID)
	assert.Equal(t, "user-2", roles[1].UserID)
}

func TestGetUserRoleMissingTable(t *testing.T) {
	repo := New(openTestDB(t))

	_, err := repo.GetUserRole(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, e.KindNotConfigured, e.KindOf(err))
	assert.Contains(t, err.Error(), "no such table")
}

func TestSalespersonEarningsView(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	a := newVendor("sp-1", "1000000001", nil, time.Now())
	b := newVendor("sp-1", "1000000002", nil, time.Now())
	c := newVendor("sp-1", "1000000003", nil, time.Now())
	for _, v := range []*models.Vendor{a, b, c} {
		require.NoError(t, repo.CreateVendor(ctx, v))
	}
	_, err := repo.ApplyDecision(ctx, a.ID, models.VendorUpdate{
		Status:               models.StatusApproved,
		ApprovedListingCount: intPtr(5),
		ApprovedEarnings:     intPtr(100),
	})
	require.NoError(t, err)
	_, err = repo.ApplyDecision(ctx, b.ID, models.VendorUpdate{
		Status:          models.StatusRejected,
		RejectionReason: strPtr("duplicate"),
	})
	require.NoError(t, err)

	row, err := repo.GetSalespersonEarnings(ctx, "sp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, row.PendingCount)
	assert.Equal(t, 1, row.ApprovedCount)
	assert.Equal(t, 1, row.RejectedCount)
	assert.Equal(t, 100, row.TotalEarnings)

	_, err = repo.GetSalespersonEarnings(ctx, "nobody")
	assert.Equal(t, e.KindNotFound, e.KindOf(err))
}

func TestRevokedTokens(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()

	revoked, err := repo.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	token := &models.RevokedToken{TokenID: "jti-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.RevokeToken(ctx, token))
	require.NoError(t, repo.RevokeToken(ctx, &models.RevokedToken{TokenID: "jti-1", UserID: "user-1"}), "revoking twice is a no-op")

	revoked, err = repo.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestWithTransactionRollsBack(t *testing.T) {
	repo := SetupTestDB(t)
	ctx := context.Background()
	vendor := newVendor("sp-1", "9876543210", nil, time.Now())

	err := repo.WithTransaction(ctx, func(tx *Repository) error {
		if err := tx.CreateVendor(ctx, vendor); err != nil {
			return err
		}
		return e.ErrInvalidInput
	})
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	_, err = repo.GetVendor(ctx, vendor.ID)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestPing(t *testing.T) {
	repo := SetupTestDB(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
