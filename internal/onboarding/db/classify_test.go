package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupPostgresMock returns a repository speaking the postgres dialect to sqlmock.
func setupPostgresMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { _ = sqlDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err, "failed to open gorm over sqlmock")
	return New(gormDB), mock
}

func TestGetUserRoleUndefinedTable(t *testing.T) {
	repo, mock := setupPostgresMock(t)
	mock.ExpectQuery(`SELECT .* FROM "user_roles"`).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "user_roles" does not exist`})

	_, err := repo.GetUserRole(context.Background(), "user-1")

	require.Error(t, err)
	assert.Equal(t, e.KindNotConfigured, e.KindOf(err))
	assert.NotErrorIs(t, err, e.ErrNotFound, "missing table must not look like a missing row")
	assert.Contains(t, err.Error(), `relation "user_roles" does not exist`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListVendorsPolicyDenied(t *testing.T) {
	repo, mock := setupPostgresMock(t)
	mock.ExpectQuery(`SELECT .* FROM "vendors"`).
		WillReturnError(&pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"})

	_, err := repo.ListAllVendors(context.Background())

	assert.Equal(t, e.KindPolicyDenied, e.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateVendorPostgresErrors(t *testing.T) {
	t.Run("foreign key violation", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		mock.ExpectExec(`UPDATE "vendors"`).
			WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

		err := repo.UpdateVendor(context.Background(), uuid.New(), models.VendorUpdate{Status: models.StatusRejected})

		assert.Equal(t, e.KindInvalidReference, e.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows affected", func(t *testing.T) {
		repo, mock := setupPostgresMock(t)
		mock.ExpectExec(`UPDATE "vendors"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateVendor(context.Background(), uuid.New(), models.VendorUpdate{Status: models.StatusRejected})

		assert.ErrorIs(t, err, e.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want e.Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, e.KindNotFound},
		{"pg unique", &pgconn.PgError{Code: "23505"}, e.KindConflict},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, e.KindInvalidReference},
		{"pg check", &pgconn.PgError{Code: "23514"}, e.KindInvalidReference},
		{"pg privilege", &pgconn.PgError{Code: "42501"}, e.KindPolicyDenied},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, e.KindNotConfigured},
		{"pg invalid schema", &pgconn.PgError{Code: "3F000"}, e.KindNotConfigured},
		{"pg other", &pgconn.PgError{Code: "57014"}, e.KindUnknown},
		{"wrapped pg", fmt.Errorf("query: %w", &pgconn.PgError{Code: "23505"}), e.KindConflict},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, e.KindConflict},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, e.KindInvalidReference},
		{"sqlite missing table", errors.New("no such table: user_roles"), e.KindNotConfigured},
		{"sqlite unique", errors.New("UNIQUE constraint failed: vendors.v_phonenumber"), e.KindConflict},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), e.KindInvalidReference},
		{"other", errors.New("connection reset by peer"), e.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kindOf(tt.err))
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify("noop", nil))
}
