package db

import (
	"errors"
	"strings"

	e "github.com/gartstein/onboard/internal/onboarding/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the service distinguishes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInsufficientPriv    = "42501"
	pgUndefinedTable      = "42P01"
	pgInvalidSchemaName   = "3F000"
)

// classify turns a driver error into a StoreError. The original error stays
// in the chain so its message reaches logs and the caller.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return e.NewStoreError(kindOf(err), op, err)
}

func kindOf(err error) e.Kind {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e.KindNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return e.KindConflict
		case pgForeignKeyViolation, pgCheckViolation:
			return e.KindInvalidReference
		case pgInsufficientPriv:
			return e.KindPolicyDenied
		case pgUndefinedTable, pgInvalidSchemaName:
			return e.KindNotConfigured
		}
		return e.KindUnknown
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return e.KindConflict
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrCheckConstraintViolated):
		return e.KindInvalidReference
	}

	// SQLite reports constraint and schema failures only through messages.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"):
		return e.KindNotConfigured
	case strings.Contains(msg, "unique constraint failed"):
		return e.KindConflict
	case strings.Contains(msg, "foreign key constraint failed"), strings.Contains(msg, "check constraint failed"):
		return e.KindInvalidReference
	case strings.Contains(msg, "row-level security"):
		return e.KindPolicyDenied
	}
	return e.KindUnknown
}
