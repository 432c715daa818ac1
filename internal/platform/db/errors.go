package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/police-records/registry/internal/shared"
)

// PostgreSQL SQLSTATE codes translated by MapError.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// MapError translates driver errors into the shared error taxonomy. Errors it
// does not recognise are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return &shared.UniquenessViolation{Constraint: pgErr.ConstraintName}
	case codeForeignKeyViolation:
		return &shared.ReferenceError{Field: pgErr.ConstraintName, Detail: pgErr.Detail}
	case codeNotNullViolation:
		return shared.Invalid(pgErr.ColumnName, "is required")
	case codeCheckViolation:
		return shared.Invalid(pgErr.ConstraintName, "check constraint failed")
	case codeSerialization, codeDeadlock:
		return fmt.Errorf("%w (sqlstate %s)", shared.ErrConflict, pgErr.Code)
	}
	return err
}
