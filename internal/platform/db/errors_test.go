package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/police-records/registry/internal/shared"
)

func TestMapErrorTranslatesSQLState(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		target error
	}{
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "officer_profiles_national_id_key"}, shared.ErrUniqueness},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "regions_district_id_fkey"}, shared.ErrReferentialIntegrity},
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "name"}, shared.ErrValidation},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "crimes_resolution_check"}, shared.ErrValidation},
		{"serialization", &pgconn.PgError{Code: "40001"}, shared.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, shared.ErrConflict},
		{"no rows", pgx.ErrNoRows, shared.ErrNotFound},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), shared.ErrUniqueness},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tc.err), tc.target)
		})
	}
}

func TestMapErrorKeepsConstraintName(t *testing.T) {
	err := MapError(&pgconn.PgError{Code: "23505", ConstraintName: "stations_head_commissioner_id_key"})

	var violation *shared.UniquenessViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "stations_head_commissioner_id_key", violation.Constraint)
}

func TestMapErrorPassesThroughUnknown(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, MapError(plain))
	assert.Nil(t, MapError(nil))
	other := &pgconn.PgError{Code: "57014"}
	assert.Equal(t, error(other), MapError(other))
}

func TestMapErrorConflictIsUserSafe(t *testing.T) {
	err := fmt.Errorf("platform/db: commit tx: %w", MapError(&pgconn.PgError{Code: "40001"}))
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Contains(t, shared.UserSafeMessage(err), "concurrent update conflict")
	assert.Contains(t, err.Error(), "40001")
}
