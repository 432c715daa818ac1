//go:build integration

package personnel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/police-records/registry/internal/integration"
	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/shared"
	"github.com/police-records/registry/internal/testing/pgtest"
)

func TestRepositoryBirthCityUniquePerProfileTable(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	chain := pgtest.SeedChain(t, pool)
	svc := personnel.NewService(personnel.NewRepository(pool), integration.NewProfileSync(nil, nil), nil, nil).
		WithPasswordCost(bcrypt.MinCost)

	_, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "first", Password: "s3cret-pass", Role: "3",
		Profile: &personnel.ProfileChanges{BirthCityID: &chain.Ville}})
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "second", Password: "s3cret-pass", Role: "3",
		Profile: &personnel.ProfileChanges{BirthCityID: &chain.Ville}})
	var violation *shared.UniquenessViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "officer_profiles_birth_city_id_key", violation.Constraint)
	assert.Equal(t, 1, pgtest.Count(t, pool, "accounts"))
	assert.Equal(t, 1, pgtest.Count(t, pool, "officer_profiles"))

	_, err = svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "chief", Password: "s3cret-pass", Role: "2",
		Profile: &personnel.ProfileChanges{BirthCityID: &chain.Ville}})
	require.NoError(t, err)
}

func TestRepositoryAccountDeleteRemovesProfile(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	svc := personnel.NewService(personnel.NewRepository(pool), integration.NewProfileSync(nil, nil), nil, nil).
		WithPasswordCost(bcrypt.MinCost)

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "min", Password: "s3cret-pass", Role: "1"})
	require.NoError(t, err)
	require.NotNil(t, rec.Profile)
	assert.Equal(t, 1, pgtest.Count(t, pool, "ministry_profiles"))

	require.NoError(t, svc.DeleteAccount(ctx, rec.ID))
	assert.Zero(t, pgtest.Count(t, pool, "ministry_profiles"))
}
