//go:build integration

package stations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/police-records/registry/internal/shared"
	"github.com/police-records/registry/internal/stations"
	"github.com/police-records/registry/internal/testing/pgtest"
)

func TestRepositoryRejectsSecondStationForHead(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	chain := pgtest.SeedChain(t, pool)
	head := pgtest.SeedCommissioner(t, pool, "chief")
	other := pgtest.SeedCommissioner(t, pool, "deputy")
	repo := stations.NewRepository(pool)

	first, err := repo.Create(ctx, stations.Station{Name: "Centrale", VilleID: chain.Ville, HeadCommissionerID: head})
	require.NoError(t, err)

	_, err = repo.Create(ctx, stations.Station{Name: "Annexe", VilleID: chain.Ville, HeadCommissionerID: head})
	var violation *shared.UniquenessViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, stations.HeadConstraint, violation.Constraint)

	annexe, err := repo.Create(ctx, stations.Station{Name: "Annexe", VilleID: chain.Ville, HeadCommissionerID: other})
	require.NoError(t, err)
	_, err = repo.SetHead(ctx, annexe.ID, head)
	require.ErrorIs(t, err, shared.ErrUniqueness)

	got, found, err := repo.HeadedBy(ctx, head)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, got.ID)
}

func TestRepositoryStationReferences(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	head := pgtest.SeedCommissioner(t, pool, "chief")

	_, err := stations.NewRepository(pool).Create(ctx, stations.Station{Name: "Nowhere", VilleID: 404, HeadCommissionerID: head})
	assert.ErrorIs(t, err, shared.ErrReferentialIntegrity)
}
