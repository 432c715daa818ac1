//go:build integration

package jurisdiction_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/police-records/registry/internal/jurisdiction"
	"github.com/police-records/registry/internal/platform/db"
	"github.com/police-records/registry/internal/shared"
	"github.com/police-records/registry/internal/testing/pgtest"
)

func TestRepositoryDeleteDistrictCascades(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	chain := pgtest.SeedChain(t, pool)
	team := pgtest.SeedTeam(t, pool, pgtest.SeedCommissioner(t, pool, "chief"), "Alpha")
	crime := pgtest.InsertID(t, pool, `INSERT INTO crimes (quartier_id, team_id) VALUES ($1, $2) RETURNING id`, chain.Quartier, team)
	pgtest.InsertID(t, pool, `INSERT INTO offenders (last_name, first_name, sex, birth_date, crime_id)
VALUES ('Doe', 'John', 'MALE', '1990-01-01', $1) RETURNING id`, crime)

	svc := jurisdiction.NewService(jurisdiction.NewRepository(pool), nil, jurisdiction.DeleteCascade, nil)
	require.NoError(t, svc.Delete(ctx, jurisdiction.LevelDistrict, chain.District))

	for _, table := range []string{"districts", "regions", "villes", "secteurs", "quartiers", "crimes", "offenders"} {
		assert.Zero(t, pgtest.Count(t, pool, table), table)
	}
	assert.Equal(t, 1, pgtest.Count(t, pool, "investigation_teams"))

	assert.ErrorIs(t, svc.Delete(ctx, jurisdiction.LevelDistrict, chain.District), shared.ErrNotFound)
}

func TestRepositoryRestrictDeleteWaitsForPendingCrime(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	chain := pgtest.SeedChain(t, pool)
	team := pgtest.SeedTeam(t, pool, pgtest.SeedCommissioner(t, pool, "chief"), "Alpha")

	pending, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = pending.Rollback(ctx) }()
	_, err = pending.Exec(ctx, `INSERT INTO crimes (quartier_id, team_id) VALUES ($1, $2)`, chain.Quartier, team)
	require.NoError(t, err)

	svc := jurisdiction.NewService(jurisdiction.NewRepository(pool), nil, jurisdiction.DeleteRestrict, nil)
	done := make(chan error, 1)
	go func() { done <- svc.Delete(ctx, jurisdiction.LevelRegion, chain.Region) }()

	select {
	case err := <-done:
		t.Fatalf("delete finished while a crime insert was uncommitted: %v", err)
	case <-time.After(300 * time.Millisecond):
	}
	require.NoError(t, pending.Commit(ctx))

	select {
	case err := <-done:
		require.ErrorIs(t, err, shared.ErrReferentialIntegrity)
		assert.Contains(t, err.Error(), "1 crime(s)")
	case <-time.After(10 * time.Second):
		t.Fatal("delete did not finish after the crime committed")
	}
	assert.Equal(t, 1, pgtest.Count(t, pool, "regions"))
	assert.Equal(t, 1, pgtest.Count(t, pool, "crimes"))
}

func TestRepositoryLockedSubtreeRejectsLateCrime(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	chain := pgtest.SeedChain(t, pool)
	team := pgtest.SeedTeam(t, pool, pgtest.SeedCommissioner(t, pool, "chief"), "Alpha")
	repo := jurisdiction.NewRepository(pool)

	inserted := make(chan error, 1)
	err := repo.WithTx(ctx, func(ctx context.Context, tx jurisdiction.TxRepository) error {
		if err := tx.LockSubtree(ctx, jurisdiction.LevelSecteur, chain.Secteur); err != nil {
			return err
		}
		go func() {
			_, err := pool.Exec(context.Background(), `INSERT INTO crimes (quartier_id, team_id) VALUES ($1, $2)`, chain.Quartier, team)
			inserted <- db.MapError(err)
		}()
		select {
		case err := <-inserted:
			return fmt.Errorf("crime insert was not blocked by the subtree lock: %v", err)
		case <-time.After(300 * time.Millisecond):
		}
		n, err := tx.CountCrimes(ctx, jurisdiction.LevelSecteur, chain.Secteur)
		if err != nil {
			return err
		}
		if n != 0 {
			return fmt.Errorf("counted %d crimes under an empty secteur", n)
		}
		return tx.Delete(ctx, jurisdiction.LevelSecteur, chain.Secteur)
	})
	require.NoError(t, err)

	select {
	case err := <-inserted:
		assert.ErrorIs(t, err, shared.ErrReferentialIntegrity)
	case <-time.After(10 * time.Second):
		t.Fatal("crime insert still blocked after the delete committed")
	}
	assert.Zero(t, pgtest.Count(t, pool, "crimes"))
	assert.Zero(t, pgtest.Count(t, pool, "quartiers"))
}

func TestRepositoryLockSubtreeMissingRow(t *testing.T) {
	pool := pgtest.New(t)
	repo := jurisdiction.NewRepository(pool)

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx jurisdiction.TxRepository) error {
		return tx.LockSubtree(ctx, jurisdiction.LevelVille, 404)
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
