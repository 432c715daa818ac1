//go:build integration

// Package pgtest starts a migrated PostgreSQL database for repository tests.
// Tests use a throwaway container unless REGISTRY_TEST_PG_DSN points at an
// existing server; either way each test gets its own schema.
package pgtest

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/police-records/registry/internal/platform/db"
	"github.com/police-records/registry/migrations"
)

// DSNEnv names the variable that selects an existing server.
const DSNEnv = "REGISTRY_TEST_PG_DSN"

// New returns a pool on a fresh schema with every migration applied.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		dsn = startContainer(t)
	}

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	admin, err := db.New(ctx, dsn, db.Options{MaxConns: 1})
	require.NoError(t, err)
	t.Cleanup(admin.Close)
	_, err = admin.Exec(ctx, `CREATE SCHEMA `+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
	})

	pool, err := db.New(ctx, withSearchPath(t, dsn, schema), db.Options{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	names, err := migrations.Names()
	require.NoError(t, err)
	for _, name := range names {
		body, err := fs.ReadFile(migrations.Files, name)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(body))
		require.NoError(t, err, "apply %s", name)
	}
	return pool
}

func startContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("registry"),
		tcpostgres.WithUsername("registry"),
		tcpostgres.WithPassword("registry"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("postgres container unavailable (set %s to use an existing server): %v", DSNEnv, err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func withSearchPath(t *testing.T, dsn, schema string) string {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}

// InsertID runs an INSERT ... RETURNING id.
func InsertID(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) int64 {
	t.Helper()
	var id int64
	require.NoError(t, pool.QueryRow(context.Background(), sql, args...).Scan(&id))
	return id
}

// Count returns the number of rows in table.
func Count(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n))
	return n
}

// Chain holds one row id per tier, each the parent of the next.
type Chain struct {
	District, Region, Ville, Secteur, Quartier int64
}

// SeedChain inserts a district with one row on every tier below it.
func SeedChain(t *testing.T, pool *pgxpool.Pool) Chain {
	t.Helper()
	var c Chain
	c.District = InsertID(t, pool, `INSERT INTO districts (name) VALUES ('Centre') RETURNING id`)
	c.Region = InsertID(t, pool, `INSERT INTO regions (name, district_id) VALUES ('Mfoundi', $1) RETURNING id`, c.District)
	c.Ville = InsertID(t, pool, `INSERT INTO villes (name, region_id) VALUES ('Yaoundé', $1) RETURNING id`, c.Region)
	c.Secteur = InsertID(t, pool, `INSERT INTO secteurs (name, ville_id) VALUES ('Yaoundé I', $1) RETURNING id`, c.Ville)
	c.Quartier = InsertID(t, pool, `INSERT INTO quartiers (name, secteur_id) VALUES ('Bastos', $1) RETURNING id`, c.Secteur)
	return c
}

// SeedCommissioner inserts a commissioner account and returns its profile id.
func SeedCommissioner(t *testing.T, pool *pgxpool.Pool, username string) int64 {
	t.Helper()
	account := InsertID(t, pool, `INSERT INTO accounts (username, password_hash, role) VALUES ($1, 'x', 'COMMISSIONER') RETURNING id`, username)
	return InsertID(t, pool, `INSERT INTO commissioner_profiles (account_id) VALUES ($1) RETURNING id`, account)
}

// SeedTeam inserts an investigation team supervised by a commissioner profile.
func SeedTeam(t *testing.T, pool *pgxpool.Pool, supervisorID int64, name string) int64 {
	t.Helper()
	return InsertID(t, pool, `INSERT INTO investigation_teams (name, supervisor_id) VALUES ($1, $2) RETURNING id`, name, supervisorID)
}
