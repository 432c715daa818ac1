package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/police-records/registry/internal/testing/guard"
	"github.com/police-records/registry/migrations"
)

func TestPendingKeepsFileOrder(t *testing.T) {
	names := []string{"0001_jurisdictions.sql", "0002_personnel.sql", "0003_cases.sql"}
	assert.Equal(t, names, pending(names, nil))
	assert.Equal(t, []string{"0003_cases.sql"}, pending(names, map[string]bool{
		"0001_jurisdictions.sql": true,
		"0002_personnel.sql":     true,
	}))
	assert.Empty(t, pending(names, map[string]bool{
		"0001_jurisdictions.sql": true,
		"0002_personnel.sql":     true,
		"0003_cases.sql":         true,
	}))
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	names, err := migrations.Names()
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.True(t, strings.HasPrefix(names[0], "0001_"))
	assert.True(t, strings.HasPrefix(names[2], "0003_"))

	body, err := migrations.Files.ReadFile(names[2])
	require.NoError(t, err)
	assert.Contains(t, string(body), "crimes_resolution_check")
}

func TestMainReturnsInTestMode(t *testing.T) {
	main()
}
