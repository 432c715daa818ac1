package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/police-records/registry/internal/jurisdiction"
	"github.com/police-records/registry/internal/platform/blob"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.False(t, cfg.IsProduction())

	policy, err := cfg.DeletePolicy()
	require.NoError(t, err)
	assert.Equal(t, jurisdiction.DeleteCascade, policy)

	driver, err := cfg.BlobStoreDriver()
	require.NoError(t, err)
	assert.Equal(t, blob.DriverNone, driver)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JURISDICTION_DELETE_POLICY", "restrict")
	t.Setenv("BLOB_DRIVER", "s3")
	t.Setenv("BLOB_S3_BUCKET", "mugshots")
	t.Setenv("BLOB_S3_ENDPOINT", "http://minio:9000")
	t.Setenv("BLOB_S3_PATH_STYLE", "true")
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	policy, err := cfg.DeletePolicy()
	require.NoError(t, err)
	assert.Equal(t, jurisdiction.DeleteRestrict, policy)

	s3 := cfg.S3()
	assert.Equal(t, "mugshots", s3.Bucket)
	assert.Equal(t, "http://minio:9000", s3.Endpoint)
	assert.True(t, s3.PathStyle)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"delete policy": {"JURISDICTION_DELETE_POLICY": "orphan"},
		"blob driver":   {"BLOB_DRIVER": "gcs"},
		"s3 bucket":     {"BLOB_DRIVER": "s3"},
		"hash cost":     {"PASSWORD_HASH_COST": "2"},
		"log format":    {"LOG_FORMAT": "xml"},
		"rate limit":    {"RATE_LIMIT_PER_MINUTE": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
