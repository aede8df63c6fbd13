package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organcore/internal/blob"
	"organcore/internal/infra/persistence/relational"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("", func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	driver, dsn := cfg.StoreDSN()
	assert.Equal(t, relational.DriverSQLite, driver)
	assert.Equal(t, "./organcore.db", dsn)
	assert.Equal(t, blob.DriverFilesystem, cfg.BlobConfig().Driver)
	assert.Len(t, cfg.CacheOptions(), 5)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "organcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: postgres
  postgres_dsn: postgres://file/organcore
pool:
  max_conns: 4
  acquire_timeout: 5s
blob:
  driver: s3
  s3:
    bucket: documents
    region: eu-west-1
cache:
  organs: 50
log:
  format: console
`), 0o600))

	t.Setenv("ORGANCORE_POSTGRES_DSN", "postgres://env/organcore")
	t.Setenv("ORGANCORE_CACHE_EVENTS", "7")
	t.Setenv("ORGANCORE_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("ORGANCORE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	driver, dsn := cfg.StoreDSN()
	assert.Equal(t, relational.DriverPostgres, driver)
	assert.Equal(t, "postgres://env/organcore", dsn, "environment wins over the file")
	assert.Equal(t, 4, cfg.PoolOptions().MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.PoolOptions().AcquireTimeout)
	assert.Equal(t, relational.DefaultIdleTimeout, cfg.Pool.IdleTimeout)
	assert.Equal(t, "documents", cfg.BlobConfig().S3.Bucket)
	assert.True(t, cfg.BlobConfig().S3.PathStyle)
	assert.Equal(t, 50, cfg.Cache.Organs)
	assert.Equal(t, 7, cfg.Cache.Events)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	env := map[string]string{
		"ORGANCORE_CACHE_ORGANS":       "many",
		"ORGANCORE_POOL_IDLE_TIMEOUT":  "soon",
		"ORGANCORE_BLOB_S3_PATH_STYLE": "maybe",
	}
	_, err := load("", func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORGANCORE_CACHE_ORGANS")
	assert.Contains(t, err.Error(), "ORGANCORE_POOL_IDLE_TIMEOUT")
	assert.Contains(t, err.Error(), "ORGANCORE_BLOB_S3_PATH_STYLE")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"unknown storage driver": {func(c *Config) { c.Storage.Driver = "mysql" }, `unknown driver "mysql"`},
		"postgres without dsn":   {func(c *Config) { c.Storage.Driver = "postgres" }, "postgres_dsn is required"},
		"unknown blob driver":    {func(c *Config) { c.Blob.Driver = "gcs" }, `unknown driver "gcs"`},
		"s3 without bucket":      {func(c *Config) { c.Blob.Driver = "s3" }, "bucket is required"},
		"zero pool":              {func(c *Config) { c.Pool.MaxConns = 0 }, "max_conns must be positive"},
		"zero acquire timeout":   {func(c *Config) { c.Pool.AcquireTimeout = 0 }, "timeouts must be positive"},
		"negative cache tier":    {func(c *Config) { c.Cache.Roles = -1 }, "roles capacity must be positive"},
		"unknown log format":     {func(c *Config) { c.Log.Format = "xml" }, `unknown format "xml"`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	require.NoError(t, Default().Validate())
}
