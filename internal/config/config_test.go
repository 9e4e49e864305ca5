package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("DOCCHAIN_STORAGE_DRIVER", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, BlobFilesystem, cfg.Blob.Driver)
	assert.Equal(t, "development", cfg.Log.Mode)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchain.yml")
	doc := `
storage:
  driver: redis
  redis:
    addr: redis:6379
    namespace: prod
blob:
  driver: s3
  s3:
    bucket: backups
log:
  mode: production
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("DOCCHAIN_REDIS_NAMESPACE", "staging")
	t.Setenv("DOCCHAIN_BLOB_S3_PATH_STYLE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "staging", cfg.Storage.Redis.Namespace)
	assert.Equal(t, "backups", cfg.Blob.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Blob.S3.Region, "defaults survive partial YAML")
	assert.True(t, cfg.Blob.S3.PathStyle)
	assert.Equal(t, "production", cfg.Log.Mode)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("storage: [unterminated"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestApplyEnvRedisDB(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"DOCCHAIN_REDIS_DB": "3"})))
	assert.Equal(t, 3, cfg.Storage.Redis.DB)

	err := cfg.ApplyEnv(envMap(map[string]string{"DOCCHAIN_REDIS_DB": "three"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCCHAIN_REDIS_DB")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "mongo" }, `unknown storage driver "mongo"`},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "postgres_dsn required"},
		{"redis without namespace", func(c *Config) {
			c.Storage.Driver = DriverRedis
			c.Storage.Redis.Namespace = ""
		}, "namespace required"},
		{"s3 without bucket", func(c *Config) { c.Blob.Driver = BlobS3 }, "bucket required"},
		{"unknown blob", func(c *Config) { c.Blob.Driver = "gcs" }, `unknown blob driver "gcs"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
	assert.NoError(t, Default().Validate())
}
