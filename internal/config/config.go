// Package config loads docchain runtime configuration from an optional YAML
// file followed by DOCCHAIN_* environment overrides.
//
//	DOCCHAIN_STORAGE_DRIVER: memory|sqlite|postgres|redis (default sqlite)
//	DOCCHAIN_SQLITE_PATH: path to sqlite file (default ./docchain.db)
//	DOCCHAIN_POSTGRES_DSN: postgres DSN when driver=postgres
//	DOCCHAIN_REDIS_ADDR / DOCCHAIN_REDIS_PASSWORD / DOCCHAIN_REDIS_DB / DOCCHAIN_REDIS_NAMESPACE
//	DOCCHAIN_BLOB_DRIVER: fs|s3|memory (default fs)
//	DOCCHAIN_BLOB_FS_ROOT: directory root when blob driver=fs (default ./blobdata)
//	DOCCHAIN_BLOB_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE
//	DOCCHAIN_LOG_MODE: production|development (default development)
//	DOCCHAIN_METRICS_ADDR: listen address for /metrics (empty disables)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage driver names accepted by Storage.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Blob driver names accepted by Blob.Driver.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Config is the top-level docchain.yml document.
type Config struct {
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Storage selects and configures the document backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
	Redis       Redis  `yaml:"redis,omitempty"`
}

// Redis configures the redis backend.
type Redis struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// Blob selects the store backups are written to.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root,omitempty"`
	S3     S3     `yaml:"s3,omitempty"`
}

// S3 configures an S3 or MinIO bucket. Empty credentials fall back to the
// default AWS credential chain.
type S3 struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
}

// Log configures the zap logger.
type Log struct {
	Mode string `yaml:"mode"`
}

// Metrics configures metric export.
type Metrics struct {
	Addr   string `yaml:"addr,omitempty"`
	Expvar bool   `yaml:"expvar,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: Storage{
			Driver:     DriverSQLite,
			SQLitePath: "docchain.db",
			Redis:      Redis{Addr: "localhost:6379", Namespace: "default"},
		},
		Blob: Blob{Driver: BlobFilesystem, FSRoot: "./blobdata", S3: S3{Region: "us-east-1"}},
		Log:  Log{Mode: "development"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays DOCCHAIN_* variables resolved through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DOCCHAIN_STORAGE_DRIVER", &c.Storage.Driver)
	str("DOCCHAIN_SQLITE_PATH", &c.Storage.SQLitePath)
	str("DOCCHAIN_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("DOCCHAIN_REDIS_ADDR", &c.Storage.Redis.Addr)
	str("DOCCHAIN_REDIS_PASSWORD", &c.Storage.Redis.Password)
	str("DOCCHAIN_REDIS_NAMESPACE", &c.Storage.Redis.Namespace)
	str("DOCCHAIN_BLOB_DRIVER", &c.Blob.Driver)
	str("DOCCHAIN_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("DOCCHAIN_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("DOCCHAIN_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("DOCCHAIN_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	str("DOCCHAIN_LOG_MODE", &c.Log.Mode)
	str("DOCCHAIN_METRICS_ADDR", &c.Metrics.Addr)

	if v, ok := lookup("DOCCHAIN_REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DOCCHAIN_REDIS_DB: %w", err)
		}
		c.Storage.Redis.DB = db
	}
	if v, ok := lookup("DOCCHAIN_BLOB_S3_PATH_STYLE"); ok && v != "" {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}
	return nil
}

// Validate checks driver names and driver-specific requirements.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("storage.postgres_dsn required for postgres driver"))
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("storage.redis.addr required for redis driver"))
		}
		if c.Storage.Redis.Namespace == "" {
			errs = append(errs, fmt.Errorf("storage.redis.namespace required for redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("blob.s3.bucket required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	return errors.Join(errs...)
}
