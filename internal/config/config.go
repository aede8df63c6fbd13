// Package config loads organcore settings from an optional YAML file and
// ORGANCORE_* environment overrides.
//
//	ORGANCORE_STORAGE_DRIVER: sqlite|postgres (default sqlite)
//	ORGANCORE_SQLITE_PATH: path to the sqlite file (default ./organcore.db)
//	ORGANCORE_POSTGRES_DSN: DSN when driver=postgres
//	ORGANCORE_POOL_MAX_CONNS, ORGANCORE_POOL_IDLE_TIMEOUT, ORGANCORE_POOL_ACQUIRE_TIMEOUT
//	ORGANCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	ORGANCORE_BLOB_FS_ROOT, ORGANCORE_BLOB_S3_BUCKET, ORGANCORE_BLOB_S3_REGION,
//	ORGANCORE_BLOB_S3_ENDPOINT, ORGANCORE_BLOB_S3_PATH_STYLE
//	ORGANCORE_CACHE_ORGANS, ORGANCORE_CACHE_LOCATIONS, ORGANCORE_CACHE_ROLES,
//	ORGANCORE_CACHE_EVENTS, ORGANCORE_CACHE_ATTRIBUTES
//	ORGANCORE_LOG_LEVEL: debug|info|warn|error (default info)
//	ORGANCORE_LOG_FORMAT: json|console (default json)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"organcore/internal/blob"
	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ORGANCORE_"

// Config is the complete runtime configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	Pool    Pool    `yaml:"pool"`
	Blob    Blob    `yaml:"blob"`
	Cache   Cache   `yaml:"cache"`
	Log     Log     `yaml:"log"`
}

// Storage selects the relational backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Pool bounds the connection pool.
type Pool struct {
	MaxConns       int           `yaml:"max_conns"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// Blob selects the document backend.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures the S3 document backend. Credentials come from the AWS
// default chain.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Cache sizes the identity cache tiers.
type Cache struct {
	Organs     int `yaml:"organs"`
	Locations  int `yaml:"locations"`
	Roles      int `yaml:"roles"`
	Events     int `yaml:"events"`
	Attributes int `yaml:"attributes"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: Storage{Driver: string(relational.DriverSQLite), SQLitePath: "./organcore.db"},
		Pool: Pool{
			MaxConns:       relational.DefaultMaxOpenConns,
			IdleTimeout:    relational.DefaultIdleTimeout,
			AcquireTimeout: relational.DefaultAcquireTimeout,
		},
		Blob: Blob{Driver: string(blob.DriverFilesystem), FSRoot: "./data"},
		Cache: Cache{
			Organs:     cache.DefaultCapacity,
			Locations:  cache.DefaultCapacity,
			Roles:      cache.DefaultCapacity,
			Events:     cache.DefaultCapacity,
			Attributes: cache.DefaultCapacity,
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	num("POOL_MAX_CONNS", &c.Pool.MaxConns)
	dur("POOL_IDLE_TIMEOUT", &c.Pool.IdleTimeout)
	dur("POOL_ACQUIRE_TIMEOUT", &c.Pool.AcquireTimeout)
	str("BLOB_DRIVER", &c.Blob.Driver)
	str("BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("BLOB_S3_REGION", &c.Blob.S3.Region)
	str("BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	flag("BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle)
	num("CACHE_ORGANS", &c.Cache.Organs)
	num("CACHE_LOCATIONS", &c.Cache.Locations)
	num("CACHE_ROLES", &c.Cache.Roles)
	num("CACHE_EVENTS", &c.Cache.Events)
	num("CACHE_ATTRIBUTES", &c.Cache.Attributes)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	return errors.Join(errs...)
}

// Validate rejects unknown drivers and non-positive sizes.
func (c Config) Validate() error {
	var errs []error
	switch relational.Driver(c.Storage.Driver) {
	case relational.DriverSQLite:
	case relational.DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage: postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob: s3 bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob: unknown driver %q", c.Blob.Driver))
	}
	if c.Pool.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("pool: max_conns must be positive, got %d", c.Pool.MaxConns))
	}
	if c.Pool.IdleTimeout < 0 || c.Pool.AcquireTimeout <= 0 {
		errs = append(errs, errors.New("pool: timeouts must be positive"))
	}
	for name, n := range map[string]int{
		"organs":     c.Cache.Organs,
		"locations":  c.Cache.Locations,
		"roles":      c.Cache.Roles,
		"events":     c.Cache.Events,
		"attributes": c.Cache.Attributes,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("cache: %s capacity must be positive, got %d", name, n))
		}
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// StoreDSN returns the driver and DSN to open the relational store with.
func (c Config) StoreDSN() (relational.Driver, string) {
	d := relational.Driver(c.Storage.Driver)
	if d == relational.DriverPostgres {
		return d, c.Storage.PostgresDSN
	}
	return d, c.Storage.SQLitePath
}

// PoolOptions converts the pool section for relational.Open.
func (c Config) PoolOptions() relational.Options {
	return relational.Options{
		MaxOpenConns:   c.Pool.MaxConns,
		IdleTimeout:    c.Pool.IdleTimeout,
		AcquireTimeout: c.Pool.AcquireTimeout,
	}
}

// BlobConfig converts the blob section for blob.Open.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}

// CacheOptions converts the cache section for cache.New.
func (c Config) CacheOptions() []cache.Option {
	return []cache.Option{
		cache.WithCapacity(cache.TierOrgan, c.Cache.Organs),
		cache.WithCapacity(cache.TierLocation, c.Cache.Locations),
		cache.WithCapacity(cache.TierRole, c.Cache.Roles),
		cache.WithCapacity(cache.TierEvent, c.Cache.Events),
		cache.WithCapacity(cache.TierAttributes, c.Cache.Attributes),
	}
}
