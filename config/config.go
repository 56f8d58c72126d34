// Package config loads engine settings from a config file, the
// environment and .env files.
package config

import (
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/bxshcn/geesql/dialect"
	"github.com/bxshcn/geesql/log"
	"github.com/bxshcn/geesql/stmtcache"
)

// Cache policies.
const (
	PolicyUnbounded = "unbounded"
	PolicyLRU       = "lru"
	PolicySharded   = "sharded"
)

const (
	EnvPrefix      = "GEESQL"
	DefaultEnvFile = ".env"
	configName     = "geesql"
)

type Config struct {
	Driver       string
	DSN          string
	Dialect      string
	LogLevel     string
	EagerStreams bool
	Cache        Cache
	Interceptors Interceptors
}

type Cache struct {
	Policy   string
	Size     int
	MaxBytes int64
	Shards   int
}

type Interceptors struct {
	Logging bool
	Metrics bool
	Tracing bool
}

// Options says where to look. A zero Options reads ./geesql.{yaml,toml,json}
// and ./.env when they exist, from the OS filesystem.
type Options struct {
	Fs afero.Fs
	// File is an explicit config file; it must exist.
	File string
	// EnvFiles are explicit .env files; they must exist.
	EnvFiles []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", "")
	v.SetDefault("dsn", "")
	v.SetDefault("dialect", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("eager_streams", false)
	v.SetDefault("cache.policy", PolicyUnbounded)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.max_bytes", 8<<20)
	v.SetDefault("cache.shards", 16)
	v.SetDefault("interceptors.logging", true)
	v.SetDefault("interceptors.metrics", false)
	v.SetDefault("interceptors.tracing", false)
}

// Load reads the configuration. Precedence, highest first: environment
// (GEESQL_DSN, GEESQL_CACHE_POLICY, ...), .env files, the config file,
// defaults. The result is not validated.
func Load(opts Options) (*Config, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := loadEnvFiles(fs, opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", opts.File)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	return &Config{
		Driver:       v.GetString("driver"),
		DSN:          v.GetString("dsn"),
		Dialect:      v.GetString("dialect"),
		LogLevel:     v.GetString("log_level"),
		EagerStreams: v.GetBool("eager_streams"),
		Cache: Cache{
			Policy:   strings.ToLower(v.GetString("cache.policy")),
			Size:     v.GetInt("cache.size"),
			MaxBytes: v.GetInt64("cache.max_bytes"),
			Shards:   v.GetInt("cache.shards"),
		},
		Interceptors: Interceptors{
			Logging: v.GetBool("interceptors.logging"),
			Metrics: v.GetBool("interceptors.metrics"),
			Tracing: v.GetBool("interceptors.tracing"),
		},
	}, nil
}

// loadEnvFiles exports the entries of the given .env files into the
// process environment. Variables already set are left alone. With no
// files, ./.env is read if present.
func loadEnvFiles(fs afero.Fs, files []string) error {
	if len(files) == 0 {
		if _, err := fs.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		files = []string{DefaultEnvFile}
	}
	for _, name := range files {
		f, err := fs.Open(name)
		if err != nil {
			return errors.Wrapf(err, "open env file %s", name)
		}
		env, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "parse env file %s", name)
		}
		for k, val := range env {
			if _, ok := os.LookupEnv(k); ok {
				continue
			}
			if err := os.Setenv(k, val); err != nil {
				return errors.Wrapf(err, "set %s", k)
			}
		}
	}
	return nil
}

// DialectName is the configured dialect, falling back to the driver name.
func (c *Config) DialectName() string {
	if c.Dialect != "" {
		return c.Dialect
	}
	return c.Driver
}

func (c *Config) Validate() error {
	if c.Driver == "" {
		return errors.New("config: driver is required")
	}
	if c.DSN == "" {
		return errors.New("config: dsn is required")
	}
	if _, ok := dialect.GetDialect(c.DialectName()); !ok {
		return errors.Errorf("config: unknown dialect %q", c.DialectName())
	}
	if c.Driver == "mysql" {
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return errors.Wrap(err, "config: invalid mysql dsn")
		}
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return errors.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.Cache.Policy {
	case PolicyUnbounded, "":
	case PolicyLRU:
		if c.Cache.Size <= 0 {
			return errors.Errorf("config: cache.size must be positive, got %d", c.Cache.Size)
		}
	case PolicySharded:
		if c.Cache.Shards <= 0 {
			return errors.Errorf("config: cache.shards must be positive, got %d", c.Cache.Shards)
		}
		if c.Cache.MaxBytes <= 0 {
			return errors.Errorf("config: cache.max_bytes must be positive, got %d", c.Cache.MaxBytes)
		}
	default:
		return errors.Errorf("config: unknown cache policy %q", c.Cache.Policy)
	}
	return nil
}

// Statements builds the statement cache selected by the cache settings.
func (c *Config) Statements() (*stmtcache.Statements, error) {
	switch c.Cache.Policy {
	case PolicyUnbounded, "":
		return stmtcache.New(stmtcache.NewUnbounded()), nil
	case PolicyLRU:
		cache, err := stmtcache.NewLRU(c.Cache.Size)
		if err != nil {
			return nil, err
		}
		return stmtcache.New(cache), nil
	case PolicySharded:
		cache, err := stmtcache.NewSharded(c.Cache.Shards, c.Cache.MaxBytes)
		if err != nil {
			return nil, err
		}
		return stmtcache.New(cache), nil
	}
	return nil, errors.Errorf("config: unknown cache policy %q", c.Cache.Policy)
}
