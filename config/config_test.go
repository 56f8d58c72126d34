package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bxshcn/geesql/namedsql"
	"github.com/bxshcn/geesql/stmtcache"
)

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
}

// unsetAfter removes variables a .env file may export into the process.
func unsetAfter(t *testing.T, keys ...string) {
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Driver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, PolicyUnbounded, cfg.Cache.Policy)
	assert.Equal(t, 1024, cfg.Cache.Size)
	assert.Equal(t, int64(8<<20), cfg.Cache.MaxBytes)
	assert.True(t, cfg.Interceptors.Logging)
	assert.False(t, cfg.Interceptors.Metrics)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/geesql.yaml", `
driver: sqlite3
dsn: /tmp/gee.db
log_level: debug
eager_streams: true
cache:
  policy: LRU
  size: 10
interceptors:
  metrics: true
`)
	cfg, err := Load(Options{Fs: fs, File: "/etc/geesql.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "/tmp/gee.db", cfg.DSN)
	assert.Equal(t, "sqlite3", cfg.DialectName())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.EagerStreams)
	assert.Equal(t, PolicyLRU, cfg.Cache.Policy)
	assert.Equal(t, 10, cfg.Cache.Size)
	assert.True(t, cfg.Interceptors.Metrics)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(Options{Fs: afero.NewMemMapFs(), File: "/nope.yaml"})
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/geesql.toml", "driver = \"sqlite3\"\ndsn = \"a.db\"\n[cache]\npolicy = \"lru\"\n")
	t.Setenv("GEESQL_DSN", "b.db")
	t.Setenv("GEESQL_CACHE_POLICY", "sharded")

	cfg, err := Load(Options{Fs: fs, File: "/etc/geesql.toml"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "b.db", cfg.DSN)
	assert.Equal(t, PolicySharded, cfg.Cache.Policy)
}

func TestEnvFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/app/.env", "GEESQL_DRIVER=postgres\nGEESQL_DSN=from-file\nGEESQL_DIALECT=pgx\n")
	unsetAfter(t, "GEESQL_DRIVER", "GEESQL_DIALECT")
	t.Setenv("GEESQL_DSN", "from-env")

	cfg, err := Load(Options{Fs: fs, EnvFiles: []string{"/app/.env"}})
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "from-env", cfg.DSN, "existing environment wins")
	assert.Equal(t, "pgx", cfg.DialectName())
}

func TestDefaultEnvFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, DefaultEnvFile, "GEESQL_LOG_LEVEL=error\n")
	unsetAfter(t, "GEESQL_LOG_LEVEL")

	cfg, err := Load(Options{Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestMissingExplicitEnvFile(t *testing.T) {
	_, err := Load(Options{Fs: afero.NewMemMapFs(), EnvFiles: []string{"/missing.env"}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Driver: "sqlite3", DSN: "x.db", LogLevel: "info", Cache: Cache{Policy: PolicyUnbounded}}
	}
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"no driver", func(c *Config) { c.Driver = "" }, false},
		{"no dsn", func(c *Config) { c.DSN = "" }, false},
		{"unknown dialect", func(c *Config) { c.Dialect = "oracle" }, false},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"unknown policy", func(c *Config) { c.Cache.Policy = "fifo" }, false},
		{"lru without size", func(c *Config) { c.Cache.Policy = PolicyLRU }, false},
		{"lru", func(c *Config) { c.Cache = Cache{Policy: PolicyLRU, Size: 4} }, true},
		{"sharded without bytes", func(c *Config) { c.Cache = Cache{Policy: PolicySharded, Shards: 2} }, false},
		{"sharded", func(c *Config) { c.Cache = Cache{Policy: PolicySharded, Shards: 2, MaxBytes: 1024} }, true},
		{"mysql dsn", func(c *Config) { c.Driver, c.DSN = "mysql", "user:pw@tcp(localhost:3306)/db" }, true},
		{"bad mysql dsn", func(c *Config) { c.Driver, c.DSN = "mysql", "user:pw@tcp(localhost:3306" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	cfg := &Config{Cache: Cache{Policy: PolicyLRU, Size: 1}}
	statements, err := cfg.Statements()
	require.NoError(t, err)

	q, err := statements.GetOrCompute(stmtcache.NewKey("a", nil, "", false, false, nil), func() (*namedsql.Query, error) {
		return &namedsql.Query{SQL: "a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", q.SQL)
	_, _ = statements.GetOrCompute(stmtcache.NewKey("b", nil, "", false, false, nil), func() (*namedsql.Query, error) {
		return &namedsql.Query{SQL: "b"}, nil
	})
	assert.Equal(t, 1, statements.Cache().Len())

	cfg.Cache = Cache{Policy: PolicySharded, Shards: 4, MaxBytes: 1 << 10}
	_, err = cfg.Statements()
	require.NoError(t, err)

	cfg.Cache.Policy = "fifo"
	_, err = cfg.Statements()
	assert.Error(t, err)
}
