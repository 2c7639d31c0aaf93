package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load([]string{"-token", "s3cret", "-env-file", ""}, envMap(nil), io.Discard)
	require.NoError(t, err)

	want := Default()
	want.Token = "s3cret"
	assert.Equal(t, want, cfg)
}

func TestLoad_MissingToken(t *testing.T) {
	_, err := load([]string{"-env-file", ""}, envMap(nil), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestLoad_Precedence(t *testing.T) {
	configPath := writeFile(t, "config.yaml", `
addr: ":9000"
token: from-file
log:
  level: debug
  format: json
storage:
  driver: bolt
  boltPath: /var/lib/changesync/data.bolt
sync:
  policy: last-write-wins
  maxBatchSize: 100
  publishTimeout: 2s
rateLimit:
  requests: 10
  window: 30s
tracing:
  exporter: stdout
  sampleRatio: 0.5
`)
	envFile := writeFile(t, "test.env", "CHANGESYNC_TOKEN=from-dotenv\nCHANGESYNC_PROVENANCE=pos-1\nCHANGESYNC_ADDR=:7000\n")

	env := envMap(map[string]string{
		"CHANGESYNC_ADDR":         ":7500",
		"CHANGESYNC_MAX_BATCH":    "50",
		"CHANGESYNC_TRACE_OUTPUT": "/var/log/changesync/spans.json",
	})

	cfg, err := load([]string{"-config", configPath, "-env-file", envFile, "-max-batch", "25"}, env, io.Discard)
	require.NoError(t, err)

	// Файл
	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/changesync/data.bolt", cfg.Storage.BoltPath)
	assert.Equal(t, "last-write-wins", cfg.Sync.Policy)
	assert.Equal(t, 2*time.Second, cfg.Sync.PublishTimeout)
	assert.Equal(t, RateLimitConfig{Requests: 10, Window: 30 * time.Second}, cfg.RateLimit)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	assert.Equal(t, TraceExporterStdout, cfg.Tracing.Exporter)
	assert.InDelta(t, 0.5, cfg.Tracing.SampleRatio, 1e-9)
	// .env поверх файла
	assert.Equal(t, "from-dotenv", cfg.Token)
	assert.Equal(t, "pos-1", cfg.Sync.Provenance)
	// Окружение поверх .env
	assert.Equal(t, ":7500", cfg.Addr)
	assert.Equal(t, "/var/log/changesync/spans.json", cfg.Tracing.Output)
	// Флаги поверх всего
	assert.Equal(t, 25, cfg.Sync.MaxBatchSize)
	// Не заданное нигде остается по умолчанию
	assert.Equal(t, int64(1<<20), cfg.Sync.MaxBodyBytes)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	configPath := writeFile(t, "config.yaml", "token: from-file\nstorage:\n  driver: sqlite\n  sqlitePath: /tmp/x.db\n")

	cfg, err := load([]string{"-env-file", ""}, envMap(map[string]string{"CHANGESYNC_CONFIG": configPath}), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Token)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.SQLitePath)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		env  map[string]string
	}{
		{
			name: "unknown yaml field",
			args: func(t *testing.T) []string {
				return []string{"-env-file", "", "-token", "x", "-config", writeFile(t, "c.yaml", "unknown: 1\n")}
			},
		},
		{
			name: "missing config file",
			args: func(t *testing.T) []string {
				return []string{"-env-file", "", "-token", "x", "-config", filepath.Join(t.TempDir(), "nope.yaml")}
			},
		},
		{
			name: "missing explicit env file",
			args: func(t *testing.T) []string {
				return []string{"-token", "x", "-env-file", filepath.Join(t.TempDir(), "nope.env")}
			},
		},
		{
			name: "bad env int",
			args: func(t *testing.T) []string { return []string{"-env-file", "", "-token", "x"} },
			env:  map[string]string{"CHANGESYNC_MAX_BATCH": "many"},
		},
		{
			name: "bad env duration",
			args: func(t *testing.T) []string { return []string{"-env-file", "", "-token", "x"} },
			env:  map[string]string{"CHANGESYNC_RATE_WINDOW": "soon"},
		},
		{
			name: "bad env float",
			args: func(t *testing.T) []string { return []string{"-env-file", "", "-token", "x"} },
			env:  map[string]string{"CHANGESYNC_TRACE_SAMPLE": "half"},
		},
		{
			name: "unknown flag",
			args: func(t *testing.T) []string { return []string{"-env-file", "", "-nope"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.args(t), envMap(tt.env), io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Token = "s3cret"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "unknown storage driver"},
		{name: "mongo without uri", mutate: func(c *Config) { c.Storage.Driver = DriverMongo }, wantErr: "mongoURI is required"},
		{name: "mongo with uri", mutate: func(c *Config) {
			c.Storage.Driver = DriverMongo
			c.Storage.MongoURI = "mongodb://localhost:27017"
		}},
		{name: "bolt without path", mutate: func(c *Config) {
			c.Storage.Driver = DriverBolt
			c.Storage.BoltPath = ""
		}, wantErr: "boltPath is required"},
		{name: "unknown policy", mutate: func(c *Config) { c.Sync.Policy = "client-wins" }, wantErr: "unknown conflict policy"},
		{name: "zero batch size", mutate: func(c *Config) { c.Sync.MaxBatchSize = 0 }, wantErr: "maxBatchSize"},
		{name: "zero body size", mutate: func(c *Config) { c.Sync.MaxBodyBytes = 0 }, wantErr: "maxBodyBytes"},
		{name: "rate limit disabled", mutate: func(c *Config) {
			c.RateLimit.Requests = 0
			c.RateLimit.Window = 0
		}},
		{name: "rate limit without window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "rateLimit.window"},
		{name: "pubsub half configured", mutate: func(c *Config) { c.Events.PubSubProject = "proj" }, wantErr: "set together"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "unknown log level"},
		{name: "stdout tracing", mutate: func(c *Config) { c.Tracing.Exporter = TraceExporterStdout }},
		{name: "unknown trace exporter", mutate: func(c *Config) { c.Tracing.Exporter = "jaeger" }, wantErr: "unknown trace exporter"},
		{name: "sample ratio above one", mutate: func(c *Config) { c.Tracing.SampleRatio = 1.5 }, wantErr: "sampleRatio"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "unknown log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	level, err := LogConfig{Level: "DEBUG"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = LogConfig{Level: "warn"}.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestLogConfig_NewLogger(t *testing.T) {
	jsonLogger := LogConfig{Level: "info", Format: "json"}.NewLogger(io.Discard)
	assert.IsType(t, &slog.JSONHandler{}, jsonLogger.Handler())

	textLogger := LogConfig{Level: "error", Format: "text"}.NewLogger(io.Discard)
	assert.IsType(t, &slog.TextHandler{}, textLogger.Handler())
	assert.False(t, textLogger.Enabled(t.Context(), slog.LevelWarn))
}
