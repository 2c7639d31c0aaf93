// Package config загружает настройки сервера синхронизации.
//
// Источники в порядке возрастания приоритета:
// значения по умолчанию, YAML файл, .env файл, переменные окружения CHANGESYNC_*,
// флаги командной строки.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/changesync/internal/reconcile"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "CHANGESYNC_"

// Драйверы хранилища
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMongo  = "mongo"
)

const defaultEnvFile = ".env"

// Config настройки сервера
type Config struct {
	Storage         StorageConfig   `yaml:"storage"`
	Events          EventsConfig    `yaml:"events"`
	Tracing         TracingConfig   `yaml:"tracing"`
	Log             LogConfig       `yaml:"log"`
	Addr            string          `yaml:"addr"`
	Token           string          `yaml:"token"`
	Sync            SyncConfig      `yaml:"sync"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// StorageConfig настройки хранилища записей
type StorageConfig struct {
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlitePath"`
	BoltPath      string `yaml:"boltPath"`
	MongoURI      string `yaml:"mongoURI"`
	MongoDatabase string `yaml:"mongoDatabase"`
}

// SyncConfig настройки применения батчей
type SyncConfig struct {
	Policy         string        `yaml:"policy"`
	Provenance     string        `yaml:"provenance"`
	MaxBatchSize   int           `yaml:"maxBatchSize"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
	PublishTimeout time.Duration `yaml:"publishTimeout"`
}

// RateLimitConfig лимит запросов на клиента. Requests == 0 отключает лимит.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// EventsConfig приемники событий после фиксации батча
type EventsConfig struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisChannel  string `yaml:"redisChannel"`
	PubSubProject string `yaml:"pubsubProject"`
	PubSubTopic   string `yaml:"pubsubTopic"`
	Log           bool   `yaml:"log"`
	WebSocket     bool   `yaml:"websocket"`
}

// Экспортеры трассировки
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
)

// TracingConfig настройки OpenTelemetry. При exporter none провайдер не
// устанавливается и спаны остаются no-op, если его не задал встраивающий код.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter"`    // none, stdout
	Output      string  `yaml:"output"`      // файл для stdout экспортера, пусто - stderr
	SampleRatio float64 `yaml:"sampleRatio"` // доля трассируемых батчей, 0..1
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Addr: ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Driver:        DriverSQLite,
			SQLitePath:    "changesync.db",
			BoltPath:      "changesync.bolt",
			MongoDatabase: "changesync",
		},
		Sync: SyncConfig{
			Policy:         reconcile.PolicyServerWins,
			Provenance:     "local",
			MaxBatchSize:   500,
			MaxBodyBytes:   1 << 20,
			PublishTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
		Events: EventsConfig{
			RedisChannel: "changesync.events",
			Log:          true,
			WebSocket:    true,
		},
		Tracing: TracingConfig{
			Exporter:    TraceExporterNone,
			SampleRatio: 1,
		},
		ShutdownTimeout: 15 * time.Second,
	}
}

// Load собирает конфигурацию из всех источников и проверяет ее.
// args - аргументы командной строки без имени программы.
func Load(args []string) (*Config, error) {
	return load(args, os.LookupEnv, os.Stderr)
}

func load(args []string, lookupEnv func(string) (string, bool), output io.Writer) (*Config, error) {
	// Первый проход: только пути к файлам, остальные флаги применяются последними
	var configPath, envFile string
	pre := Default()
	fs := newFlagSet(pre, &configPath, &envFile, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	env, err := readEnv(envFile, lookupEnv)
	if err != nil {
		return nil, err
	}

	if configPath == "" {
		configPath, _ = env(EnvPrefix + "CONFIG")
	}

	cfg := Default()
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	fs = newFlagSet(cfg, &configPath, &envFile, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, configPath, envFile *string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("changesync-server", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(configPath, "config", *configPath, "Path to YAML config file")
	fs.StringVar(envFile, "env-file", defaultEnvFile, "Path to .env file")

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Shared sync token")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format (text, json)")

	fs.StringVar(&cfg.Storage.Driver, "storage", cfg.Storage.Driver, "Storage driver (sqlite, bolt, mongo)")
	fs.StringVar(&cfg.Storage.SQLitePath, "sqlite-path", cfg.Storage.SQLitePath, "SQLite database path")
	fs.StringVar(&cfg.Storage.BoltPath, "bolt-path", cfg.Storage.BoltPath, "BoltDB database path")
	fs.StringVar(&cfg.Storage.MongoURI, "mongo-uri", cfg.Storage.MongoURI, "MongoDB connection URI")
	fs.StringVar(&cfg.Storage.MongoDatabase, "mongo-db", cfg.Storage.MongoDatabase, "MongoDB database name")

	fs.StringVar(&cfg.Sync.Policy, "policy", cfg.Sync.Policy, "Conflict policy (server-wins, last-write-wins)")
	fs.StringVar(&cfg.Sync.Provenance, "provenance", cfg.Sync.Provenance, "UpdatedBy value for written records")
	fs.IntVar(&cfg.Sync.MaxBatchSize, "max-batch", cfg.Sync.MaxBatchSize, "Maximum changes per batch")
	fs.Int64Var(&cfg.Sync.MaxBodyBytes, "max-body", cfg.Sync.MaxBodyBytes, "Maximum request body size in bytes")

	fs.IntVar(&cfg.RateLimit.Requests, "rate-limit", cfg.RateLimit.Requests, "Requests per window per client (0 disables)")
	fs.DurationVar(&cfg.RateLimit.Window, "rate-window", cfg.RateLimit.Window, "Rate limit window")

	fs.StringVar(&cfg.Events.RedisAddr, "redis-addr", cfg.Events.RedisAddr, "Redis address for event publishing")
	fs.StringVar(&cfg.Events.PubSubProject, "pubsub-project", cfg.Events.PubSubProject, "Google Cloud project for Pub/Sub events")
	fs.StringVar(&cfg.Events.PubSubTopic, "pubsub-topic", cfg.Events.PubSubTopic, "Pub/Sub topic for events")

	fs.StringVar(&cfg.Tracing.Exporter, "trace-exporter", cfg.Tracing.Exporter, "Trace exporter (none, stdout)")
	fs.StringVar(&cfg.Tracing.Output, "trace-output", cfg.Tracing.Output, "File for exported spans (default stderr)")
	fs.Float64Var(&cfg.Tracing.SampleRatio, "trace-sample", cfg.Tracing.SampleRatio, "Fraction of traces to sample (0..1)")

	return fs
}

// readEnv объединяет .env файл и окружение процесса.
// Переменные окружения процесса имеют приоритет над файлом.
func readEnv(path string, lookupEnv func(string) (string, bool)) (func(string) (string, bool), error) {
	var fileEnv map[string]string
	if path != "" {
		m, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileEnv = m
		case errors.Is(err, os.ErrNotExist) && path == defaultEnvFile:
			// .env необязателен
		default:
			return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
	}

	return func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := env(EnvPrefix + name); ok {
			*dst = v
		}
	}

	str("ADDR", &c.Addr)
	str("TOKEN", &c.Token)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORAGE", &c.Storage.Driver)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("BOLT_PATH", &c.Storage.BoltPath)
	str("MONGO_URI", &c.Storage.MongoURI)
	str("MONGO_DB", &c.Storage.MongoDatabase)
	str("POLICY", &c.Sync.Policy)
	str("PROVENANCE", &c.Sync.Provenance)
	str("REDIS_ADDR", &c.Events.RedisAddr)
	str("REDIS_CHANNEL", &c.Events.RedisChannel)
	str("PUBSUB_PROJECT", &c.Events.PubSubProject)
	str("PUBSUB_TOPIC", &c.Events.PubSubTopic)
	str("TRACE_EXPORTER", &c.Tracing.Exporter)
	str("TRACE_OUTPUT", &c.Tracing.Output)

	var errs []error
	parse := func(name string, fn func(string) error) {
		if v, ok := env(EnvPrefix + name); ok {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err))
			}
		}
	}

	parse("MAX_BATCH", func(v string) (err error) {
		c.Sync.MaxBatchSize, err = strconv.Atoi(v)
		return err
	})
	parse("MAX_BODY", func(v string) (err error) {
		c.Sync.MaxBodyBytes, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	parse("PUBLISH_TIMEOUT", func(v string) (err error) {
		c.Sync.PublishTimeout, err = time.ParseDuration(v)
		return err
	})
	parse("RATE_LIMIT", func(v string) (err error) {
		c.RateLimit.Requests, err = strconv.Atoi(v)
		return err
	})
	parse("RATE_WINDOW", func(v string) (err error) {
		c.RateLimit.Window, err = time.ParseDuration(v)
		return err
	})
	parse("SHUTDOWN_TIMEOUT", func(v string) (err error) {
		c.ShutdownTimeout, err = time.ParseDuration(v)
		return err
	})
	parse("EVENTS_LOG", func(v string) (err error) {
		c.Events.Log, err = strconv.ParseBool(v)
		return err
	})
	parse("TRACE_SAMPLE", func(v string) (err error) {
		c.Tracing.SampleRatio, err = strconv.ParseFloat(v, 64)
		return err
	})
	parse("EVENTS_WEBSOCKET", func(v string) (err error) {
		c.Events.WebSocket, err = strconv.ParseBool(v)
		return err
	})

	return errors.Join(errs...)
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if c.Token == "" {
		errs = append(errs, errors.New("token is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlitePath is required for sqlite driver"))
		}
	case DriverBolt:
		if c.Storage.BoltPath == "" {
			errs = append(errs, errors.New("storage.boltPath is required for bolt driver"))
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("storage.mongoURI is required for mongo driver"))
		}
		if c.Storage.MongoDatabase == "" {
			errs = append(errs, errors.New("storage.mongoDatabase is required for mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if _, err := reconcile.ParsePolicy(c.Sync.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Sync.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("sync.maxBatchSize must be positive"))
	}
	if c.Sync.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("sync.maxBodyBytes must be positive"))
	}
	if c.Sync.PublishTimeout <= 0 {
		errs = append(errs, errors.New("sync.publishTimeout must be positive"))
	}

	if c.RateLimit.Requests < 0 {
		errs = append(errs, errors.New("rateLimit.requests must not be negative"))
	}
	if c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rateLimit.window must be positive"))
	}

	if (c.Events.PubSubProject == "") != (c.Events.PubSubTopic == "") {
		errs = append(errs, errors.New("events.pubsubProject and events.pubsubTopic must be set together"))
	}

	switch c.Tracing.Exporter {
	case TraceExporterNone, TraceExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sampleRatio must be between 0 and 1"))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel переводит уровень логирования в slog.Level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

// NewLogger создает логгер по настройкам
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
