// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package config loads the service configuration from a YAML file and
// command-line flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/redinnova/innovanet/internal/schema"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Notify drivers.
const (
	NotifyLog  = "log"
	NotifyAMQP = "amqp"
)

// Environment variables that fill their key when neither the file nor a flag sets it.
const (
	DatabaseURLEnv = "DATABASE_URL"
	JWTSecretEnv   = "INNOVANET_JWT_SECRET"
)

// Config is the complete service configuration.
type Config struct {
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Store    StoreConfig    `koanf:"store" json:"store,omitempty"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty"`
	Notify   NotifyConfig   `koanf:"notify" json:"notify,omitempty"`
	Seed     SeedConfig     `koanf:"seed" json:"seed,omitempty"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr         string        `koanf:"addr" json:"addr,omitempty"`
	ReadTimeout  time.Duration `koanf:"read_timeout" json:"read_timeout,omitempty" jsonschema:"type=string,description=Go duration such as 10s"`
	WriteTimeout time.Duration `koanf:"write_timeout" json:"write_timeout,omitempty" jsonschema:"type=string,description=Go duration such as 10s"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL            string        `koanf:"url" json:"url,omitempty"`
	AutoMigrate    bool          `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty" jsonschema:"type=string,description=How long to retry the first connection"`
}

// StoreConfig selects where accounts live.
type StoreConfig struct {
	Driver string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory"`
}

// AuthConfig holds token and credential settings.
type AuthConfig struct {
	JWTSecret           string        `koanf:"jwt_secret" json:"jwt_secret,omitempty"`
	TokenTTL            time.Duration `koanf:"token_ttl" json:"token_ttl,omitempty" jsonschema:"type=string"`
	RecoveryTTL         time.Duration `koanf:"recovery_ttl" json:"recovery_ttl,omitempty" jsonschema:"type=string"`
	RecoveryMaxAttempts int           `koanf:"recovery_max_attempts" json:"recovery_max_attempts,omitempty" jsonschema:"minimum=1"`
	Argon2              Argon2Config  `koanf:"argon2" json:"argon2,omitempty"`
}

// Argon2Config holds password hashing cost parameters.
type Argon2Config struct {
	Time    uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1"`
	Memory  uint32 `koanf:"memory" json:"memory,omitempty" jsonschema:"minimum=1024"`
	Threads uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1"`
}

// NotifyConfig selects how recovery codes are delivered.
type NotifyConfig struct {
	Driver string     `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=log,enum=amqp"`
	AMQP   AMQPConfig `koanf:"amqp" json:"amqp,omitempty"`
}

// AMQPConfig locates the recovery mail queue.
type AMQPConfig struct {
	URL   string `koanf:"url" json:"url,omitempty"`
	Queue string `koanf:"queue" json:"queue,omitempty"`
}

// SeedConfig points at the seed accounts file. Empty means built-in defaults.
type SeedConfig struct {
	File string `koanf:"file" json:"file,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log:     LogConfig{Format: "json", Level: "info"},
		HTTP:    HTTPConfig{Addr: ":8080", ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
		Metrics: MetricsConfig{Addr: ":9100"},
		Database: DatabaseConfig{
			ConnectTimeout: 30 * time.Second,
		},
		Store: StoreConfig{Driver: StorePostgres},
		Auth: AuthConfig{
			TokenTTL:            12 * time.Hour,
			RecoveryTTL:         15 * time.Minute,
			RecoveryMaxAttempts: 3,
			Argon2:              Argon2Config{Time: 1, Memory: 64 * 1024, Threads: 4},
		},
		Notify: NotifyConfig{
			Driver: NotifyLog,
			AMQP:   AMQPConfig{Queue: "innovanet.recovery_codes"},
		},
	}
}

// Document is the schema of the configuration file.
var Document = schema.Document{
	ID:          "https://redinnovacionfp.es/schemas/config.schema.json",
	Title:       "InnovaNet configuration",
	Description: "Schema for the innovanet service configuration file",
	Type:        &Config{},
}

var validator = schema.NewValidator(Document)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"addr":         "http.addr",
	"metrics-addr": "metrics.addr",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
	"store":        "store.driver",
	"notify":       "notify.driver",
	"seed-file":    "seed.file",
}

// Load builds a Config from defaults, then the YAML file at path (if not
// empty), then flags the user explicitly set. The file is validated against
// Document before it is read. Cross-field rules are left to Validate and
// ValidateDatabase, since commands need different subsets.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	ko := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := validator.Validate(data); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := ko.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", ko, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := ko.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := ko.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").With("operation", "decode").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(DatabaseURLEnv)
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = os.Getenv(JWTSecretEnv)
	}
	return cfg, nil
}

// ValidateDatabase checks the keys needed by commands that only talk to the
// database.
func (c Config) ValidateDatabase() error {
	if err := c.validateLog(); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database url is required (or set %s)", DatabaseURLEnv)
	}
	return nil
}

func (c Config) validateLog() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("unknown log format %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// Validate checks everything the serve command needs, including the
// cross-field rules the schema cannot express.
func (c Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if err := c.validateLog(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http address is required")
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "database url is required for the postgres store (or set %s)", DatabaseURLEnv)
		}
	case StoreMemory:
	default:
		return invalid("store.driver", "unknown store driver %q", c.Store.Driver)
	}

	if len(c.Auth.JWTSecret) < 32 {
		return invalid("auth.jwt_secret", "jwt secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "token ttl must be positive")
	}
	if c.Auth.RecoveryTTL <= 0 {
		return invalid("auth.recovery_ttl", "recovery ttl must be positive")
	}
	if c.Auth.RecoveryMaxAttempts < 1 {
		return invalid("auth.recovery_max_attempts", "recovery max attempts must be at least 1")
	}

	switch c.Notify.Driver {
	case NotifyLog:
	case NotifyAMQP:
		if c.Notify.AMQP.URL == "" || c.Notify.AMQP.Queue == "" {
			return invalid("notify.amqp", "amqp url and queue are required for the amqp notifier")
		}
	default:
		return invalid("notify.driver", "unknown notify driver %q", c.Notify.Driver)
	}
	return nil
}
