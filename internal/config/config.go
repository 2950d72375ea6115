// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

// Package config builds the immutable runtime configuration for GeoElevate.
//
// Values are layered with koanf: flag defaults, then an optional YAML file,
// then flags the operator set explicitly, then a small set of environment
// variables for secrets and connection strings.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default values.
const (
	DefaultHTTPAddr    = ":8000"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultTokenTTL    = 7 * 24 * time.Hour
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"

	DefaultArgon2Time      = 1
	DefaultArgon2MemoryKiB = 64 * 1024
	DefaultArgon2Threads   = 4

	DefaultLoginMaxFailures = 7
	DefaultLoginWindow      = 15 * time.Minute

	// MinSecretKeyLength applies outside dev mode.
	MinSecretKeyLength = 16
)

// DefaultCORSOrigins are the web client dev servers.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Environment variables that override file and flag values.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvSecretKey   = "GEOELEVATE_SECRET_KEY"
	EnvRedisURL    = "REDIS_URL"
)

// Argon2 holds the password hashing cost, fixed per deployment.
type Argon2 struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// Login holds failed-login throttling settings.
type Login struct {
	MaxFailures int           `koanf:"max_failures"`
	Window      time.Duration `koanf:"window"`
}

// Config is the process configuration. It is built once by Load and passed
// by value to the components that need it.
type Config struct {
	HTTPAddr    string        `koanf:"http_addr"`
	MetricsAddr string        `koanf:"metrics_addr"`
	DatabaseURL string        `koanf:"database_url"`
	SecretKey   string        `koanf:"secret_key"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	Argon2      Argon2        `koanf:"argon2"`
	CORSOrigins []string      `koanf:"cors_origins"`
	LogFormat   string        `koanf:"log_format"`
	LogLevel    string        `koanf:"log_level"`
	RedisURL    string        `koanf:"redis_url"`
	Login       Login         `koanf:"login"`
	AutoMigrate bool          `koanf:"auto_migrate"`
	Dev         bool          `koanf:"dev"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":          "http_addr",
	"metrics-addr":       "metrics_addr",
	"database-url":       "database_url",
	"secret-key":         "secret_key",
	"token-ttl":          "token_ttl",
	"argon2-time":        "argon2.time",
	"argon2-memory-kib":  "argon2.memory_kib",
	"argon2-threads":     "argon2.threads",
	"cors-origins":       "cors_origins",
	"log-format":         "log_format",
	"log-level":          "log_level",
	"redis-url":          "redis_url",
	"login-max-failures": "login.max_failures",
	"login-window":       "login.window",
	"auto-migrate":       "auto_migrate",
	"dev":                "dev",
}

// RegisterFlags adds every configuration flag to fs. Flag defaults are the
// lowest-precedence layer in Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL (env "+EnvDatabaseURL+")")
	fs.String("secret-key", "", "token signing secret (env "+EnvSecretKey+")")
	fs.Duration("token-ttl", DefaultTokenTTL, "session token lifetime")
	fs.Uint32("argon2-time", DefaultArgon2Time, "argon2id iterations")
	fs.Uint32("argon2-memory-kib", DefaultArgon2MemoryKiB, "argon2id memory in KiB")
	fs.Uint8("argon2-threads", DefaultArgon2Threads, "argon2id parallelism")
	fs.StringSlice("cors-origins", DefaultCORSOrigins, "allowed CORS origins")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("redis-url", "", "Redis URL for login throttling (env "+EnvRedisURL+", empty = disabled)")
	fs.Int("login-max-failures", DefaultLoginMaxFailures, "failed logins allowed per window")
	fs.Duration("login-window", DefaultLoginWindow, "failed login counting window")
	fs.Bool("auto-migrate", false, "apply pending database migrations on startup")
	fs.Bool("dev", false, "development mode (relaxes secret key length)")
}

// Load builds a Config from fs, the optional YAML file at path and the
// environment lookup getenv. A nil getenv uses os.Getenv.
func Load(fs *pflag.FlagSet, path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_LOAD_FAILED").Wrap(err)
		}
	}

	for env, key := range map[string]string{
		EnvDatabaseURL: "database_url",
		EnvSecretKey:   "secret_key",
		EnvRedisURL:    "redis_url",
	} {
		if v := strings.TrimSpace(getenv(env)); v != "" {
			if err := k.Set(key, v); err != nil {
				return Config{}, oops.Code("CONFIG_ENV_LOAD_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	cfg := Default()
	// Slices decode in place, so start empty and refill if nothing set it.
	cfg.CORSOrigins = nil
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = append([]string(nil), DefaultCORSOrigins...)
	}

	return cfg, nil
}

// Default returns a Config populated with built-in defaults. It has no
// database URL or secret and so does not pass Validate on its own.
func Default() Config {
	return Config{
		HTTPAddr:    DefaultHTTPAddr,
		MetricsAddr: DefaultMetricsAddr,
		TokenTTL:    DefaultTokenTTL,
		Argon2: Argon2{
			Time:      DefaultArgon2Time,
			MemoryKiB: DefaultArgon2MemoryKiB,
			Threads:   DefaultArgon2Threads,
		},
		CORSOrigins: append([]string(nil), DefaultCORSOrigins...),
		LogFormat:   DefaultLogFormat,
		LogLevel:    DefaultLogLevel,
		Login: Login{
			MaxFailures: DefaultLoginMaxFailures,
			Window:      DefaultLoginWindow,
		},
	}
}

// Validate checks that the configuration is usable by the API server.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database url is required (set %s)", EnvDatabaseURL)
	}
	return c.validateRuntime()
}

func (c Config) validateRuntime() error {
	if c.SecretKey == "" {
		return oops.Code("CONFIG_INVALID").Errorf("secret key is required (set %s)", EnvSecretKey)
	}
	if !c.Dev && len(c.SecretKey) < MinSecretKeyLength {
		return oops.Code("CONFIG_INVALID").
			With("min", MinSecretKeyLength).
			Errorf("secret key must be at least %d bytes", MinSecretKeyLength)
	}
	if c.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("token_ttl", c.TokenTTL).Errorf("token ttl must be positive")
	}
	if c.Argon2.Time == 0 || c.Argon2.MemoryKiB < 8*uint32(c.Argon2.Threads) || c.Argon2.Threads == 0 {
		return oops.Code("CONFIG_INVALID").
			With("time", c.Argon2.Time).
			With("memory_kib", c.Argon2.MemoryKiB).
			With("threads", c.Argon2.Threads).
			Errorf("invalid argon2 cost parameters")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.RedisURL != "" && (c.Login.MaxFailures <= 0 || c.Login.Window <= 0) {
		return oops.Code("CONFIG_INVALID").Errorf("login throttling needs positive max failures and window")
	}
	return nil
}
