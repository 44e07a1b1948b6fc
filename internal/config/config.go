// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

// Package config loads MedTrack configuration from built-in defaults, an
// optional YAML file and command-line flags, in increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/medtrack/medtrack/internal/logging"
	"github.com/medtrack/medtrack/internal/store"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Notification channel names accepted in notify.channels.
const (
	ChannelLog  = "log"
	ChannelSMTP = "smtp"
	ChannelSNS  = "sns"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server" yaml:"server"`
	Storage StorageConfig `koanf:"storage" yaml:"storage"`
	Session SessionConfig `koanf:"session" yaml:"session"`
	Auth    AuthConfig    `koanf:"auth" yaml:"auth"`
	Notify  NotifyConfig  `koanf:"notify" yaml:"notify"`
	Log     LogConfig     `koanf:"log" yaml:"log"`
	Metrics MetricsConfig `koanf:"metrics" yaml:"metrics"`
}

// ServerConfig configures the public HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr" jsonschema:"description=API listen address"`
	AppName         string        `koanf:"app_name" yaml:"app_name" jsonschema:"description=Product name used in notifications"`
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	SecureCookies   bool          `koanf:"secure_cookies" yaml:"secure_cookies" jsonschema:"description=Mark session cookies Secure (HTTPS only)"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend     string `koanf:"backend" yaml:"backend" jsonschema:"enum=memory,enum=postgres"`
	URL         string `koanf:"url" yaml:"url" jsonschema:"description=PostgreSQL URL; DATABASE_URL is used when empty"`
	AutoMigrate bool   `koanf:"auto_migrate" yaml:"auto_migrate" jsonschema:"description=Apply pending migrations on serve"`
}

// SessionConfig configures session lifetime.
type SessionConfig struct {
	TTL time.Duration `koanf:"ttl" yaml:"ttl" jsonschema:"description=Absolute session lifetime"`
}

// AuthConfig configures credential checks and login throttling.
type AuthConfig struct {
	LockoutThreshold int           `koanf:"lockout_threshold" yaml:"lockout_threshold" jsonschema:"minimum=1"`
	LockoutWindow    time.Duration `koanf:"lockout_window" yaml:"lockout_window"`
	Argon2           Argon2Config  `koanf:"argon2" yaml:"argon2"`
}

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Time      uint32 `koanf:"time" yaml:"time" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" yaml:"memory_kib" jsonschema:"minimum=8"`
	Threads   uint8  `koanf:"threads" yaml:"threads" jsonschema:"minimum=1"`
}

// NotifyConfig selects and configures notification channels.
type NotifyConfig struct {
	Channels []string      `koanf:"channels" yaml:"channels" jsonschema:"enum=log,enum=smtp,enum=sns"`
	Timeout  time.Duration `koanf:"timeout" yaml:"timeout"`
	Attempts int           `koanf:"attempts" yaml:"attempts" jsonschema:"minimum=1"`
	SMTP     SMTPConfig    `koanf:"smtp" yaml:"smtp"`
	SNS      SNSConfig     `koanf:"sns" yaml:"sns"`
}

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port" jsonschema:"minimum=1,maximum=65535"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	From     string `koanf:"from" yaml:"from"`
}

// SNSConfig configures the AWS SNS channel. Empty credentials fall back to
// the default AWS credential chain.
type SNSConfig struct {
	Region          string `koanf:"region" yaml:"region"`
	TopicARN        string `koanf:"topic_arn" yaml:"topic_arn"`
	Endpoint        string `koanf:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key" yaml:"secret_access_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr" jsonschema:"description=Metrics and health probe address; empty disables"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":            "server.addr",
	"storage-backend": "storage.backend",
	"database-url":    "storage.url",
	"auto-migrate":    "storage.auto_migrate",
	"session-ttl":     "session.ttl",
	"log-format":      "log.format",
	"log-level":       "log.level",
	"metrics-addr":    "metrics.addr",
}

// FlagKey returns the config key bound to a flag name, or "".
func FlagKey(flag string) string {
	return flagKeys[flag]
}

// LoadOptions tells Load where to read configuration from.
type LoadOptions struct {
	// File is an optional YAML config file.
	File string
	// Flags are applied last. Only flags named in FlagKey are read, and only
	// when set explicitly or when no lower layer supplies the key.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds and validates a Config.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	k := koanf.New(".")
	if err := k.Load(bytesProvider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("file", opts.File).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := FlagKey(f.Name)
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if cfg.Storage.URL == "" {
		cfg.Storage.URL = opts.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return Load(LoadOptions{Getenv: func(string) string { return "" }})
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr", "server.addr is required")
	}
	timeouts := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
	}
	for _, tt := range timeouts {
		if tt.value <= 0 {
			return invalid(tt.field, "%s must be positive", tt.field)
		}
	}
	switch c.Storage.Backend {
	case store.BackendMemory:
	case store.BackendPostgres:
		if c.Storage.URL == "" {
			return invalid("storage.url", "storage.url or DATABASE_URL is required for the postgres backend")
		}
	default:
		return invalid("storage.backend", "storage.backend must be %q or %q, got %q",
			store.BackendMemory, store.BackendPostgres, c.Storage.Backend)
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "session.ttl must be positive")
	}
	if c.Auth.LockoutThreshold < 1 {
		return invalid("auth.lockout_threshold", "auth.lockout_threshold must be at least 1")
	}
	if c.Auth.LockoutWindow <= 0 {
		return invalid("auth.lockout_window", "auth.lockout_window must be positive")
	}
	if c.Auth.Argon2.Time == 0 || c.Auth.Argon2.Threads == 0 || c.Auth.Argon2.MemoryKiB < 8 {
		return invalid("auth.argon2", "argon2 time and threads must be positive and memory_kib at least 8")
	}
	if !logging.ValidFormat(c.Log.Format) {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		// Not wrapped: the deepest oops code is the one reported.
		return invalid("log.level", "log.level: %v", err)
	}
	return c.Notify.validate()
}

func (n NotifyConfig) validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	if n.Timeout <= 0 {
		return invalid("notify.timeout", "notify.timeout must be positive")
	}
	if n.Attempts < 1 {
		return invalid("notify.attempts", "notify.attempts must be at least 1")
	}
	for _, ch := range n.Channels {
		switch ch {
		case ChannelLog:
		case ChannelSMTP:
			if n.SMTP.Host == "" || n.SMTP.From == "" {
				return invalid("notify.smtp", "smtp channel requires notify.smtp.host and notify.smtp.from")
			}
		case ChannelSNS:
			if n.SNS.Region == "" || n.SNS.TopicARN == "" {
				return invalid("notify.sns", "sns channel requires notify.sns.region and notify.sns.topic_arn")
			}
		default:
			return invalid("notify.channels", "unknown notification channel %q", ch)
		}
	}
	return nil
}

// HasChannel reports whether name is an enabled notification channel.
func (n NotifyConfig) HasChannel(name string) bool {
	return slices.Contains(n.Channels, name)
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Storage.URL = redactURL(c.Storage.URL)
	c.Notify.SMTP.Password = mask(c.Notify.SMTP.Password)
	c.Notify.SNS.SecretAccessKey = mask(c.Notify.SNS.SecretAccessKey)
	c.Notify.Channels = slices.Clone(c.Notify.Channels)
	return c
}

// bytesProvider is a koanf provider over an in-memory YAML document.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) {
	return b, nil
}

func (b bytesProvider) Read() (map[string]any, error) {
	return nil, errors.New("bytes provider does not support Read")
}
