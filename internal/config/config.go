// Package config loads bookhook settings from an optional YAML file and
// BOOKHOOK_* environment variables. Environment variables always win.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"bookhook/internal/security"
	"bookhook/pkg/cmdutil"
	"bookhook/pkg/fileutil"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFileName            = "bookhook.yaml"
	DefaultHost                = "127.0.0.1"
	DefaultPort                = 5000
	DefaultWebhookPath         = "/webhook"
	DefaultMaxSkewSeconds      = 300
	DefaultStorePath           = "./bookings.db"
	DefaultDispatchTimeout     = 10
	DefaultLogFile             = "./bookhook.log"
	DefaultLogLevel            = "info"
	DefaultCommandTimeout      = 30
	DefaultNotifyRatePerMinute = 30
	DefaultNotifyBurst         = 5
	DefaultSMTPPort            = 587
)

// Secret is a string that never appears in logs or formatted output.
// Use Value to read it.
type Secret string

func (s Secret) Value() string { return string(s) }

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

// MarshalText keeps the secret out of JSON logs when it is nested in a struct
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config is the root configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Store    StoreConfig    `yaml:"store"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
	Notify   NotifyConfig   `yaml:"notify"`

	// Source is the file the config was read from, empty when env-only
	Source string `yaml:"-"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WebhookConfig struct {
	Path   string `yaml:"path"`
	Secret Secret `yaml:"secret"`

	// MaxSkewSeconds of 0 uses the default; a negative value disables the check
	MaxSkewSeconds int `yaml:"max_skew_seconds"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type DispatchConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type NotifyConfig struct {
	Commands              []interface{} `yaml:"commands"` // string or list
	CommandTimeoutSeconds int           `yaml:"command_timeout_seconds"`
	RatePerMinute         int           `yaml:"rate_per_minute"`
	Burst                 int           `yaml:"burst"`
	Mail                  MailConfig    `yaml:"mail"`
}

type MailConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password Secret   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Enabled reports whether booking emails should be sent
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

// Load reads configPath (or the first bookhook.yaml found in the default
// locations when configPath is empty), applies defaults, then applies
// environment overrides. A missing file is only an error when configPath was
// given explicitly. Load does not validate; call Validate.
func Load(configPath string) (*Config, error) {
	var cfg Config

	path := configPath
	if path == "" {
		path = fileutil.FindConfigOptional(DefaultFileName)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		cfg.Source = path
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = DefaultWebhookPath
	}
	if cfg.Webhook.MaxSkewSeconds == 0 {
		cfg.Webhook.MaxSkewSeconds = DefaultMaxSkewSeconds
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Dispatch.TimeoutSeconds == 0 {
		cfg.Dispatch.TimeoutSeconds = DefaultDispatchTimeout
	}
	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogFile
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Notify.CommandTimeoutSeconds == 0 {
		cfg.Notify.CommandTimeoutSeconds = DefaultCommandTimeout
	}
	if cfg.Notify.RatePerMinute == 0 {
		cfg.Notify.RatePerMinute = DefaultNotifyRatePerMinute
	}
	if cfg.Notify.Burst == 0 {
		cfg.Notify.Burst = DefaultNotifyBurst
	}
	if cfg.Notify.Mail.Port == 0 {
		cfg.Notify.Mail.Port = DefaultSMTPPort
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BOOKHOOK_HOST"); v != "" {
		cfg.Server.Host = v
	}
	envInt("BOOKHOOK_PORT", &cfg.Server.Port)

	if v := os.Getenv("BOOKHOOK_WEBHOOK_PATH"); v != "" {
		cfg.Webhook.Path = v
	}
	if v := os.Getenv("BOOKHOOK_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = Secret(v)
	}
	envInt("BOOKHOOK_MAX_SKEW_SECONDS", &cfg.Webhook.MaxSkewSeconds)

	if v := os.Getenv("BOOKHOOK_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	envInt("BOOKHOOK_DISPATCH_TIMEOUT_SECONDS", &cfg.Dispatch.TimeoutSeconds)

	if v := os.Getenv("BOOKHOOK_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("BOOKHOOK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("BOOKHOOK_SMTP_HOST"); v != "" {
		cfg.Notify.Mail.Host = v
	}
	envInt("BOOKHOOK_SMTP_PORT", &cfg.Notify.Mail.Port)
	if v := os.Getenv("BOOKHOOK_SMTP_USERNAME"); v != "" {
		cfg.Notify.Mail.Username = v
	}
	if v := os.Getenv("BOOKHOOK_SMTP_PASSWORD"); v != "" {
		cfg.Notify.Mail.Password = Secret(v)
	}
	if v := os.Getenv("BOOKHOOK_MAIL_FROM"); v != "" {
		cfg.Notify.Mail.From = v
	}
	if v := os.Getenv("BOOKHOOK_MAIL_TO"); v != "" {
		cfg.Notify.Mail.To = splitList(v)
	}
}

// envInt overwrites *dst when key holds an integer; other values are ignored
func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate returns one message per problem, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("  - server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if !strings.HasPrefix(c.Webhook.Path, "/") {
		errors = append(errors, fmt.Sprintf("  - webhook.path must start with '/', got '%s'", c.Webhook.Path))
	}

	if c.Webhook.Secret == "" {
		errors = append(errors, "  - webhook.secret is required (or set BOOKHOOK_WEBHOOK_SECRET)")
	} else if err := security.ValidateSecret(c.Webhook.Secret.Value()); err != nil {
		errors = append(errors, fmt.Sprintf("  - webhook.secret: %v", err))
	}

	if c.Dispatch.TimeoutSeconds < 0 {
		errors = append(errors, fmt.Sprintf("  - dispatch.timeout_seconds must be a positive integer, got %d", c.Dispatch.TimeoutSeconds))
	}

	if _, err := c.LogLevel(); err != nil {
		errors = append(errors, fmt.Sprintf("  - log.level: %v", err))
	}

	if c.Notify.CommandTimeoutSeconds < 0 {
		errors = append(errors, fmt.Sprintf("  - notify.command_timeout_seconds must be a positive integer, got %d", c.Notify.CommandTimeoutSeconds))
	}
	if c.Notify.RatePerMinute < 0 {
		errors = append(errors, fmt.Sprintf("  - notify.rate_per_minute must be a positive integer, got %d", c.Notify.RatePerMinute))
	}
	if _, err := cmdutil.ParseCommands(c.Notify.Commands); err != nil {
		errors = append(errors, fmt.Sprintf("  - notify.commands: %v", err))
	}

	if c.Notify.Mail.Enabled() {
		if c.Notify.Mail.From == "" {
			errors = append(errors, "  - notify.mail.from is required when notify.mail.host is set")
		}
		if len(c.Notify.Mail.To) == 0 {
			errors = append(errors, "  - notify.mail.to needs at least one recipient when notify.mail.host is set")
		}
	}

	return errors
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxSkew returns the allowed signature age; zero means unchecked
func (c *Config) MaxSkew() time.Duration {
	if c.Webhook.MaxSkewSeconds < 0 {
		return 0
	}
	return time.Duration(c.Webhook.MaxSkewSeconds) * time.Second
}

func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.Dispatch.TimeoutSeconds) * time.Second
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Notify.CommandTimeoutSeconds) * time.Second
}

// LogLevel parses log.level ("debug", "info", "warn", "error")
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level '%s'", c.Log.Level)
	}
	return level, nil
}
