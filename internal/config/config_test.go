package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validSecret = "kJ8mN2pQ5tR7vX1zB4cE6gH9jL3nP8qS2uW5yA7bD0fG3hK6"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bookhook.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
webhook:
  path: /hooks/calendly
  secret: `+validSecret+`
  max_skew_seconds: 60
store:
  path: /var/lib/bookhook/bookings.db
notify:
  commands:
    - notify-send "New booking"
    - ["logger", "-t", "bookhook"]
  mail:
    host: smtp.example.com
    from: bookings@example.com
    to: [owner@example.com]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Source != path {
		t.Errorf("Expected source %q, got %q", path, cfg.Source)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected addr 0.0.0.0:8080, got %s", cfg.Addr())
	}
	if cfg.Webhook.Path != "/hooks/calendly" {
		t.Errorf("Expected webhook path /hooks/calendly, got %s", cfg.Webhook.Path)
	}
	if cfg.Webhook.Secret.Value() != validSecret {
		t.Error("Expected secret to be loaded from file")
	}
	if cfg.MaxSkew() != 60*time.Second {
		t.Errorf("Expected max skew 60s, got %v", cfg.MaxSkew())
	}
	if len(cfg.Notify.Commands) != 2 {
		t.Errorf("Expected 2 notify commands, got %d", len(cfg.Notify.Commands))
	}
	if cfg.Notify.Mail.Port != DefaultSMTPPort {
		t.Errorf("Expected default SMTP port %d, got %d", DefaultSMTPPort, cfg.Notify.Mail.Port)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("Expected valid config, got errors: %v", errs)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "{}")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Host != DefaultHost || cfg.Server.Port != DefaultPort {
		t.Errorf("Expected default listen address, got %s", cfg.Addr())
	}
	if cfg.Webhook.Path != DefaultWebhookPath {
		t.Errorf("Expected default path, got %s", cfg.Webhook.Path)
	}
	if cfg.MaxSkew() != 300*time.Second {
		t.Errorf("Expected default max skew 300s, got %v", cfg.MaxSkew())
	}
	if cfg.DispatchTimeout() != 10*time.Second {
		t.Errorf("Expected default dispatch timeout 10s, got %v", cfg.DispatchTimeout())
	}
	if cfg.Store.Path != DefaultStorePath {
		t.Errorf("Expected default store path, got %s", cfg.Store.Path)
	}
	if cfg.Notify.Mail.Enabled() {
		t.Error("Expected mail to be disabled by default")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
webhook:
  secret: from-file-secret-value-that-is-long-enough
`)

	t.Setenv("BOOKHOOK_PORT", "9090")
	t.Setenv("BOOKHOOK_WEBHOOK_SECRET", validSecret)
	t.Setenv("BOOKHOOK_MAX_SKEW_SECONDS", "-1")
	t.Setenv("BOOKHOOK_MAIL_TO", "a@example.com, b@example.com,")
	t.Setenv("BOOKHOOK_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Webhook.Secret.Value() != validSecret {
		t.Error("Expected env secret to win over file secret")
	}
	if cfg.MaxSkew() != 0 {
		t.Errorf("Expected negative skew to disable the check, got %v", cfg.MaxSkew())
	}
	if len(cfg.Notify.Mail.To) != 2 || cfg.Notify.Mail.To[1] != "b@example.com" {
		t.Errorf("Expected 2 trimmed recipients, got %v", cfg.Notify.Mail.To)
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", level)
	}
}

func TestLoad_InvalidEnvIntIgnored(t *testing.T) {
	t.Setenv("BOOKHOOK_PORT", "not-a-port")

	cfg, err := Load(writeConfig(t, "server:\n  port: 7000\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Expected file port to survive a bad env value, got %d", cfg.Server.Port)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("BOOKHOOK_WEBHOOK_SECRET", validSecret)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected env-only config to load, got %v", err)
	}
	if cfg.Webhook.Secret.Value() != validSecret {
		t.Error("Expected secret from environment")
	}
}

func TestLoad_DiscoversConfigDir(t *testing.T) {
	chdirForTest(t, t.TempDir())
	if err := os.Mkdir("config", 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join("config", DefaultFileName), []byte("server:\n  port: 6000\n"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Expected discovered config port 6000, got %d", cfg.Server.Port)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for explicit missing config file")
	}

	if _, err := Load(writeConfig(t, "server: [unterminated")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		cfg.Webhook.Secret = validSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.Webhook.Secret = "" }, "webhook.secret is required"},
		{"weak secret", func(c *Config) { c.Webhook.Secret = "changeme" }, "webhook.secret"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"relative path", func(c *Config) { c.Webhook.Path = "webhook" }, "webhook.path"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative timeout", func(c *Config) { c.Dispatch.TimeoutSeconds = -5 }, "dispatch.timeout_seconds"},
		{"bad command", func(c *Config) { c.Notify.Commands = []interface{}{42} }, "notify.commands"},
		{"mail without from", func(c *Config) {
			c.Notify.Mail.Host = "smtp.example.com"
			c.Notify.Mail.To = []string{"owner@example.com"}
		}, "notify.mail.from"},
		{"mail without recipients", func(c *Config) {
			c.Notify.Mail.Host = "smtp.example.com"
			c.Notify.Mail.From = "bookings@example.com"
		}, "notify.mail.to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if tt.wantErr == "" {
				if len(errs) > 0 {
					t.Errorf("Expected no errors, got %v", errs)
				}
				return
			}

			joined := strings.Join(errs, "\n")
			if !strings.Contains(joined, tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, errs)
			}
		})
	}
}

func TestSecret_Redacted(t *testing.T) {
	secret := Secret(validSecret)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("config_loaded", "secret", secret, "webhook", WebhookConfig{Secret: secret})

	if strings.Contains(buf.String(), validSecret) {
		t.Errorf("Expected secret to be redacted from logs, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[redacted]") {
		t.Errorf("Expected redaction marker in logs, got %s", buf.String())
	}

	if formatted := fmt.Sprintf("%v %s", secret, secret); strings.Contains(formatted, validSecret) {
		t.Error("Expected secret to be redacted from formatted output")
	}

	if Secret("").String() != "" {
		t.Error("Expected empty secret to format as empty")
	}
}
