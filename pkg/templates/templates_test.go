package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestGetTemplate_Builtin(t *testing.T) {
	chdirForTest(t, t.TempDir())

	for _, name := range ListTemplates() {
		t.Run(name, func(t *testing.T) {
			content, err := GetTemplate(name)
			if err != nil {
				t.Fatalf("GetTemplate(%q) error = %v", name, err)
			}
			if content == "" {
				t.Error("Expected non-empty template")
			}
		})
	}
}

func TestGetTemplate_Override(t *testing.T) {
	chdirForTest(t, t.TempDir())

	if err := os.Mkdir("templates", 0755); err != nil {
		t.Fatalf("Failed to create templates directory: %v", err)
	}
	override := "[Service]\nUser={{USER}}\n"
	if err := os.WriteFile(filepath.Join("templates", "systemd-service.template"), []byte(override), 0644); err != nil {
		t.Fatalf("Failed to write override: %v", err)
	}

	content, err := GetTemplate(SystemdService)
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if content != override {
		t.Errorf("Expected local override, got %q", content)
	}
}

func TestGetTemplate_Unknown(t *testing.T) {
	if _, err := GetTemplate("nginx-site"); err == nil {
		t.Error("Expected error for unknown template")
	}
}

func TestRender_MissingValue(t *testing.T) {
	chdirForTest(t, t.TempDir())

	_, err := Render(SystemdService, TemplateData{"USER": "bookhook"})
	if err == nil {
		t.Fatal("Expected error for unresolved placeholders")
	}
	if !strings.Contains(err.Error(), "BINARY") {
		t.Errorf("Expected missing placeholder to be named, got %v", err)
	}
}

func TestRenderConfig(t *testing.T) {
	chdirForTest(t, t.TempDir())

	secret := "kJ8mN2pQ5tR7vX1zB4cE6gH9jL3nP8qS2uW5yA7bD0fG3hK6"
	rendered, err := RenderConfig("127.0.0.1", 5000, secret, "/var/lib/bookhook/bookings.db", "/var/log/bookhook.log")
	if err != nil {
		t.Fatalf("RenderConfig() error = %v", err)
	}

	var parsed struct {
		Server struct {
			Port int `yaml:"port"`
		} `yaml:"server"`
		Webhook struct {
			Secret string `yaml:"secret"`
		} `yaml:"webhook"`
		Store struct {
			Path string `yaml:"path"`
		} `yaml:"store"`
	}
	if err := yaml.Unmarshal([]byte(rendered), &parsed); err != nil {
		t.Fatalf("Expected rendered config to be valid YAML: %v", err)
	}

	if parsed.Server.Port != 5000 {
		t.Errorf("Expected port 5000, got %d", parsed.Server.Port)
	}
	if parsed.Webhook.Secret != secret {
		t.Errorf("Expected secret to be rendered, got %q", parsed.Webhook.Secret)
	}
	if parsed.Store.Path != "/var/lib/bookhook/bookings.db" {
		t.Errorf("Expected store path to be rendered, got %q", parsed.Store.Path)
	}
}

func TestRenderSystemdService(t *testing.T) {
	chdirForTest(t, t.TempDir())

	rendered, err := RenderSystemdService("bookhook", "bookhook", "/var/lib/bookhook", "/usr/local/bin/bookhook", "/etc/bookhook/bookhook.yaml")
	if err != nil {
		t.Fatalf("RenderSystemdService() error = %v", err)
	}

	expected := []string{
		"User=bookhook",
		"WorkingDirectory=/var/lib/bookhook",
		"ExecStart=/usr/local/bin/bookhook serve --config /etc/bookhook/bookhook.yaml",
	}
	for _, want := range expected {
		if !strings.Contains(rendered, want) {
			t.Errorf("Expected rendered unit to contain %q", want)
		}
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{ConfigFile, true},
		{SystemdService, true},
		{"nginx-site", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateTemplate(tt.name); got != tt.want {
			t.Errorf("ValidateTemplate(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
