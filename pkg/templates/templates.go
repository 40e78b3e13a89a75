package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bookhook/pkg/fileutil"
)

// Template names
const (
	ConfigFile     = "bookhook-config"
	SystemdService = "systemd-service"
)

//go:embed files/*.template
var builtin embed.FS

// TemplateData holds variables for template rendering.
type TemplateData map[string]string

// GetTemplatePaths returns the override search paths for a template
func GetTemplatePaths(templateName string) []string {
	filename := templateName + ".template"
	return []string{
		filepath.Join(".", "templates", filename),
		filepath.Join(fileutil.ConfigDir, "templates", filename),
	}
}

// GetTemplate returns the raw template content by name.
// A file in ./templates/ or /etc/bookhook/templates/ overrides the
// built-in copy.
func GetTemplate(name string) (string, error) {
	if !ValidateTemplate(name) {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	if path := fileutil.SearchPathsOptional(GetTemplatePaths(name)); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read template %s: %w", path, err)
		}
		return string(content), nil
	}

	content, err := builtin.ReadFile("files/" + name + ".template")
	if err != nil {
		return "", fmt.Errorf("built-in template missing: %s", name)
	}
	return string(content), nil
}

// Render renders a template with the given data.
// Uses {{PLACEHOLDER}} syntax for variable substitution; a placeholder left
// without a value is an error.
func Render(templateName string, data TemplateData) (string, error) {
	tmplContent, err := GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	rendered := tmplContent
	for key, value := range data {
		rendered = strings.ReplaceAll(rendered, "{{"+key+"}}", value)
	}

	if missing := unresolved(rendered); len(missing) > 0 {
		return "", fmt.Errorf("template %s: no value for %s", templateName, strings.Join(missing, ", "))
	}

	return rendered, nil
}

// RenderConfig renders a starter bookhook.yaml.
func RenderConfig(host string, port int, secret, dbPath, logFile string) (string, error) {
	return Render(ConfigFile, TemplateData{
		"HOST":     host,
		"PORT":     fmt.Sprint(port),
		"SECRET":   secret,
		"DB_PATH":  dbPath,
		"LOG_FILE": logFile,
	})
}

// RenderSystemdService renders the systemd service template.
func RenderSystemdService(user, group, workingDir, binary, configFile string) (string, error) {
	return Render(SystemdService, TemplateData{
		"USER":        user,
		"GROUP":       group,
		"WORKING_DIR": workingDir,
		"BINARY":      binary,
		"CONFIG_FILE": configFile,
	})
}

// ListTemplates returns a list of all available template names.
func ListTemplates() []string {
	return []string{
		ConfigFile,
		SystemdService,
	}
}

// ValidateTemplate checks if a template name is valid.
func ValidateTemplate(name string) bool {
	for _, n := range ListTemplates() {
		if n == name {
			return true
		}
	}
	return false
}

// unresolved lists the {{NAME}} placeholders still present in s
func unresolved(s string) []string {
	seen := make(map[string]bool)
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			break
		}
		seen[s[start+2:start+end]] = true
		s = s[start+end+2:]
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
