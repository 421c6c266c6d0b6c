package preference

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads preferences from a YAML (.yaml, .yml, .json) or TOML
// (.toml) file. Keys missing from the file keep their Default values.
func LoadFile(path string) (Preference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preference{}, fmt.Errorf("failed to read preference file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return Preference{}, fmt.Errorf("unsupported preference format %q", ext)
	}
}

// ParseYAML decodes YAML (or JSON, which YAML accepts) over the defaults.
func ParseYAML(data []byte) (Preference, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preference{}, fmt.Errorf("failed to parse preference yaml: %w", err)
	}
	return p, nil
}

// ParseTOML decodes TOML over the defaults.
func ParseTOML(data []byte) (Preference, error) {
	p := Default()
	if err := toml.Unmarshal(data, &p); err != nil {
		return Preference{}, fmt.Errorf("failed to parse preference toml: %w", err)
	}
	return p, nil
}

// LoadOrDefault returns the file's preferences, or Default when path is
// empty. A read or parse failure is returned alongside the defaults so the
// caller can log it and carry on.
func LoadOrDefault(path string) (Preference, error) {
	if path == "" {
		return Default(), nil
	}
	p, err := LoadFile(path)
	if err != nil {
		return Default(), err
	}
	return p, nil
}
