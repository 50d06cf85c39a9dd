package dimension

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Kind constrains the values a dimension accepts.
type Kind string

const (
	// KindGeneric accepts any non-empty value.
	KindGeneric Kind = ""
	// KindLanguage requires every value to be a BCP 47 language tag.
	KindLanguage Kind = "language"
)

// Config is the static dimension table loaded at process start.
type Config struct {
	Dimensions []DimensionConfig `yaml:"dimensions"`
}

// DimensionConfig names one dimension and its fallback tree.
type DimensionConfig struct {
	Name   string        `yaml:"name"`
	Kind   Kind          `yaml:"kind,omitempty"`
	Values []ValueConfig `yaml:"values"`
}

// ValueConfig is one node of a dimension's fallback tree. Specializations fall
// back to the value that lists them.
type ValueConfig struct {
	Value           string        `yaml:"value"`
	Specializations []ValueConfig `yaml:"specializations,omitempty"`
}

// LoadConfig reads a YAML dimension configuration from disk.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read dimension config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML dimension configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse dimension config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks names, duplicate values and kind constraints.
func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Dimensions))
	for _, dim := range c.Dimensions {
		name := strings.TrimSpace(dim.Name)
		if name == "" {
			return invalidConfig("dimension name is required")
		}
		if _, ok := seen[name]; ok {
			return invalidConfig("duplicate dimension %q", name)
		}
		seen[name] = struct{}{}

		switch dim.Kind {
		case KindGeneric, KindLanguage:
		default:
			return invalidConfig("dimension %q has unknown kind %q", name, dim.Kind)
		}
		if len(dim.Values) == 0 {
			return invalidConfig("dimension %q has no values", name)
		}

		values := make(map[string]struct{})
		if err := validateValues(name, dim.Kind, dim.Values, values); err != nil {
			return err
		}
	}
	return nil
}

func validateValues(dimension string, kind Kind, nodes []ValueConfig, seen map[string]struct{}) error {
	for _, node := range nodes {
		value := strings.TrimSpace(node.Value)
		if value == "" {
			return invalidConfig("dimension %q has an empty value", dimension)
		}
		if value != node.Value {
			return invalidConfig("dimension %q value %q has surrounding whitespace", dimension, node.Value)
		}
		if _, ok := seen[value]; ok {
			return invalidConfig("dimension %q has duplicate value %q", dimension, value)
		}
		seen[value] = struct{}{}
		if kind == KindLanguage {
			if _, err := language.Parse(value); err != nil {
				return invalidConfig("dimension %q value %q is not a language tag: %v", dimension, value, err)
			}
		}
		if err := validateValues(dimension, kind, node.Specializations, seen); err != nil {
			return err
		}
	}
	return nil
}
