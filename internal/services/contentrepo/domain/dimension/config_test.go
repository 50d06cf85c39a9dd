package dimension

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing name", yaml: "dimensions:\n  - values:\n      - value: en\n"},
		{name: "duplicate dimension", yaml: "dimensions:\n  - name: a\n    values: [{value: x}]\n  - name: a\n    values: [{value: y}]\n"},
		{name: "no values", yaml: "dimensions:\n  - name: a\n"},
		{name: "duplicate value", yaml: "dimensions:\n  - name: a\n    values:\n      - value: x\n        specializations: [{value: x}]\n"},
		{name: "unknown kind", yaml: "dimensions:\n  - name: a\n    kind: color\n    values: [{value: x}]\n"},
		{name: "bad language tag", yaml: "dimensions:\n  - name: language\n    kind: language\n    values: [{value: \"%%%\"}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseConfigAcceptsLanguageTags(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
dimensions:
  - name: language
    kind: language
    values:
      - value: en
        specializations:
          - value: en-US
          - value: en-GB
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if len(cfg.Dimensions) != 1 || len(cfg.Dimensions[0].Values[0].Specializations) != 2 {
		t.Fatalf("config = %+v, want one dimension with two specializations", cfg)
	}
}

func TestParseConfigRejectsMalformedYAML(t *testing.T) {
	if _, err := ParseConfig([]byte("dimensions: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dimensions.yaml")
	if err := os.WriteFile(path, []byte(twoDimensionYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Dimensions) != 2 {
		t.Fatalf("dimensions = %d, want 2", len(cfg.Dimensions))
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}
