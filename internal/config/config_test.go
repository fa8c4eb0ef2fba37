package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Rules.MaxNameLength != 30 || cfg.Rules.MinStageLengthKm != 5 || cfg.Rules.MinYearOfBirth != 1900 {
		t.Fatalf("unexpected defaults: %+v", cfg.Rules)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("rules:\n  max_name_length: 12\nlog:\n  debug: true\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Rules.MaxNameLength != 12 || !cfg.Log.Debug {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Rules.MinStageLengthKm != 5 {
		t.Fatalf("expected default min stage length, got %v", cfg.Rules.MinStageLengthKm)
	}
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	if _, err := FromYAML([]byte("rules:\n  max_name_length: 0\n")); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := FromYAML([]byte("rules: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Rules.MaxNameLength != 30 {
		t.Fatalf("expected defaults when file missing")
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for missing config")
	}
	if err := os.WriteFile(filepath.Join(dir, "peloton.yml"), []byte("rules:\n  min_year_of_birth: 1950\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rules.MinYearOfBirth != 1950 {
		t.Fatalf("expected 1950, got %d", cfg.Rules.MinYearOfBirth)
	}
}
