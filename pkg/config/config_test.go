package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Inner struct {
		Path string `yaml:"path"`
	} `yaml:"inner"`
}

var errNoName = errors.New("name is required")

func (s *sample) Validate() error {
	if s.Name == "" {
		return errNoName
	}
	return nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("KEEPMD_TEST_PATH", "/data/notes")
	p := writeConfig(t, "name: keepmd\ninner:\n  path: ${KEEPMD_TEST_PATH}\n")

	cfg := sample{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Inner.Path != "/data/notes" {
		t.Errorf("path = %q, want /data/notes", cfg.Inner.Path)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, default should survive", cfg.Port)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	p := writeConfig(t, "name: keepmd\nprot: 9000\n")

	var cfg sample
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "prot") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "port: 1\n")

	var cfg sample
	if err := Load(p, &cfg); !errors.Is(err, errNoName) {
		t.Errorf("err = %v, want %v", err, errNoName)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestDecode_EmptyDocument(t *testing.T) {
	cfg := sample{Name: "default"}
	if err := Decode([]byte(""), &cfg); err != nil {
		t.Fatalf("empty document should keep defaults: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg := sample{Name: "default"}
	if err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}

	var empty sample
	if err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"), &empty); !errors.Is(err, errNoName) {
		t.Errorf("defaults should still be validated, err = %v", err)
	}

	p := writeConfig(t, "name: from-file\n")
	if err := LoadOrDefault(p, &cfg); err != nil || cfg.Name != "from-file" {
		t.Errorf("name = %q, err = %v", cfg.Name, err)
	}
}
