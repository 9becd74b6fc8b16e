package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesBindOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "narrativ.toml")
	content := "[paths]\napi_bind = \"127.0.0.1:9100\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path, "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9100" {
		t.Fatalf("expected bind from file, got %q", cfg.Paths.APIBind)
	}

	cfg, err = loadConfig(path, " 127.0.0.1:9200 ")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9200" {
		t.Fatalf("expected bind override, got %q", cfg.Paths.APIBind)
	}
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "narrativ.toml")
	if err := os.WriteFile(path, []byte("[paths\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path, ""); err == nil {
		t.Fatal("expected malformed config to fail")
	}
}

func TestRootCommandRejectsArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
}
