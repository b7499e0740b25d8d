package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a YAML config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

// TestLoadConfigDefaults verifies defaults without a file.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPAddress != ":8080" || cfg.Clustering != "by-type" || cfg.CommitteeSize != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

// TestLoadConfigFile verifies env expansion and flag precedence.
func TestLoadConfigFile(t *testing.T) {
	t.Setenv("RADNODE_TEST_DATA", "/var/lib/radnode")

	path := writeConfig(t, `
data: ${RADNODE_TEST_DATA}
http: ":9090"
timeout: 3s
allowed_domains: [api.example.com, example.org]
clustering: by-value
peers: ["10.0.0.1:9100"]
`)

	cfg, err := loadConfig([]string{"-config", path, "-http", ":7070", "-peers", "a:1,b:2"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DataPath != "/var/lib/radnode" {
		t.Errorf("data = %q", cfg.DataPath)
	}

	if cfg.HTTPAddress != ":7070" {
		t.Errorf("flag should win, http = %q", cfg.HTTPAddress)
	}

	if cfg.Timeout != 3*time.Second || cfg.Clustering != "by-value" {
		t.Errorf("timeout = %v clustering = %q", cfg.Timeout, cfg.Clustering)
	}

	if len(cfg.AllowedDomains) != 2 || cfg.AllowedDomains[1] != "example.org" {
		t.Errorf("domains = %v", cfg.AllowedDomains)
	}

	if len(cfg.Peers) != 2 || cfg.Peers[0] != "a:1" {
		t.Errorf("peers = %v", cfg.Peers)
	}
}

// TestLoadConfigErrors verifies unreadable and malformed files fail.
func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := loadConfig([]string{"-config", writeConfig(t, "http: [unterminated")}); err == nil {
		t.Error("expected error for malformed file")
	}
}

// TestLoadOrGenerateKey verifies a generated key is persisted and reloaded.
func TestLoadOrGenerateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")

	first, err := loadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	second, err := loadOrGenerateKey(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if !first.Equal(second) {
		t.Error("reloaded key differs")
	}
}
