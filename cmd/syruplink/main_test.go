package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SYRUPLINK_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_CorruptCatalog verifies run fails when the catalog file does
// not parse.
func TestRun_CorruptCatalog(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	catalogPath := filepath.Join(tmpDir, "catalog.json")
	if err := os.WriteFile(catalogPath, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	configContent := `
site:
  id: test-site

catalog:
  path: ` + catalogPath + `

database:
  path: ` + filepath.Join(tmpDir, "test.db") + `

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("SYRUPLINK_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with a corrupt catalog file")
	}
}

// TestGetConfigPath verifies the env override and default.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("SYRUPLINK_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("SYRUPLINK_CONFIG", "/etc/syruplink/config.yaml")
	if got := getConfigPath(); got != "/etc/syruplink/config.yaml" {
		t.Errorf("getConfigPath() = %q, want %q", got, "/etc/syruplink/config.yaml")
	}
}
