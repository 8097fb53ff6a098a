package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "site:\n  id: test-site\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.ScanInterval != 10 {
		t.Errorf("Network.ScanInterval = %d, want 10", cfg.Network.ScanInterval)
	}
	if cfg.Health.Interval != 5 {
		t.Errorf("Health.Interval = %d, want 5", cfg.Health.Interval)
	}
	if cfg.Dispense.MaxAttempts != 3 {
		t.Errorf("Dispense.MaxAttempts = %d, want 3", cfg.Dispense.MaxAttempts)
	}
	if got := cfg.GetDispenseTimeout(); got != 30*time.Second {
		t.Errorf("GetDispenseTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetProbeTimeout(); got != time.Second {
		t.Errorf("GetProbeTimeout() = %v, want 1s", got)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  id: test-site
network:
  prefix: "10.0.0."
  scan_interval: 30
dispense:
  max_volume: 150
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.Prefix != "10.0.0." {
		t.Errorf("Network.Prefix = %q, want %q", cfg.Network.Prefix, "10.0.0.")
	}
	if cfg.Network.ScanInterval != 30 {
		t.Errorf("Network.ScanInterval = %d, want 30", cfg.Network.ScanInterval)
	}
	if cfg.Dispense.MaxVolume != 150 {
		t.Errorf("Dispense.MaxVolume = %d, want 150", cfg.Dispense.MaxVolume)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
site:
  id: test-site
network:
  prefix: "10.0.0."
`)

	t.Setenv("SYRUPLINK_NETWORK_PREFIX", "192.168.4.")
	t.Setenv("SYRUPLINK_API_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.Prefix != "192.168.4." {
		t.Errorf("Network.Prefix = %q, want env override %q", cfg.Network.Prefix, "192.168.4.")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name:    "prefix without trailing dot",
			yaml:    "network:\n  prefix: \"192.168.1\"\n",
			wantSub: "network.prefix",
		},
		{
			name:    "bad api port",
			yaml:    "api:\n  port: 99999\n",
			wantSub: "api.port",
		},
		{
			name:    "influx enabled without url",
			yaml:    "influxdb:\n  enabled: true\n",
			wantSub: "influxdb.url",
		},
		{
			name:    "zero dispense attempts",
			yaml:    "dispense:\n  max_attempts: -1\n",
			wantSub: "dispense.max_attempts",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("Load() error = %v, want mention of %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
}
