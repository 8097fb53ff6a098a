package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SyrupLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Database  DatabaseConfig  `yaml:"database"`
	Network   NetworkConfig   `yaml:"network"`
	Health    HealthConfig    `yaml:"health"`
	Dispense  DispenseConfig  `yaml:"dispense"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains pharmacy-site information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// CatalogConfig contains device catalog persistence settings.
type CatalogConfig struct {
	// Path is the filesystem path to the catalog JSON file.
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings for the dispense history.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// NetworkConfig contains device discovery settings.
type NetworkConfig struct {
	// Prefix pins scanning to a fixed /24 prefix ("192.168.1.").
	// Empty means use the first prefix resolved from host interfaces.
	Prefix string `yaml:"prefix"`

	// ScanInterval is the seconds between periodic scan cycles.
	ScanInterval int `yaml:"scan_interval"`

	// ProbeTimeout is the per-probe timeout in seconds.
	ProbeTimeout int `yaml:"probe_timeout"`

	// ProbeWorkers bounds how many probes run concurrently in a scan cycle.
	ProbeWorkers int `yaml:"probe_workers"`
}

// HealthConfig contains reachability monitoring settings.
type HealthConfig struct {
	// Interval is the seconds between health check sweeps.
	Interval int `yaml:"interval"`

	// Timeout is the per-check timeout in seconds.
	Timeout int `yaml:"timeout"`

	// RetryBackoff is the milliseconds to wait before the single retry
	// that follows a timed-out check.
	RetryBackoff int `yaml:"retry_backoff"`
}

// DispenseConfig contains dispense protocol settings.
type DispenseConfig struct {
	// Timeout is the per-send timeout in seconds.
	Timeout int `yaml:"timeout"`

	// MaxAttempts is the number of send attempts per drug line.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the seconds between send attempts.
	RetryDelay int `yaml:"retry_delay"`

	// RestoreDelay is the seconds after a successful send before the
	// device status is restored to connected.
	RestoreDelay int `yaml:"restore_delay"`

	// MaxVolume is the largest total volume (mL) accepted for one drug
	// line. Lines over the limit fail without contacting the device.
	MaxVolume int `yaml:"max_volume"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains the optional telemetry publisher settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains the optional metrics sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains optional bearer-token settings for the API.
// When Secret is empty the API runs unauthenticated (LAN-only deployments).
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SYRUPLINK_SECTION_KEY
// For example: SYRUPLINK_DATABASE_PATH, SYRUPLINK_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults. The timing values
// mirror the dispenser protocol: 1s probes, 5s health sweeps, 30s sends.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "pharmacy-001",
			Name: "SyrupLink",
		},
		Catalog: CatalogConfig{
			Path: "./data/catalog.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/syruplink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Network: NetworkConfig{
			ScanInterval: 10,
			ProbeTimeout: 1,
			ProbeWorkers: 64,
		},
		Health: HealthConfig{
			Interval:     5,
			Timeout:      5,
			RetryBackoff: 500,
		},
		Dispense: DispenseConfig{
			Timeout:      30,
			MaxAttempts:  3,
			RetryDelay:   3,
			RestoreDelay: 30,
			MaxVolume:    200,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "syruplink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SYRUPLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYRUPLINK_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("SYRUPLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SYRUPLINK_NETWORK_PREFIX"); v != "" {
		cfg.Network.Prefix = v
	}
	if v := os.Getenv("SYRUPLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SYRUPLINK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("SYRUPLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SYRUPLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SYRUPLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SYRUPLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("SYRUPLINK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Catalog.Path == "" {
		errs = append(errs, "catalog.path is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Network.Prefix != "" && !strings.HasSuffix(c.Network.Prefix, ".") {
		errs = append(errs, `network.prefix must end with "." (e.g. "192.168.1.")`)
	}
	if c.Network.ScanInterval < 1 {
		errs = append(errs, "network.scan_interval must be at least 1 second")
	}
	if c.Network.ProbeWorkers < 1 {
		errs = append(errs, "network.probe_workers must be at least 1")
	}

	if c.Health.Interval < 1 {
		errs = append(errs, "health.interval must be at least 1 second")
	}

	if c.Dispense.MaxAttempts < 1 {
		errs = append(errs, "dispense.max_attempts must be at least 1")
	}
	if c.Dispense.MaxVolume < 1 {
		errs = append(errs, "dispense.max_volume must be at least 1 mL")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set SYRUPLINK_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetScanInterval returns the scan cadence as a Duration.
func (c *Config) GetScanInterval() time.Duration {
	return time.Duration(c.Network.ScanInterval) * time.Second
}

// GetProbeTimeout returns the per-probe timeout as a Duration.
func (c *Config) GetProbeTimeout() time.Duration {
	return time.Duration(c.Network.ProbeTimeout) * time.Second
}

// GetHealthInterval returns the health sweep cadence as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Health.Interval) * time.Second
}

// GetHealthTimeout returns the per-check timeout as a Duration.
func (c *Config) GetHealthTimeout() time.Duration {
	return time.Duration(c.Health.Timeout) * time.Second
}

// GetHealthRetryBackoff returns the backoff before a retried check.
func (c *Config) GetHealthRetryBackoff() time.Duration {
	return time.Duration(c.Health.RetryBackoff) * time.Millisecond
}

// GetDispenseTimeout returns the per-send timeout as a Duration.
func (c *Config) GetDispenseTimeout() time.Duration {
	return time.Duration(c.Dispense.Timeout) * time.Second
}

// GetDispenseRetryDelay returns the delay between send attempts.
func (c *Config) GetDispenseRetryDelay() time.Duration {
	return time.Duration(c.Dispense.RetryDelay) * time.Second
}

// GetDispenseRestoreDelay returns the delay before status restoration.
func (c *Config) GetDispenseRestoreDelay() time.Duration {
	return time.Duration(c.Dispense.RestoreDelay) * time.Second
}
