// SyrupLink Core - pharmacy syrup dispenser fleet manager
//
// This is the main entry point for the SyrupLink Core application. It
// discovers syrup dispensers on the pharmacy LAN, keeps connections to
// them healthy, and routes dispense requests to the right device.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/seorin-dev/syruplink-core/migrations"

	"github.com/seorin-dev/syruplink-core/internal/api"
	"github.com/seorin-dev/syruplink-core/internal/connection"
	"github.com/seorin-dev/syruplink-core/internal/dispense"
	"github.com/seorin-dev/syruplink-core/internal/dispenser"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/config"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/database"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/influxdb"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/logging"
	"github.com/seorin-dev/syruplink-core/internal/infrastructure/mqtt"
	"github.com/seorin-dev/syruplink-core/internal/network"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SyrupLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Load the device catalog
	catalog := dispenser.NewCatalog(cfg.Catalog.Path)
	if err := catalog.Load(); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	log.Info("device catalog loaded", "path", cfg.Catalog.Path, "devices", catalog.Count())

	// Open database for dispense history
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	history := dispense.NewHistory(db)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub and event bridge, shared by the connection layer,
	// the dispense coordinator, and the API server.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	bridge := api.NewEventBridge(hub, mqttClient, influxClient, log)

	// Resolve the scan prefix: pinned in config, or the first candidate
	// derived from the host's interfaces.
	resolver := network.NewResolver()
	prefix := cfg.Network.Prefix
	if prefix == "" {
		prefixes, resolveErr := resolver.Prefixes()
		if resolveErr != nil {
			log.Warn("no scan prefix available; select one via the API", "error", resolveErr)
		} else {
			prefix = prefixes[0]
			log.Info("scan prefix resolved from interfaces", "prefix", prefix)
		}
	}

	// Connection layer: discovery scanning, connect/disconnect, health
	prober := network.NewProber(cfg.GetProbeTimeout())
	scanner := network.NewScanner(prober, cfg.Network.ProbeWorkers, log.Logger)
	manager := connection.NewManager(catalog, scanner, prober, connection.Config{
		Prefix:       prefix,
		ScanInterval: cfg.GetScanInterval(),
	}, bridge, log.Logger)

	healthProber := network.NewProber(cfg.GetHealthTimeout())
	monitor := connection.NewMonitor(manager, healthProber, connection.MonitorConfig{
		Interval:     cfg.GetHealthInterval(),
		RetryBackoff: cfg.GetHealthRetryBackoff(),
	}, log.Logger)

	// Dispense coordinator
	sender := dispense.NewHTTPSender(cfg.GetDispenseTimeout())
	coordinator := dispense.NewCoordinator(manager, sender, history, dispense.Config{
		MaxAttempts:  cfg.Dispense.MaxAttempts,
		RetryDelay:   cfg.GetDispenseRetryDelay(),
		RestoreDelay: cfg.GetDispenseRestoreDelay(),
		MaxVolumeML:  cfg.Dispense.MaxVolume,
	}, bridge, log.Logger)

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Catalog:     catalog,
		Manager:     manager,
		Coordinator: coordinator,
		History:     history,
		Resolver:    resolver,
		MQTT:        mqttClient,
		Influx:      influxClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Reconnect the device that was active before the last shutdown,
	// then start the background loops.
	manager.RestoreLast(ctx)
	go manager.Run(ctx)
	go monitor.Run(ctx)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("SyrupLink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SYRUPLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SYRUPLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
