// Loop Logic Core - Addressable Loop Commissioning Engine
//
// This is the main entry point for the Loop Logic Core application, the
// address-allocation and circuit-capacity engine for addressable
// signalling loops: panel initialization, severity-graded validation,
// multi-strategy auto-assignment, circuit balancing, and transactional
// persistence of device assignments.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/loop-logic-core/migrations"

	"github.com/nerrad567/loop-logic-core/internal/api"
	"github.com/nerrad567/loop-logic-core/internal/assignment"
	"github.com/nerrad567/loop-logic-core/internal/audit"
	"github.com/nerrad567/loop-logic-core/internal/circuit"
	"github.com/nerrad567/loop-logic-core/internal/commissioning"
	"github.com/nerrad567/loop-logic-core/internal/events"
	"github.com/nerrad567/loop-logic-core/internal/infrastructure/config"
	"github.com/nerrad567/loop-logic-core/internal/infrastructure/database"
	"github.com/nerrad567/loop-logic-core/internal/infrastructure/logging"
	"github.com/nerrad567/loop-logic-core/internal/metrics"
	"github.com/nerrad567/loop-logic-core/internal/session"
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

// utilizationSampleInterval is how often circuit utilization is sampled
// into the metrics feed when InfluxDB is enabled.
const utilizationSampleInterval = 30 * time.Second

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
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Loop Logic Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Build the commissioning service over the durable assignment store
	store := session.NewSQLiteStore(db.DB)
	service := commissioning.NewService(serviceOptions(cfg), store)
	service.SetLogger(log)

	// Load persisted assignments from previous runs
	if reloadErr := service.Reload(ctx); reloadErr != nil {
		return fmt.Errorf("loading assignment state: %w", reloadErr)
	}
	stats := service.GetStatistics()
	log.Info("assignment state loaded",
		"panels", stats.Panels,
		"circuits", stats.Circuits,
		"devices", stats.Devices,
	)

	// Connect the allocation-event feed (optional)
	if cfg.MQTT.Enabled {
		publisher, pubErr := events.Connect(cfg.MQTT, log)
		if pubErr != nil {
			return fmt.Errorf("connecting event feed: %w", pubErr)
		}
		defer func() {
			log.Info("closing event feed")
			publisher.Close()
		}()
		service.SetPublisher(publisher)
		log.Info("event feed connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("event feed disabled")
	}

	// Connect the utilization metrics feed (optional)
	var recorder *metrics.Recorder
	if cfg.InfluxDB.Enabled {
		recorder, err = metrics.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting metrics feed: %w", err)
		}
		defer func() {
			log.Info("closing metrics feed")
			recorder.Close()
		}()
		log.Info("metrics feed connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("metrics feed disabled")
	}

	// Start the HTTP API
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Service: service,
		Audit:   audit.NewSQLiteRepository(db.DB),
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Sample circuit utilization into the metrics feed. Sampling goes
	// through the server so it shares the service serialisation lock.
	if recorder != nil {
		go sampleUtilization(ctx, server, recorder, log)
	}

	// Verify infrastructure is healthy before declaring readiness
	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Loop Logic Core stopped")
	return nil
}

// serviceOptions maps the loaded configuration onto commissioning options.
func serviceOptions(cfg *config.Config) commissioning.Options {
	strategy, err := assignment.ParseStrategy(cfg.Assign.DefaultStrategy)
	if err != nil {
		// Validate() has already rejected unknown strategies.
		strategy = assignment.StrategySequential
	}
	return commissioning.Options{
		Limits: circuit.Limits{
			MaxDevices: cfg.Capacity.MaxDevices,
			MaxAddress: cfg.Capacity.MaxAddress,
			MaxCurrent: cfg.Capacity.MaxCurrent,
		},
		Policy: circuit.CapacityPolicy{
			SafeThreshold: cfg.Capacity.SafeThreshold,
			SpareFraction: cfg.Capacity.SpareFraction,
			StartAddress:  cfg.Capacity.StartAddress,
		},
		DefaultStrategy:    strategy,
		RespectLocks:       cfg.Assign.RespectLocks,
		ValidateElectrical: cfg.Assign.ValidateElectrical,
		TargetUtilization:  cfg.Balancing.TargetUtilization,
		PreserveGroups:     cfg.Balancing.PreserveGroups,
	}
}

// sampleUtilization periodically feeds circuit utilization into the
// metrics recorder until the context is cancelled.
func sampleUtilization(ctx context.Context, server *api.Server, recorder *metrics.Recorder, log *logging.Logger) {
	ticker := time.NewTicker(utilizationSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loads := server.SampleUtilization()
			samples := make([]metrics.Sample, 0, len(loads))
			for _, l := range loads {
				samples = append(samples, metrics.Sample{
					PanelID:            l.PanelID,
					CircuitID:          l.CircuitID,
					DeviceCount:        l.DeviceCount,
					DeviceUtilization:  l.DeviceUtilization,
					CurrentUtilization: l.CurrentUtilization,
					TotalCurrent:       l.TotalCurrent,
				})
			}
			recorder.RecordUtilization(samples)
			log.Debug("utilization sampled", "circuits", len(samples))
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses LOOPLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LOOPLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
