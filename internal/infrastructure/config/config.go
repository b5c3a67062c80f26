package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Loop Logic Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Capacity  CapacityConfig  `yaml:"capacity"`
	Assign    AssignConfig    `yaml:"assignment"`
	Balancing BalancingConfig `yaml:"balancing"`
	API       APIConfig       `yaml:"api"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// CapacityConfig contains the per-circuit limits and system-wide capacity
// thresholds. Zero values fall back to the documented defaults, so the
// engine behaves identically whether values are explicit or absent.
type CapacityConfig struct {
	// MaxDevices is the per-circuit device ceiling. Default 25.
	MaxDevices int `yaml:"max_devices"`

	// MaxAddress is the highest assignable loop address. Default 250.
	MaxAddress int `yaml:"max_address"`

	// MaxCurrent is the per-circuit electrical ceiling in load units.
	// Default 7.0.
	MaxCurrent float64 `yaml:"max_current"`

	// SafeThreshold is the utilization fraction above which capacity
	// warnings are raised. Default 0.80.
	SafeThreshold float64 `yaml:"safe_threshold"`

	// SpareFraction is the capacity fraction kept free for later additions.
	// Default 0.20.
	SpareFraction float64 `yaml:"spare_fraction"`

	// StartAddress is the lowest address auto-assignment allocates from.
	// Default 1.
	StartAddress int `yaml:"start_address"`
}

// AssignConfig contains auto-assignment defaults.
type AssignConfig struct {
	// DefaultStrategy names the device ordering used when a request does
	// not specify one: sequential, by_floor, by_zone, by_device_type, or
	// optimized.
	DefaultStrategy string `yaml:"default_strategy"`

	// RespectLocks protects manually-addressed devices during batch passes.
	RespectLocks bool `yaml:"respect_locks"`

	// ValidateElectrical runs the electrical-limit check on every
	// assignment.
	ValidateElectrical bool `yaml:"validate_electrical"`
}

// BalancingConfig contains circuit-balancing defaults.
type BalancingConfig struct {
	// TargetUtilization is the fraction circuits are balanced toward.
	// Zero derives it from the capacity spare fraction.
	TargetUtilization float64 `yaml:"target_utilization"`

	// PreserveGroups keeps co-located devices together where possible.
	PreserveGroups bool `yaml:"preserve_groups"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings for the optional
// allocation-event feed.
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

// InfluxDBConfig contains InfluxDB connection settings for the optional
// utilization metrics feed.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LOOPLOGIC_SECTION_KEY
// For example: LOOPLOGIC_DATABASE_PATH, LOOPLOGIC_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Loop Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/looplogic.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Capacity: CapacityConfig{
			MaxDevices:    25,
			MaxAddress:    250,
			MaxCurrent:    7.0,
			SafeThreshold: 0.80,
			SpareFraction: 0.20,
			StartAddress:  1,
		},
		Assign: AssignConfig{
			DefaultStrategy:    "sequential",
			RespectLocks:       true,
			ValidateElectrical: true,
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
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "looplogic-core",
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
// Environment variables follow the pattern: LOOPLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("LOOPLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("LOOPLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("LOOPLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("LOOPLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LOOPLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LOOPLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("LOOPLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Capacity.MaxDevices < 0 {
		errs = append(errs, "capacity.max_devices must not be negative")
	}
	if c.Capacity.MaxAddress < 0 {
		errs = append(errs, "capacity.max_address must not be negative")
	}
	if c.Capacity.MaxCurrent < 0 {
		errs = append(errs, "capacity.max_current must not be negative")
	}
	if c.Capacity.SafeThreshold < 0 || c.Capacity.SafeThreshold > 1 {
		errs = append(errs, "capacity.safe_threshold must be between 0 and 1")
	}
	if c.Capacity.SpareFraction < 0 || c.Capacity.SpareFraction > 1 {
		errs = append(errs, "capacity.spare_fraction must be between 0 and 1")
	}
	if c.Capacity.StartAddress < 0 {
		errs = append(errs, "capacity.start_address must not be negative")
	}
	if c.Capacity.MaxAddress > 0 && c.Capacity.StartAddress > c.Capacity.MaxAddress {
		errs = append(errs, "capacity.start_address must not exceed capacity.max_address")
	}

	switch c.Assign.DefaultStrategy {
	case "", "sequential", "by_floor", "by_zone", "by_device_type", "optimized":
	default:
		errs = append(errs, fmt.Sprintf("assign.default_strategy %q is not recognised", c.Assign.DefaultStrategy))
	}

	if c.Balancing.TargetUtilization < 0 || c.Balancing.TargetUtilization > 1 {
		errs = append(errs, "balancing.target_utilization must be between 0 and 1")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
