package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Inbound slot policies accepted by session.inbound_policy.
const (
	InboundPolicyReplace = "replace"
	InboundPolicyDrop    = "drop"
)

// Pin backends accepted by pins.backend.
const (
	PinBackendGPIOCDev = "gpiocdev"
	PinBackendSim      = "sim"
)

// Config is the root configuration structure for the Snapper device agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device       DeviceConfig       `yaml:"device"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	Network      NetworkConfig      `yaml:"network"`
	Registration RegistrationConfig `yaml:"registration"`
	Session      SessionConfig      `yaml:"session"`
	Pins         PinsConfig         `yaml:"pins"`
	Database     DatabaseConfig     `yaml:"database"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DeviceConfig identifies the board this agent runs on.
type DeviceConfig struct {
	// BoardID is the board type string reported during registration.
	BoardID string `yaml:"board_id"`

	// HardwareID overrides the 6-byte hardware identifier ("aa:bb:cc:dd:ee:ff").
	// When empty, the MAC address of Interface is used.
	HardwareID string `yaml:"hardware_id"`

	// Interface is the network interface whose MAC address identifies the device.
	// When empty, the first non-loopback interface with a hardware address is used.
	Interface string `yaml:"interface"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	KeepAlive int              `yaml:"keepalive"` // seconds
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"` // derived from the device identity when empty
}

// MQTTAuthConfig contains the account credentials.
// Username also scopes every topic the device uses.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Key      string `yaml:"key"`
}

// NetworkConfig controls how long the agent waits for the network layer.
type NetworkConfig struct {
	ConnectTimeout int `yaml:"connect_timeout"` // seconds
	PollInterval   int `yaml:"poll_interval"`   // milliseconds
}

// RegistrationConfig controls the registration handshake.
type RegistrationConfig struct {
	Retries        int `yaml:"retries"`
	AttemptTimeout int `yaml:"attempt_timeout"` // seconds
	FailureLog     int `yaml:"failure_log"`     // seconds between terminal failure reports
}

// SessionConfig controls the run loop.
type SessionConfig struct {
	ServiceTimeout int    `yaml:"service_timeout_ms"`
	InboundPolicy  string `yaml:"inbound_policy"`
}

// PinsConfig selects and bounds the GPIO backend.
type PinsConfig struct {
	Backend string `yaml:"backend"`
	Chip    string `yaml:"chip"`
	MaxPins int    `yaml:"max_pins"`
	Restore bool   `yaml:"restore"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local operator HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: SNAPPER_SECTION_KEY
// For example: SNAPPER_MQTT_HOST, SNAPPER_MQTT_KEY
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
		Device: DeviceConfig{
			BoardID: "linux-generic",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "io.adafruit.com",
				Port: 8883,
				TLS:  true,
			},
			QoS:       1,
			KeepAlive: 5,
		},
		Network: NetworkConfig{
			ConnectTimeout: 5,
			PollInterval:   500,
		},
		Registration: RegistrationConfig{
			Retries:        10,
			AttemptTimeout: 5,
			FailureLog:     10,
		},
		Session: SessionConfig{
			ServiceTimeout: 100,
			InboundPolicy:  InboundPolicyReplace,
		},
		Pins: PinsConfig{
			Backend: PinBackendGPIOCDev,
			Chip:    "gpiochip0",
			MaxPins: 64,
		},
		Database: DatabaseConfig{
			Path:        "./data/snapper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SNAPPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("SNAPPER_DEVICE_HARDWARE_ID"); v != "" {
		cfg.Device.HardwareID = v
	}

	// MQTT
	if v := os.Getenv("SNAPPER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SNAPPER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SNAPPER_MQTT_KEY"); v != "" {
		cfg.MQTT.Auth.Key = v
	}

	// API
	if v := os.Getenv("SNAPPER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Pins
	if v := os.Getenv("SNAPPER_PINS_BACKEND"); v != "" {
		cfg.Pins.Backend = v
	}

	// Database
	if v := os.Getenv("SNAPPER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("SNAPPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.BoardID == "" {
		errs = append(errs, "device.board_id is required")
	}

	// MQTT validation. The username scopes every topic, so it is mandatory.
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Auth.Username == "" {
		errs = append(errs, "mqtt.auth.username is required")
	}
	if c.MQTT.Auth.Key == "" {
		errs = append(errs, "mqtt.auth.key is required (set SNAPPER_MQTT_KEY environment variable)")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 1 {
		errs = append(errs, "mqtt.keepalive must be at least 1 second")
	}

	if c.Registration.Retries < 1 {
		errs = append(errs, "registration.retries must be at least 1")
	}
	if c.Registration.AttemptTimeout < 1 {
		errs = append(errs, "registration.attempt_timeout must be at least 1 second")
	}

	if c.Session.ServiceTimeout < 1 {
		errs = append(errs, "session.service_timeout_ms must be positive")
	}
	switch c.Session.InboundPolicy {
	case InboundPolicyReplace, InboundPolicyDrop:
	default:
		errs = append(errs, "session.inbound_policy must be \"replace\" or \"drop\"")
	}

	switch c.Pins.Backend {
	case PinBackendGPIOCDev, PinBackendSim:
	default:
		errs = append(errs, "pins.backend must be \"gpiocdev\" or \"sim\"")
	}
	if c.Pins.MaxPins < 1 {
		errs = append(errs, "pins.max_pins must be at least 1")
	}
	if c.Pins.Restore && !c.Database.Enabled {
		errs = append(errs, "pins.restore requires database.enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// KeepAliveInterval returns the keepalive interval as a Duration.
func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}

// ServiceTimeout returns the per-iteration inbound service timeout.
func (c *Config) ServiceTimeout() time.Duration {
	return time.Duration(c.Session.ServiceTimeout) * time.Millisecond
}

// AttemptTimeout returns the per-attempt registration timeout.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Registration.AttemptTimeout) * time.Second
}

// NetworkConnectTimeout returns how long to wait for the network to come back.
func (c *Config) NetworkConnectTimeout() time.Duration {
	return time.Duration(c.Network.ConnectTimeout) * time.Second
}

// NetworkPollInterval returns the spacing between network status polls.
func (c *Config) NetworkPollInterval() time.Duration {
	return time.Duration(c.Network.PollInterval) * time.Millisecond
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
