package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for hcbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge     BridgeConfig      `yaml:"bridge"`
	Appliances []ApplianceConfig `yaml:"appliances"`
	Supervisor SupervisorConfig  `yaml:"supervisor"`
	Session    SessionConfig     `yaml:"session"`
	Catalog    CatalogConfig     `yaml:"catalog"`
	Dev        DevConfig         `yaml:"dev"`
	Database   DatabaseConfig    `yaml:"database"`
	MQTT       MQTTConfig        `yaml:"mqtt"`
	HASS       HASSConfig        `yaml:"hass"`
	API        APIConfig         `yaml:"api"`
	WebSocket  WebSocketConfig   `yaml:"websocket"`
	InfluxDB   InfluxDBConfig    `yaml:"influxdb"`
	Discovery  DiscoveryConfig   `yaml:"discovery"`
	Logging    LoggingConfig     `yaml:"logging"`
	Security   SecurityConfig    `yaml:"security"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ApplianceConfig is one configured appliance (a config entry).
type ApplianceConfig struct {
	// ID is the appliance deviceID from its description.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Host is the appliance address. Empty resolves via mDNS discovery.
	Host string `yaml:"host"`

	// PSK and IV are the pairing secrets. They are stored and passed
	// through; wire encryption is handled outside this service.
	PSK string `yaml:"psk"`
	IV  string `yaml:"iv"`

	// DescriptionFile is the appliance's capability description (JSON).
	DescriptionFile string `yaml:"description_file"`

	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the appliance should be started. Default: true.
func (a ApplianceConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// SupervisorConfig contains connection supervisor settings.
type SupervisorConfig struct {
	// MaxReconnectTime is how long (seconds) a session may stay
	// RECONNECTING before entities report unavailable.
	MaxReconnectTime int `yaml:"max_reconnect_time"`

	// RetryInterval is the pause (seconds) between connect attempts.
	RetryInterval int `yaml:"retry_interval"`
}

// SessionConfig contains appliance websocket settings.
type SessionConfig struct {
	Scheme            string        `yaml:"scheme"`
	Path              string        `yaml:"path"`
	AppName           string        `yaml:"app_name"`
	AppID             string        `yaml:"app_id"`
	ConnectTimeout    int           `yaml:"connect_timeout"`
	RequestTimeout    int           `yaml:"request_timeout"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	Backoff           BackoffConfig `yaml:"backoff"`
}

// BackoffConfig contains session reconnect backoff settings (seconds).
type BackoffConfig struct {
	Initial    int     `yaml:"initial"`
	Max        int     `yaml:"max"`
	Multiplier float64 `yaml:"multiplier"`
	Jitter     float64 `yaml:"jitter"`
}

// CatalogConfig contains entity catalog settings.
type CatalogConfig struct {
	// Path is an optional YAML catalog extending the built-in one.
	Path string `yaml:"path"`

	// Dynamic enables descriptions generated from the appliance.
	Dynamic bool `yaml:"dynamic"`

	// PollInterval is how often (seconds) polled entities refresh.
	PollInterval int `yaml:"poll_interval"`
}

// DevConfig contains developer settings.
type DevConfig struct {
	// SetupFromDump runs appliances from their description only, without
	// connecting. Value writes are echoed back as notifications.
	SetupFromDump bool `yaml:"setup_from_dump"`

	// OverrideHost replaces every appliance's host.
	OverrideHost string `yaml:"override_host"`

	// OverridePSK replaces every appliance's PSK.
	OverridePSK string `yaml:"override_psk"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long (days) state history is kept.
	// Zero keeps everything.
	HistoryRetention int `yaml:"history_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
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

// HASSConfig contains Home Assistant MQTT discovery settings.
type HASSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	TopicPrefix     string `yaml:"topic_prefix"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// DiscoveryConfig contains mDNS discovery settings.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Domain  string `yaml:"domain"`

	// Timeout bounds one resolve (seconds).
	Timeout int `yaml:"timeout"`
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

// JWTConfig contains JWT token settings. An empty secret disables API
// authentication.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HCBRIDGE_SECTION_KEY
// For example: HCBRIDGE_DATABASE_PATH, HCBRIDGE_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
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

// Default returns the default configuration with environment overrides
// applied. Used when no config file is given.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:   "hcbridge",
			Name: "Home Connect Bridge",
		},
		Supervisor: SupervisorConfig{
			MaxReconnectTime: 300,
			RetryInterval:    1,
		},
		Session: SessionConfig{
			Scheme:         "ws",
			Path:           "/homeconnect",
			AppName:        "hcbridge",
			ConnectTimeout: 10,
			RequestTimeout: 10,
			Backoff: BackoffConfig{
				Initial:    1,
				Max:        30,
				Multiplier: 2.0,
				Jitter:     0.25,
			},
		},
		Catalog: CatalogConfig{
			Dynamic:      true,
			PollInterval: 30,
		},
		Database: DatabaseConfig{
			Path:             "./data/hcbridge.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hcbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		HASS: HASSConfig{
			Enabled:         true,
			DiscoveryPrefix: "homeassistant",
			TopicPrefix:     "hcbridge",
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Service: "_homeconnect._tcp",
			Domain:  "local.",
			Timeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "hcbridge",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HCBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HCBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HCBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HCBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HCBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HCBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HCBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HCBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("HCBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("HCBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Dev
	if v := os.Getenv("HCBRIDGE_DEV_OVERRIDE_HOST"); v != "" {
		cfg.Dev.OverrideHost = v
	}
	if v := os.Getenv("HCBRIDGE_DEV_OVERRIDE_PSK"); v != "" {
		cfg.Dev.OverridePSK = v
	}

	// Security
	if v := os.Getenv("HCBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	seen := make(map[string]bool, len(c.Appliances))
	for i, a := range c.Appliances {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("appliances[%d].id is required", i))
		} else if seen[a.ID] {
			errs = append(errs, fmt.Sprintf("appliances[%d].id %q is duplicated", i, a.ID))
		}
		seen[a.ID] = true
		if a.DescriptionFile == "" {
			errs = append(errs, fmt.Sprintf("appliances[%d].description_file is required", i))
		}
	}

	if c.Supervisor.MaxReconnectTime <= 0 {
		errs = append(errs, "supervisor.max_reconnect_time must be positive")
	}
	if c.Supervisor.RetryInterval < 0 {
		errs = append(errs, "supervisor.retry_interval must not be negative")
	}

	switch c.Session.Scheme {
	case "ws", "wss":
	default:
		errs = append(errs, "session.scheme must be ws or wss")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.HASS.Enabled && !c.MQTT.Enabled {
		errs = append(errs, "hass.enabled requires mqtt.enabled")
	}
	if c.HASS.Enabled && (c.HASS.DiscoveryPrefix == "" || c.HASS.TopicPrefix == "") {
		errs = append(errs, "hass.discovery_prefix and hass.topic_prefix are required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// The API is unauthenticated without a secret; a short one is rejected.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetMaxReconnectTime returns the supervisor watchdog duration.
func (c *Config) GetMaxReconnectTime() time.Duration {
	return time.Duration(c.Supervisor.MaxReconnectTime) * time.Second
}

// GetRetryInterval returns the supervisor retry pause.
func (c *Config) GetRetryInterval() time.Duration {
	return time.Duration(c.Supervisor.RetryInterval) * time.Second
}

// GetPollInterval returns the polled entity refresh interval.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Catalog.PollInterval) * time.Second
}
