package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Socket          SocketConfig      `yaml:"socket"`
	I2C             I2CConfig         `yaml:"i2c"`
	Reconciler      ReconcilerConfig  `yaml:"reconciler"`
	Log             LogConfig         `yaml:"log"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	Scene           SceneConfig       `yaml:"scene"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// SocketConfig contains control channel settings
type SocketConfig struct {
	Path string `yaml:"path"`
}

// I2CConfig contains hardware bus settings
type I2CConfig struct {
	Bus string `yaml:"bus"` // empty selects the first available bus
}

// ReconcilerConfig contains reconciliation engine settings
type ReconcilerConfig struct {
	TickInterval Duration `yaml:"tick_interval"`
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // cap on hardware bus calls per second
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// DatabaseConfig contains audit database settings. An empty path disables
// the command ledger entirely.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains command ledger retention settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 64)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 2
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 64
	}
	return c.QueueSize
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// SceneConfig contains the optional startup scene script
type SceneConfig struct {
	Script string `yaml:"script"` // empty disables the scene
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.Socket.Path == "" {
		c.Socket.Path = "/var/run/ledmond.sock"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	// Reconciler defaults
	if c.Reconciler.TickInterval == 0 {
		c.Reconciler.TickInterval = Duration(50 * time.Millisecond)
	}
	if c.Reconciler.RateLimitRPS == 0 {
		c.Reconciler.RateLimitRPS = 200.0
	}

	// Ledger defaults
	if c.Ledger.CleanupInterval == 0 {
		c.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if c.Ledger.RetentionDays == 0 {
		c.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if c.Healthcheck.Port == 0 {
		c.Healthcheck.Port = 9090
	}
	if c.Healthcheck.Host == "" {
		c.Healthcheck.Host = "127.0.0.1"
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
