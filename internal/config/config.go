// Package config provides configuration management for the watch agent and the phone library.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Transport kinds
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
	TransportNone = "none"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Watch     WatchConfig
	Database  DatabaseConfig
	Transport TransportConfig
	Pairing   PairingConfig
	Sensor    SensorConfig
	Ingest    IngestConfig
}

// ServerConfig holds phone server configuration
type ServerConfig struct {
	Port string
}

// WatchConfig holds watch agent configuration
type WatchConfig struct {
	Port     string
	DeviceID string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver                string // "sqlite" or "postgres"
	Path                  string // SQLite database file
	URL                   string
	Host                  string
	Port                  string
	Name                  string
	User                  string
	Password              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// TransportConfig holds watch-to-phone transport configuration
type TransportConfig struct {
	Kind            string // "http", "mqtt" or "none"
	Path            string // logical path records are sent on
	PhoneURL        string // phone base URL for the HTTP transport
	Timeout         time.Duration
	MQTTBroker      string
	MQTTTopicPrefix string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTQoS         int
}

// PairingConfig holds device pairing configuration
type PairingConfig struct {
	Secret   string        // HMAC secret pairing tokens are signed with (phone, CLI)
	TokenTTL time.Duration // lifetime of issued pairing tokens
	Token    string        // pairing token presented by the watch
}

// SensorConfig tunes the emulated heart-rate sensor
type SensorConfig struct {
	Interval time.Duration
	Warmup   time.Duration
	BaseBPM  float64
	Seed     int
}

// IngestConfig holds record ingestion configuration
type IngestConfig struct {
	Dedup bool // drop records whose id was already stored
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Watch: WatchConfig{
			Port:     getEnv("WATCH_PORT", "8081"),
			DeviceID: getEnv("WATCH_DEVICE_ID", "watch-1"),
		},
		Database: DatabaseConfig{
			Driver:                getEnv("DB_DRIVER", DriverSQLite),
			Path:                  getEnv("DB_PATH", "bpmetrics.db"),
			URL:                   os.Getenv("DATABASE_URL"),
			Host:                  getEnv("DB_HOST", "localhost"),
			Port:                  getEnv("DB_PORT", "5432"),
			Name:                  getEnv("DB_NAME", "bpmetrics"),
			User:                  getEnv("DB_USER", "bpmetrics"),
			Password:              GetSecret("DB_PASSWORD", "bpmetrics"),
			SSLMode:               getEnv("DB_SSLMODE", "disable"),
			MaxConnections:        getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections:    getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 2),
			ConnectionMaxLifetime: getEnvAsDuration("DB_CONNECTION_MAX_LIFETIME", "5m"),
		},
		Transport: TransportConfig{
			Kind:            getEnv("TRANSPORT", TransportHTTP),
			Path:            getEnv("TRANSPORT_PATH", "/bpm_record"),
			PhoneURL:        getEnv("PHONE_URL", "http://localhost:8080"),
			Timeout:         getEnvAsDuration("TRANSPORT_TIMEOUT", "10s"),
			MQTTBroker:      os.Getenv("MQTT_BROKER"),
			MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "bpmetrics"),
			MQTTClientID:    os.Getenv("MQTT_CLIENT_ID"),
			MQTTUsername:    os.Getenv("MQTT_USERNAME"),
			MQTTPassword:    GetSecret("MQTT_PASSWORD", ""),
			MQTTQoS:         getEnvAsInt("MQTT_QOS", 1),
		},
		Pairing: PairingConfig{
			Secret:   GetSecret("PAIRING_SECRET", "dev-pairing-secret-change-in-production"),
			TokenTTL: getEnvAsDuration("PAIRING_TOKEN_TTL", "8760h"), // 1 year
			Token:    GetSecret("PAIRING_TOKEN", ""),
		},
		Sensor: SensorConfig{
			Interval: getEnvAsDuration("SENSOR_INTERVAL", "1s"),
			Warmup:   getEnvAsDuration("SENSOR_WARMUP", "3s"),
			BaseBPM:  getEnvAsFloat("SENSOR_BASE_BPM", 72),
			Seed:     getEnvAsInt("SENSOR_SEED", 1),
		},
		Ingest: IngestConfig{
			Dedup: getEnvAsBool("INGEST_DEDUP", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Transport.Kind {
	case TransportHTTP:
		if c.Transport.PhoneURL == "" {
			return errors.New("PHONE_URL is required when TRANSPORT=http")
		}
	case TransportMQTT:
		if c.Transport.MQTTBroker == "" {
			return errors.New("MQTT_BROKER is required when TRANSPORT=mqtt")
		}
		if c.Transport.MQTTQoS < 0 || c.Transport.MQTTQoS > 2 {
			return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.Transport.MQTTQoS)
		}
	case TransportNone:
	default:
		return fmt.Errorf("unsupported TRANSPORT %q", c.Transport.Kind)
	}

	return nil
}

// ConnectionString returns the database connection string for the configured driver
func (d *DatabaseConfig) ConnectionString() string {
	if d.Driver == DriverSQLite {
		return SQLiteDSN(d.Path)
	}
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// SQLiteDSN builds a modernc.org/sqlite DSN for path with foreign keys enforced
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration or returns a default value
func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		defaultDuration, _ := time.ParseDuration(defaultValue)
		return defaultDuration
	}
	return value
}
