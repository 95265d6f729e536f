package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cleanEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Watch.Port != "8081" {
		t.Errorf("Watch.Port = %q, want %q", cfg.Watch.Port, "8081")
	}
	if cfg.Watch.DeviceID != "watch-1" {
		t.Errorf("Watch.DeviceID = %q, want %q", cfg.Watch.DeviceID, "watch-1")
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Transport.Kind != TransportHTTP {
		t.Errorf("Transport.Kind = %q, want %q", cfg.Transport.Kind, TransportHTTP)
	}
	if cfg.Transport.Path != "/bpm_record" {
		t.Errorf("Transport.Path = %q, want %q", cfg.Transport.Path, "/bpm_record")
	}
	if cfg.Transport.Timeout != 10*time.Second {
		t.Errorf("Transport.Timeout = %v, want %v", cfg.Transport.Timeout, 10*time.Second)
	}
	if cfg.Sensor.Interval != time.Second {
		t.Errorf("Sensor.Interval = %v, want %v", cfg.Sensor.Interval, time.Second)
	}
	if cfg.Sensor.BaseBPM != 72 {
		t.Errorf("Sensor.BaseBPM = %v, want %v", cfg.Sensor.BaseBPM, 72)
	}
	if !cfg.Ingest.Dedup {
		t.Error("Ingest.Dedup = false, want true")
	}
}

func TestLoad_Overrides(t *testing.T) {
	cleanEnv()

	envVars := map[string]string{
		"DB_DRIVER":         "postgres",
		"DATABASE_URL":      "postgres://u:p@db:5432/bpm",
		"TRANSPORT":         "mqtt",
		"MQTT_BROKER":       "tcp://broker:1883",
		"MQTT_QOS":          "2",
		"SENSOR_INTERVAL":   "250ms",
		"SENSOR_BASE_BPM":   "64.5",
		"SENSOR_SEED":       "42",
		"INGEST_DEDUP":      "false",
		"PAIRING_TOKEN_TTL": "24h",
	}
	for key, value := range envVars {
		os.Setenv(key, value)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Database.ConnectionString(); got != "postgres://u:p@db:5432/bpm" {
		t.Errorf("ConnectionString() = %q", got)
	}
	if cfg.Transport.MQTTQoS != 2 {
		t.Errorf("Transport.MQTTQoS = %d, want 2", cfg.Transport.MQTTQoS)
	}
	if cfg.Sensor.Interval != 250*time.Millisecond {
		t.Errorf("Sensor.Interval = %v, want 250ms", cfg.Sensor.Interval)
	}
	if cfg.Sensor.BaseBPM != 64.5 {
		t.Errorf("Sensor.BaseBPM = %v, want 64.5", cfg.Sensor.BaseBPM)
	}
	if cfg.Sensor.Seed != 42 {
		t.Errorf("Sensor.Seed = %d, want 42", cfg.Sensor.Seed)
	}
	if cfg.Ingest.Dedup {
		t.Error("Ingest.Dedup = true, want false")
	}
	if cfg.Pairing.TokenTTL != 24*time.Hour {
		t.Errorf("Pairing.TokenTTL = %v, want 24h", cfg.Pairing.TokenTTL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:  DatabaseConfig{Driver: DriverSQLite},
			Transport: TransportConfig{Kind: TransportHTTP, PhoneURL: "http://phone:8080"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid http config",
			mutate: func(c *Config) {},
		},
		{
			name:   "valid without transport",
			mutate: func(c *Config) { c.Transport.Kind = TransportNone },
		},
		{
			name:    "invalid - unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: true,
			errMsg:  `unsupported DB_DRIVER "mysql"`,
		},
		{
			name:    "invalid - unknown transport",
			mutate:  func(c *Config) { c.Transport.Kind = "bluetooth" },
			wantErr: true,
			errMsg:  `unsupported TRANSPORT "bluetooth"`,
		},
		{
			name:    "invalid - http transport without phone url",
			mutate:  func(c *Config) { c.Transport.PhoneURL = "" },
			wantErr: true,
			errMsg:  "PHONE_URL is required when TRANSPORT=http",
		},
		{
			name:    "invalid - mqtt transport without broker",
			mutate:  func(c *Config) { c.Transport.Kind = TransportMQTT },
			wantErr: true,
			errMsg:  "MQTT_BROKER is required when TRANSPORT=mqtt",
		},
		{
			name: "invalid - mqtt qos out of range",
			mutate: func(c *Config) {
				c.Transport.Kind = TransportMQTT
				c.Transport.MQTTBroker = "tcp://broker:1883"
				c.Transport.MQTTQoS = 3
			},
			wantErr: true,
			errMsg:  "MQTT_QOS must be 0, 1 or 2, got 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err.Error() != tt.errMsg {
				t.Errorf("Validate() error message = %q, want %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cleanEnv()

	os.Setenv("TRANSPORT", "mqtt")
	defer os.Unsetenv("TRANSPORT")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	if err.Error() != "MQTT_BROKER is required when TRANSPORT=mqtt" {
		t.Errorf("Load() error message = %q", err.Error())
	}
}

func TestLoad_PairingSecretUsesGetSecret(t *testing.T) {
	cleanEnv()

	secretFile := t.TempDir() + "/pairing_secret"
	if err := os.WriteFile(secretFile, []byte("file-secret\n"), 0600); err != nil {
		t.Fatalf("failed to create secret file: %v", err)
	}
	os.Setenv("PAIRING_SECRET_FILE", secretFile)
	defer os.Unsetenv("PAIRING_SECRET_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pairing.Secret != "file-secret" {
		t.Errorf("Pairing.Secret = %q, want %q", cfg.Pairing.Secret, "file-secret")
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	sqlite := DatabaseConfig{Driver: DriverSQLite, Path: "/data/bpm.db"}
	if got, want := sqlite.ConnectionString(), "file:/data/bpm.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"; got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}

	pg := DatabaseConfig{Driver: DriverPostgres, Host: "db", Port: "5432", User: "u", Password: "p", Name: "bpm", SSLMode: "disable"}
	if got, want := pg.ConnectionString(), "host=db port=5432 user=u password=p dbname=bpm sslmode=disable"; got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

// cleanEnv removes all configuration environment variables
func cleanEnv() {
	envVars := []string{
		"PORT", "WATCH_PORT", "WATCH_DEVICE_ID",
		"DB_DRIVER", "DB_PATH", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER",
		"DB_PASSWORD", "DB_PASSWORD_FILE", "DB_SSLMODE",
		"TRANSPORT", "TRANSPORT_PATH", "PHONE_URL", "TRANSPORT_TIMEOUT",
		"MQTT_BROKER", "MQTT_TOPIC_PREFIX", "MQTT_CLIENT_ID", "MQTT_USERNAME",
		"MQTT_PASSWORD", "MQTT_PASSWORD_FILE", "MQTT_QOS",
		"PAIRING_SECRET", "PAIRING_SECRET_FILE", "PAIRING_TOKEN", "PAIRING_TOKEN_FILE", "PAIRING_TOKEN_TTL",
		"SENSOR_INTERVAL", "SENSOR_WARMUP", "SENSOR_BASE_BPM", "SENSOR_SEED",
		"INGEST_DEDUP",
	}
	for _, key := range envVars {
		os.Unsetenv(key)
	}
}
