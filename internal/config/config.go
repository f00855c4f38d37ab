package config

import (
	"fmt"
	"os"
	"time"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/fetch"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/storage"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Sensor  SensorConfig  `json:"sensor"`
	Storage StorageConfig `json:"storage"`
	MQTT    MQTTConfig    `json:"mqtt"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ListenAddr string        `json:"listen_addr"`
	Timeout    time.Duration `json:"timeout"`
}

// SensorConfig holds sensor polling configuration.
type SensorConfig struct {
	URL          string        `json:"url"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxAttempts  int           `json:"max_attempts"`
	Backoff      time.Duration `json:"backoff"`
	Timeout      time.Duration `json:"timeout"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	Backend          string `json:"backend"`
	Path             string `json:"path"`
	CompressionLevel int    `json:"compression_level"`
	SampleJournal    bool   `json:"sample_journal"`
}

// MQTTConfig holds the optional sample fan-out configuration. The
// fan-out is disabled when Broker is empty.
type MQTTConfig struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
}

// DefaultConfig returns configuration from environment variables with
// defaults. The one-hour poll interval matches the persistence cadence:
// every periodic fetch also saves the series.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: getEnv("LISTEN_ADDR", ":8050"),
			Timeout:    30 * time.Second,
		},
		Sensor: SensorConfig{
			URL:          getEnv("SENSOR_URL", "http://192.168.1.116/data"),
			PollInterval: getEnvDuration("POLL_INTERVAL", time.Hour),
			MaxAttempts:  getEnvInt("FETCH_MAX_ATTEMPTS", 5),
			Backoff:      getEnvDuration("FETCH_BACKOFF", 2*time.Second),
			Timeout:      getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Backend:          getEnv("STORAGE_BACKEND", "badger"),
			Path:             getEnv("STORAGE_PATH", "./data"),
			CompressionLevel: getEnvInt("COMPRESSION_LEVEL", 3),
			SampleJournal:    getEnvBool("SAMPLE_JOURNAL", true),
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			ClientID: getEnv("MQTT_CLIENT_ID", "ruche-publisher"),
			Topic:    getEnv("MQTT_TOPIC", "ruche/mesures"),
		},
	}
}

// ToFetchConfig converts to fetch.Config.
func (c *Config) ToFetchConfig() fetch.Config {
	return fetch.Config{
		URL:         c.Sensor.URL,
		MaxAttempts: c.Sensor.MaxAttempts,
		Backoff:     c.Sensor.Backoff,
		Timeout:     c.Sensor.Timeout,
	}
}

// ToStorageConfig converts to storage.Config.
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Backend:          c.Storage.Backend,
		Path:             c.Storage.Path,
		CompressionLevel: c.Storage.CompressionLevel,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}

	if c.Sensor.URL == "" {
		return fmt.Errorf("sensor URL is required")
	}

	if c.Sensor.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1s")
	}

	if c.Sensor.MaxAttempts < 1 {
		return fmt.Errorf("fetch max attempts must be at least 1")
	}

	switch c.Storage.Backend {
	case "memory", "badger", "sqlite":
	default:
		return fmt.Errorf("storage backend must be memory, badger or sqlite")
	}

	if c.Storage.Backend != "memory" && c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
