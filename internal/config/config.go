// Package config loads runtime settings from the environment (and an optional .env file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the application reads at startup.
type Config struct {
	Port int

	LabelsPath        string
	ModelPath         string
	ModelMetadataPath string
	ORTLibraryPath    string
	AccelDevices      []string // Tried in order; empty means CPU only

	ConfidenceThreshold float64 // Strictly between 0 and 1
	StreamInterval      time.Duration
	SessionTimeLimit    time.Duration
	ConcurrencyLimit    int // Number of classification workers
	QueueSize           int // Frames allowed to wait for a worker

	DBPath          string
	RetentionSweep  time.Duration
	RetentionMaxAge time.Duration

	StaticDir string
	CameraID  int // Negative disables the server-side camera
	LogDir    string
	Tray      bool
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnvAsInt("PORT", 8080),
		LabelsPath:          getEnv("LABELS_PATH", filepath.Join("datasets", "jester_subset", "jester-v1-labels.csv")),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join("models", "gesture.onnx")),
		ModelMetadataPath:   getEnv("MODEL_METADATA_PATH", filepath.Join("models", "gesture.json")),
		ORTLibraryPath:      getEnv("ORT_LIBRARY_PATH", ""),
		AccelDevices:        getEnvAsList("ACCEL_DEVICES", []string{"cuda"}),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.7),
		StreamInterval:      time.Duration(getEnvAsInt("STREAM_INTERVAL_MS", 100)) * time.Millisecond,
		SessionTimeLimit:    time.Duration(getEnvAsInt("SESSION_TIME_LIMIT", 30)) * time.Second,
		ConcurrencyLimit:    getEnvAsInt("CONCURRENCY_LIMIT", 30),
		QueueSize:           getEnvAsInt("QUEUE_SIZE", 30),
		DBPath:              getEnv("DB_PATH", defaultDBPath()),
		RetentionSweep:      time.Duration(getEnvAsInt("RETENTION_SWEEP", 180)) * time.Second,
		RetentionMaxAge:     time.Duration(getEnvAsInt("RETENTION_MAX_AGE", 600)) * time.Second,
		StaticDir:           getEnv("STATIC_DIR", ""),
		CameraID:            getEnvAsInt("CAMERA_ID", -1),
		LogDir:              getEnv("LOG_DIR", ""),
		Tray:                getEnvAsBool("TRAY", false),
	}
}

// Validate reports settings that cannot be used. An explicit
// CONFIDENCE_THRESHOLD of 0 is rejected rather than replaced by the default.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1, got %v", c.ConfidenceThreshold)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// defaultDBPath places the history database under ~/.gestureview.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "gestureview.db"
	}
	return filepath.Join(homeDir, ".gestureview", "gestureview.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value. The variable set to "none"
// yields an empty list.
func getEnvAsList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	if strings.EqualFold(value, "none") {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
