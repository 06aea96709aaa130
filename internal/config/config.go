// Package config loads pipeline settings from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Backends.
const (
	BackendHosted = "hosted"
	BackendONNX   = "onnx"
)

// ErrInvalid indicates a configuration value that cannot be used.
var ErrInvalid = errors.New("config: invalid value")

// Config holds pipeline settings.
type Config struct {
	APIKey    string
	Workspace string
	Project   string
	Version   int
	ModelID   string
	BaseDir   string
	Threshold float64
	Backend   string
	ONNXModel string
	Workers   int
	RPS       float64
	DBPath    string
	LogLevel  slog.Level
}

// Load reads envFiles (default: .env) into the process environment without
// overriding variables already set, then builds a Config. Missing files are
// ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	c := &Config{
		APIKey:    getEnv("ROBOFLOW_API_KEY", ""),
		Workspace: getEnv("PV_WORKSPACE", "alfred-weber-institute-of-economics"),
		Project:   getEnv("PV_PROJECT", "custom-workflow-object-detection-tgnqc"),
		Version:   getEnvAsInt("PV_VERSION", 8),
		BaseDir:   getEnv("PV_BASE_DIR", filepath.Join(".", "data")),
		Threshold: getEnvAsFloat("PV_THRESHOLD", 0.5),
		Backend:   strings.ToLower(getEnv("PV_BACKEND", BackendHosted)),
		ONNXModel: getEnv("PV_ONNX_MODEL", ""),
		Workers:   getEnvAsInt("PV_WORKERS", runtime.NumCPU()),
		RPS:       getEnvAsFloat("PV_RPS", 5),
		DBPath:    getEnv("PV_DB", ""),
		LogLevel:  getEnvAsLevel("PV_LOG_LEVEL", slog.LevelInfo),
	}
	c.ModelID = getEnv("PV_MODEL_ID", fmt.Sprintf("%s/%d", c.Project, c.Version))

	return c, nil
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("%w: PV_THRESHOLD %v outside [0, 1]", ErrInvalid, c.Threshold))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: PV_WORKERS must be positive", ErrInvalid))
	}
	if c.RPS < 0 {
		errs = append(errs, fmt.Errorf("%w: PV_RPS must not be negative", ErrInvalid))
	}
	if c.Version < 1 {
		errs = append(errs, fmt.Errorf("%w: PV_VERSION must be positive", ErrInvalid))
	}
	switch c.Backend {
	case BackendHosted:
	case BackendONNX:
		if c.ONNXModel == "" {
			errs = append(errs, fmt.Errorf("%w: PV_ONNX_MODEL required for the onnx backend", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: PV_BACKEND %q", ErrInvalid, c.Backend))
	}
	return errors.Join(errs...)
}

// DatasetDir is where the exported dataset is unpacked.
func (c *Config) DatasetDir() string {
	return filepath.Join(c.BaseDir, "dataset")
}

// OutputDir is where run artifacts are written.
func (c *Config) OutputDir() string {
	return filepath.Join(c.BaseDir, "outputs")
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
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(value)); err == nil {
			return l
		}
	}
	return defaultValue
}
