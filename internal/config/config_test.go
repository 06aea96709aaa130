package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"ROBOFLOW_API_KEY", "PV_WORKSPACE", "PV_PROJECT", "PV_VERSION",
	"PV_MODEL_ID", "PV_BASE_DIR", "PV_THRESHOLD", "PV_BACKEND",
	"PV_ONNX_MODEL", "PV_WORKERS", "PV_RPS", "PV_DB", "PV_LOG_LEVEL",
}

// clearEnv unsets every variable Load reads. t.Setenv restores them after
// the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unset %s: %v", k, err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Version != 8 || c.Threshold != 0.5 || c.Backend != BackendHosted {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.ModelID != "custom-workflow-object-detection-tgnqc/8" {
		t.Errorf("ModelID = %q", c.ModelID)
	}
	if c.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", c.LogLevel)
	}
	if c.OutputDir() != filepath.Join("data", "outputs") {
		t.Errorf("OutputDir() = %q", c.OutputDir())
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	// Set variables win over the file.
	t.Setenv("PV_WORKERS", "3")

	path := filepath.Join(t.TempDir(), ".env")
	content := "ROBOFLOW_API_KEY=secret\nPV_PROJECT=roofs\nPV_VERSION=2\nPV_WORKERS=9\nPV_THRESHOLD=0.35\nPV_BACKEND=ONNX\nPV_LOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.APIKey != "secret" || c.ModelID != "roofs/2" {
		t.Errorf("APIKey=%q ModelID=%q", c.APIKey, c.ModelID)
	}
	if c.Workers != 3 {
		t.Errorf("Workers = %d, want 3", c.Workers)
	}
	if c.Threshold != 0.35 || c.Backend != BackendONNX || c.LogLevel != slog.LevelDebug {
		t.Errorf("Threshold=%v Backend=%q LogLevel=%v", c.Threshold, c.Backend, c.LogLevel)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PV_VERSION", "eight")
	t.Setenv("PV_THRESHOLD", "high")
	t.Setenv("PV_LOG_LEVEL", "loud")

	c, err := Load(filepath.Join(t.TempDir(), "none"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Version != 8 || c.Threshold != 0.5 || c.LogLevel != slog.LevelInfo {
		t.Errorf("fallbacks not applied: %+v", c)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Version: 8, Threshold: 0.5, Backend: BackendHosted, Workers: 4, RPS: 5}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "threshold", mutate: func(c *Config) { c.Threshold = 1.5 }, wantErr: true},
		{name: "workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "rps", mutate: func(c *Config) { c.RPS = -1 }, wantErr: true},
		{name: "backend", mutate: func(c *Config) { c.Backend = "tpu" }, wantErr: true},
		{name: "onnx without model", mutate: func(c *Config) { c.Backend = BackendONNX }, wantErr: true},
		{name: "onnx with model", mutate: func(c *Config) { c.Backend = BackendONNX; c.ONNXModel = "m.onnx" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
