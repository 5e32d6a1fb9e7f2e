package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
		},
		Engine: EngineConfig{
			SampleRate: 48000,
			Quantum:    256,
		},
		Synthesis: SynthesisConfig{
			Endpoint:      "https://api.example.com/synthesize",
			APIKey:        "test-key",
			Timeout:       60,
			MaxRetries:    3,
			MaxConcurrent: 4,
		},
		Analysis: AnalysisConfig{
			Endpoint: "https://api.example.com/analyze",
			APIKey:   "test-key",
			Timeout:  300,
		},
		Export: ExportConfig{
			OutputDir: "./exports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid configuration",
			mutate: func(c *Config) {},
		},
		{
			name:        "invalid http port",
			mutate:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "invalid engine sample rate",
			mutate:      func(c *Config) { c.Engine.SampleRate = 22050 },
			expectError: true,
			errorMsg:    "sample_rate must be 44100 or 48000",
		},
		{
			name:        "quantum too small",
			mutate:      func(c *Config) { c.Engine.Quantum = 16 },
			expectError: true,
			errorMsg:    "quantum must be between",
		},
		{
			name:        "missing synthesis endpoint",
			mutate:      func(c *Config) { c.Synthesis.Endpoint = "" },
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name:        "negative synthesis retries",
			mutate:      func(c *Config) { c.Synthesis.MaxRetries = -1 },
			expectError: true,
			errorMsg:    "max_retries cannot be negative",
		},
		{
			name:        "missing export dir",
			mutate:      func(c *Config) { c.Export.OutputDir = "" },
			expectError: true,
			errorMsg:    "output_dir cannot be empty",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "trace" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	configYAML := `
http:
  port: 8080
  address: "0.0.0.0"
engine:
  sample_rate: 48000
  quantum: 256
synthesis:
  endpoint: "https://api.example.com/synthesize"
  api_key: "${REDUB_SYNTH_KEY}"
  timeout: 60
  max_retries: 3
  max_concurrent: 4
analysis:
  endpoint: "https://api.example.com/analyze"
  api_key: "test-key"
  timeout: 300
export:
  output_dir: "./exports"
logging:
  level: "info"
  format: "json"
  output: "stdout"
`

	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	t.Setenv("REDUB_SYNTH_KEY", "secret-from-env")

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Engine.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", config.Engine.SampleRate)
	}
	if config.Synthesis.APIKey != "secret-from-env" {
		t.Errorf("Environment expansion failed, got %q", config.Synthesis.APIKey)
	}
}

func TestConfigLoadInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("engine:\n  sample_rate: not_a_number\n"), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for unparseable yaml")
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	synthesis := SynthesisConfig{Timeout: 60}
	if synthesis.GetTimeoutDuration() != 60*time.Second {
		t.Errorf("Expected 60 seconds, got %v", synthesis.GetTimeoutDuration())
	}

	analysis := AnalysisConfig{Timeout: 300}
	if analysis.GetTimeoutDuration() != 5*time.Minute {
		t.Errorf("Expected 5 minutes, got %v", analysis.GetTimeoutDuration())
	}
}
