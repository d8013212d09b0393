package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default configuration must validate: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ble:
  device_name: "MyPendant"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BLE.DeviceName != "MyPendant" {
		t.Errorf("Expected overridden device name, got %q", cfg.BLE.DeviceName)
	}
	if cfg.Transfer.StallTimeout() != 2*time.Second {
		t.Errorf("Expected default stall timeout 2s, got %v", cfg.Transfer.StallTimeout())
	}
	if cfg.Transfer.TotalTimeout() != 120*time.Second {
		t.Errorf("Expected default total timeout 120s, got %v", cfg.Transfer.TotalTimeout())
	}
	if cfg.Transfer.MaxAttempts != 3 {
		t.Errorf("Expected default max attempts 3, got %d", cfg.Transfer.MaxAttempts)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Transcription.Model != "gpt-4o-transcribe" {
		t.Errorf("Expected default model, got %q", cfg.Transcription.Model)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
ble:
  device_name: "VoiceRecorder"
  scan_interval_seconds: 5
  scan_window_seconds: 2
  connect_timeout_seconds: 15
transfer:
  stall_timeout_seconds: 1.5
  total_timeout_seconds: 60
  max_attempts: 5
audio:
  codec: "pcm8"
  sample_rate: 8000
  bitrate_kbps: 32
  quality: 5
output:
  recordings_dir: "/tmp/recordings"
http:
  host: "127.0.0.1"
  port: 9090
logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BLE.ScanInterval() != 5*time.Second {
		t.Errorf("Expected scan interval 5s, got %v", cfg.BLE.ScanInterval())
	}
	if cfg.BLE.ConnectTimeout() != 15*time.Second {
		t.Errorf("Expected connect timeout 15s, got %v", cfg.BLE.ConnectTimeout())
	}
	if cfg.Transfer.StallTimeout() != 1500*time.Millisecond {
		t.Errorf("Expected stall timeout 1.5s, got %v", cfg.Transfer.StallTimeout())
	}
	if cfg.Audio.Codec != "pcm8" {
		t.Errorf("Expected codec pcm8, got %q", cfg.Audio.Codec)
	}
	if cfg.HTTP.Address() != "127.0.0.1:9090" {
		t.Errorf("Expected address 127.0.0.1:9090, got %q", cfg.HTTP.Address())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "ble: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty device name", func(c *Config) { c.BLE.DeviceName = "" }},
		{"zero scan interval", func(c *Config) { c.BLE.ScanIntervalSeconds = 0 }},
		{"negative stall timeout", func(c *Config) { c.Transfer.StallTimeoutSeconds = -1 }},
		{"total below stall", func(c *Config) { c.Transfer.TotalTimeoutSeconds = 1 }},
		{"zero max attempts", func(c *Config) { c.Transfer.MaxAttempts = 0 }},
		{"unknown codec", func(c *Config) { c.Audio.Codec = "opus" }},
		{"quality out of range", func(c *Config) { c.Audio.Quality = 10 }},
		{"empty recordings dir", func(c *Config) { c.Output.RecordingsDir = "" }},
		{"empty model", func(c *Config) { c.Transcription.Model = "" }},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestDisabledTranscriptionSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.Transcription.Enabled = false
	cfg.Transcription.Model = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Disabled transcription must not be validated: %v", err)
	}
}
