package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	BLE           BLEConfig           `yaml:"ble"`
	Transfer      TransferConfig      `yaml:"transfer"`
	Audio         AudioConfig         `yaml:"audio"`
	Output        OutputConfig        `yaml:"output"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// BLEConfig contains device discovery and connection parameters.
type BLEConfig struct {
	DeviceName          string `yaml:"device_name"`
	ScanIntervalSeconds int    `yaml:"scan_interval_seconds"`
	ScanWindowSeconds   int    `yaml:"scan_window_seconds"`
	ConnectTimeoutSecs  int    `yaml:"connect_timeout_seconds"`
}

// TransferConfig contains the per-recording transfer protocol parameters.
type TransferConfig struct {
	StallTimeoutSeconds    float64 `yaml:"stall_timeout_seconds"`
	TotalTimeoutSeconds    float64 `yaml:"total_timeout_seconds"`
	MaxAttempts            int     `yaml:"max_attempts"`
	SizePollIntervalMillis int     `yaml:"size_poll_interval_ms"`
	SizeSettleTimeoutSecs  float64 `yaml:"size_settle_timeout_seconds"`
}

// AudioConfig contains the decode and encode pipeline parameters.
type AudioConfig struct {
	Codec       string `yaml:"codec"`
	SampleRate  int    `yaml:"sample_rate"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
	Quality     int    `yaml:"quality"`
}

// OutputConfig contains artifact persistence parameters.
type OutputConfig struct {
	RecordingsDir string `yaml:"recordings_dir"`
}

// TranscriptionConfig contains transcription collaborator parameters. The
// API credential is taken from the environment, never from this file.
type TranscriptionConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIURL         string `yaml:"api_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
	RetryDelayMs   int    `yaml:"retry_delay_ms"`
}

// HTTPConfig contains the monitoring HTTP server parameters.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig contains logging parameters.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file, applies defaults for
// unset values, and validates every section.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration with all defaults applied.
func Default() *Config {
	return &Config{
		BLE: BLEConfig{
			DeviceName:          "VoiceRecorder",
			ScanIntervalSeconds: 3,
			ScanWindowSeconds:   3,
			ConnectTimeoutSecs:  10,
		},
		Transfer: TransferConfig{
			StallTimeoutSeconds:    2,
			TotalTimeoutSeconds:    120,
			MaxAttempts:            3,
			SizePollIntervalMillis: 100,
			SizeSettleTimeoutSecs:  5,
		},
		Audio: AudioConfig{
			Codec:       "adpcm",
			SampleRate:  16000,
			BitrateKbps: 64,
			Quality:     2,
		},
		Output: OutputConfig{
			RecordingsDir: "recordings",
		},
		Transcription: TranscriptionConfig{
			Enabled:        true,
			APIURL:         "https://api.openai.com/v1/audio/transcriptions",
			Model:          "gpt-4o-transcribe",
			TimeoutSeconds: 60,
			RetryAttempts:  3,
			RetryDelayMs:   1000,
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks every configuration section.
func (c *Config) Validate() error {
	if err := c.BLE.Validate(); err != nil {
		return fmt.Errorf("ble: %w", err)
	}
	if err := c.Transfer.Validate(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Validate checks BLE configuration.
func (b *BLEConfig) Validate() error {
	if b.DeviceName == "" {
		return fmt.Errorf("device_name cannot be empty")
	}
	if b.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("scan_interval_seconds must be positive, got %d", b.ScanIntervalSeconds)
	}
	if b.ScanWindowSeconds <= 0 {
		return fmt.Errorf("scan_window_seconds must be positive, got %d", b.ScanWindowSeconds)
	}
	if b.ConnectTimeoutSecs <= 0 {
		return fmt.Errorf("connect_timeout_seconds must be positive, got %d", b.ConnectTimeoutSecs)
	}
	return nil
}

// Validate checks transfer configuration.
func (t *TransferConfig) Validate() error {
	if t.StallTimeoutSeconds <= 0 {
		return fmt.Errorf("stall_timeout_seconds must be positive, got %v", t.StallTimeoutSeconds)
	}
	if t.TotalTimeoutSeconds <= 0 {
		return fmt.Errorf("total_timeout_seconds must be positive, got %v", t.TotalTimeoutSeconds)
	}
	if t.TotalTimeoutSeconds < t.StallTimeoutSeconds {
		return fmt.Errorf("total_timeout_seconds (%v) must be at least stall_timeout_seconds (%v)",
			t.TotalTimeoutSeconds, t.StallTimeoutSeconds)
	}
	if t.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", t.MaxAttempts)
	}
	if t.SizePollIntervalMillis <= 0 {
		return fmt.Errorf("size_poll_interval_ms must be positive, got %d", t.SizePollIntervalMillis)
	}
	if t.SizeSettleTimeoutSecs <= 0 {
		return fmt.Errorf("size_settle_timeout_seconds must be positive, got %v", t.SizeSettleTimeoutSecs)
	}
	return nil
}

// Validate checks audio configuration.
func (a *AudioConfig) Validate() error {
	if a.Codec != "adpcm" && a.Codec != "pcm8" {
		return fmt.Errorf("codec must be adpcm or pcm8, got %q", a.Codec)
	}
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate_kbps must be positive, got %d", a.BitrateKbps)
	}
	if a.Quality < 0 || a.Quality > 9 {
		return fmt.Errorf("quality must be in range 0-9, got %d", a.Quality)
	}
	return nil
}

// Validate checks output configuration.
func (o *OutputConfig) Validate() error {
	if o.RecordingsDir == "" {
		return fmt.Errorf("recordings_dir cannot be empty")
	}
	return nil
}

// Validate checks transcription configuration.
func (t *TranscriptionConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.APIURL == "" {
		return fmt.Errorf("api_url cannot be empty")
	}
	if t.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if t.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", t.TimeoutSeconds)
	}
	if t.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative, got %d", t.RetryAttempts)
	}
	if t.RetryDelayMs <= 0 {
		return fmt.Errorf("retry_delay_ms must be positive, got %d", t.RetryDelayMs)
	}
	return nil
}

// Validate checks HTTP server configuration.
func (h *HTTPConfig) Validate() error {
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("port must be in range 1-65535, got %d", h.Port)
	}
	return nil
}

// Validate checks logging configuration.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text, got %q", l.Format)
	}
	return nil
}

// ScanInterval returns the pause between scan windows as a duration.
func (b *BLEConfig) ScanInterval() time.Duration {
	return time.Duration(b.ScanIntervalSeconds) * time.Second
}

// ScanWindow returns the duration of one scan window.
func (b *BLEConfig) ScanWindow() time.Duration {
	return time.Duration(b.ScanWindowSeconds) * time.Second
}

// ConnectTimeout returns the connection timeout as a duration.
func (b *BLEConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutSecs) * time.Second
}

// StallTimeout returns the inter-chunk stall timeout as a duration.
func (t *TransferConfig) StallTimeout() time.Duration {
	return time.Duration(t.StallTimeoutSeconds * float64(time.Second))
}

// TotalTimeout returns the per-attempt total timeout as a duration.
func (t *TransferConfig) TotalTimeout() time.Duration {
	return time.Duration(t.TotalTimeoutSeconds * float64(time.Second))
}

// SizePollInterval returns the file-size poll interval as a duration.
func (t *TransferConfig) SizePollInterval() time.Duration {
	return time.Duration(t.SizePollIntervalMillis) * time.Millisecond
}

// SizeSettleTimeout returns the file-size settle deadline as a duration.
func (t *TransferConfig) SizeSettleTimeout() time.Duration {
	return time.Duration(t.SizeSettleTimeoutSecs * float64(time.Second))
}

// Timeout returns the transcription request timeout as a duration.
func (t *TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (t *TranscriptionConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelayMs) * time.Millisecond
}

// Address returns the HTTP listen address in host:port form.
func (h *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}
