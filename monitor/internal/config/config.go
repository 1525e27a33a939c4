package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitalscan/vitalscan/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort          = 8080
	DefaultAuthHeader        = "X-API-Key"
	DefaultBroadcastInterval = 500 * time.Millisecond
	DefaultProgressInterval  = 300 * time.Millisecond
	DefaultProgressStep      = 10
	DefaultProgressCap       = 90
	DefaultFrameRate         = 30.0
	DefaultHeartRate         = 75.0
	DefaultBreathRate        = 15.0
	DefaultNoise             = 0.05
)

// DefaultDurations is the collection window per measurement kind.
var DefaultDurations = map[types.Kind]time.Duration{
	types.KindSpO2HeartRate: 30 * time.Second,
	types.KindRespiratory:   30 * time.Second,
	types.KindBloodPressure: 15 * time.Second,
}

// Config is the top-level configuration for the monitor daemon and CLI.
type Config struct {
	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	HTTP        HTTPConfig        `yaml:"http"`
	Measurement MeasurementConfig `yaml:"measurement"`
	History     HistoryConfig     `yaml:"history"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Alerts      AlertsConfig      `yaml:"alerts"`
}

// Level maps LogLevel onto a slog level. Unknown values map to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HTTPConfig holds the REST API and WebSocket listener settings.
type HTTPConfig struct {
	// Port is the port the REST API and WebSocket hub listen on.
	Port int `yaml:"port"`

	// Auth configures how incoming REST API requests are authenticated.
	Auth AuthConfig `yaml:"auth"`

	// BroadcastInterval is how often the WebSocket hub pushes session state.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// AuthConfig configures REST API authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header the key is read from. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// MeasurementConfig tunes the measurement session.
type MeasurementConfig struct {
	// Durations is the collection window per kind (spo2-hr, respiratory,
	// blood-pressure). Kinds not listed use DefaultDurations.
	Durations map[types.Kind]time.Duration `yaml:"durations"`

	// ProgressInterval, ProgressStep and ProgressCap drive the advisory
	// progress ticker while collecting.
	ProgressInterval time.Duration `yaml:"progress_interval"`
	ProgressStep     int           `yaml:"progress_step"`
	ProgressCap      int           `yaml:"progress_cap"`

	// FrameRate is the camera frame rate used to convert peak intervals to bpm.
	FrameRate float64 `yaml:"frame_rate"`

	// Seed seeds the inference randomness. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// Duration returns the configured collection window for kind.
func (m MeasurementConfig) Duration(kind types.Kind) time.Duration {
	if d, ok := m.Durations[kind]; ok && d > 0 {
		return d
	}
	return DefaultDurations[kind]
}

// HistoryConfig is the caller-side retention policy for measurement history.
type HistoryConfig struct {
	// Retention drops records older than this. 0 keeps everything.
	Retention time.Duration `yaml:"retention"`

	// MaxRecords keeps only the newest n records. 0 keeps everything.
	MaxRecords int `yaml:"max_records"`
}

// SensorConfig selects and configures the sample collector.
type SensorConfig struct {
	// Mode is one of: synthetic | replay.
	Mode string `yaml:"mode"`

	// ReplayFile is the recordings file used when Mode == "replay".
	ReplayFile string `yaml:"replay_file"`

	// Synthetic configures the generated waveforms when Mode == "synthetic".
	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// SyntheticConfig describes the simulated subject.
type SyntheticConfig struct {
	HeartRate  float64 `yaml:"heart_rate"`  // beats per minute
	BreathRate float64 `yaml:"breath_rate"` // breaths per minute
	Noise      float64 `yaml:"noise"`       // relative to pulse amplitude

	// Seed seeds the waveform noise. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`

	// Deny lists sensors whose permission request is refused.
	Deny []string `yaml:"deny"`
}

// AlertsConfig holds all alerting rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines a threshold-based alert condition on a finished reading.
type AlertRule struct {
	// Name is the human-readable alert identifier.
	Name string `yaml:"name"`

	// Condition is an expression like "spo2 < 92" or "status == abnormal".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values. It is also
// what the CLI runs with when no config file is given.
func Defaults() *Config {
	durations := make(map[types.Kind]time.Duration, len(DefaultDurations))
	for k, d := range DefaultDurations {
		durations[k] = d
	}
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Port:              DefaultHTTPPort,
			Auth:              AuthConfig{Mode: "none", Header: DefaultAuthHeader},
			BroadcastInterval: DefaultBroadcastInterval,
		},
		Measurement: MeasurementConfig{
			Durations:        durations,
			ProgressInterval: DefaultProgressInterval,
			ProgressStep:     DefaultProgressStep,
			ProgressCap:      DefaultProgressCap,
			FrameRate:        DefaultFrameRate,
		},
		Sensor: SensorConfig{
			Mode: "synthetic",
			Synthetic: SyntheticConfig{
				HeartRate:  DefaultHeartRate,
				BreathRate: DefaultBreathRate,
				Noise:      DefaultNoise,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", cfg.HTTP.Port)
	}
	switch cfg.HTTP.Auth.Mode {
	case "apikey":
		if cfg.HTTP.Auth.KeyEnv == "" {
			return fmt.Errorf("http.auth.key_env is required when mode is apikey")
		}
	case "none", "":
	default:
		return fmt.Errorf("http.auth: unknown mode %q", cfg.HTTP.Auth.Mode)
	}
	if cfg.HTTP.Auth.Header == "" {
		return fmt.Errorf("http.auth.header must not be empty")
	}
	if cfg.HTTP.BroadcastInterval <= 0 {
		return fmt.Errorf("http.broadcast_interval must be positive")
	}

	m := cfg.Measurement
	for k, d := range m.Durations {
		if _, err := types.ParseKind(string(k)); err != nil {
			return fmt.Errorf("measurement.durations: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("measurement.durations[%s] must be positive", k)
		}
	}
	if m.ProgressInterval <= 0 {
		return fmt.Errorf("measurement.progress_interval must be positive")
	}
	if m.ProgressStep <= 0 {
		return fmt.Errorf("measurement.progress_step must be positive")
	}
	if m.ProgressCap <= 0 || m.ProgressCap >= 100 {
		return fmt.Errorf("measurement.progress_cap must be in (0, 100)")
	}
	if m.FrameRate <= 0 {
		return fmt.Errorf("measurement.frame_rate must be positive")
	}

	if cfg.History.Retention < 0 {
		return fmt.Errorf("history.retention must not be negative")
	}
	if cfg.History.MaxRecords < 0 {
		return fmt.Errorf("history.max_records must not be negative")
	}

	switch cfg.Sensor.Mode {
	case "synthetic", "":
		s := cfg.Sensor.Synthetic
		if s.HeartRate <= 0 || s.BreathRate <= 0 {
			return fmt.Errorf("sensor.synthetic: heart_rate and breath_rate must be positive")
		}
		if s.Noise < 0 {
			return fmt.Errorf("sensor.synthetic.noise must not be negative")
		}
		for i, d := range s.Deny {
			if !types.SensorKind(d).Valid() {
				return fmt.Errorf("sensor.synthetic.deny[%d]: unknown sensor %q", i, d)
			}
		}
	case "replay":
		if cfg.Sensor.ReplayFile == "" {
			return fmt.Errorf("sensor.replay_file is required when mode is replay")
		}
	default:
		return fmt.Errorf("sensor: unknown mode %q", cfg.Sensor.Mode)
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
