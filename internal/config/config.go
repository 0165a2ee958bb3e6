// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the full application configuration. It is populated from the
// config file, SHERPA_* environment variables, and defaults, in that order of
// precedence.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Episodes EpisodesConfig `mapstructure:"episodes" yaml:"episodes"`
	Prior    PriorConfig    `mapstructure:"prior" yaml:"prior"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EpisodesConfig locates the episode store and scopes which episodes are
// eligible for training.
type EpisodesConfig struct {
	// Root is the data directory containing the "episodes" subdirectory.
	Root string `mapstructure:"root" yaml:"root"`
	// Allowlist restricts loading to episodes whose initial URL host matches
	// one of these domains. Empty means no restriction.
	Allowlist []string `mapstructure:"allowlist" yaml:"allowlist"`
}

// PriorMode selects how the validator reacts to low-probability actions.
type PriorMode string

const (
	// ModeObserve scores and logs but never blocks an action.
	ModeObserve PriorMode = "observe"
	// ModeEnforce rejects actions scoring below the floor.
	ModeEnforce PriorMode = "enforce"
)

// PriorConfig tunes behavior-prior training and runtime validation.
type PriorConfig struct {
	CheckpointPath string    `mapstructure:"checkpoint_path" yaml:"checkpoint_path"`
	GridSize       int       `mapstructure:"grid_size" yaml:"grid_size"`
	TrainWorkers   int       `mapstructure:"train_workers" yaml:"train_workers"`
	Mode           PriorMode `mapstructure:"mode" yaml:"mode"`
	// ScoreFloor is the enforce-mode rejection threshold on the combined score.
	ScoreFloor float64 `mapstructure:"score_floor" yaml:"score_floor"`
	// CellThreshold is the spatial-cell probability below which a click is
	// considered implausible and becomes a candidate for adjustment.
	CellThreshold float64 `mapstructure:"cell_threshold" yaml:"cell_threshold"`
	// MaxSnapDistancePx bounds how far adjustment may move a click.
	MaxSnapDistancePx float64 `mapstructure:"max_snap_distance_px" yaml:"max_snap_distance_px"`
	// MaxConsecutiveRejections escalates enforce-mode rejection to a fatal
	// abort once exceeded, breaking retry loops.
	MaxConsecutiveRejections int `mapstructure:"max_consecutive_rejections" yaml:"max_consecutive_rejections"`
}

// BrowserConfig holds settings for the local headless browser driver.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ScreenW           int           `mapstructure:"screen_w" yaml:"screen_w"`
	ScreenH           int           `mapstructure:"screen_h" yaml:"screen_h"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Args              []string      `mapstructure:"args" yaml:"args"`
}

// RecorderConfig drives episode collection.
type RecorderConfig struct {
	Episodes   int    `mapstructure:"episodes" yaml:"episodes"`
	MaxSteps   int    `mapstructure:"max_steps" yaml:"max_steps"`
	InitialURL string `mapstructure:"initial_url" yaml:"initial_url"`
	// Seed makes the random collection policy reproducible.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// AgentConfig holds settings for the model-driven agent loop.
type AgentConfig struct {
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxSteps          int           `mapstructure:"max_steps" yaml:"max_steps"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	// RecordEpisodes persists agent sessions to the episode store so they
	// can feed later training runs.
	RecordEpisodes bool `mapstructure:"record_episodes" yaml:"record_episodes"`
}

// DefaultDataDir resolves the default data directory under the user's home.
func DefaultDataDir() string {
	dir, err := homedir.Expand("~/.sherpa")
	if err != nil {
		return ".sherpa"
	}
	return dir
}

// SetDefaults initializes default values for every configuration parameter.
func SetDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "sherpa-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Episodes --
	v.SetDefault("episodes.root", dataDir)
	v.SetDefault("episodes.allowlist", []string{})

	// -- Prior --
	v.SetDefault("prior.checkpoint_path", filepath.Join(dataDir, "checkpoints", "behavior_prior.json"))
	v.SetDefault("prior.grid_size", 8)
	v.SetDefault("prior.train_workers", 4)
	v.SetDefault("prior.mode", string(ModeObserve))
	v.SetDefault("prior.score_floor", 0.0005)
	v.SetDefault("prior.cell_threshold", 0.005)
	v.SetDefault("prior.max_snap_distance_px", 160.0)
	v.SetDefault("prior.max_consecutive_rejections", 5)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.screen_w", 1440)
	v.SetDefault("browser.screen_h", 900)
	v.SetDefault("browser.navigation_timeout", "45s")

	// -- Recorder --
	v.SetDefault("recorder.episodes", 5)
	v.SetDefault("recorder.max_steps", 30)
	v.SetDefault("recorder.initial_url", "https://www.google.com")
	v.SetDefault("recorder.seed", 0)

	// -- Agent --
	v.SetDefault("agent.model", "gemini-2.5-flash")
	v.SetDefault("agent.api_timeout", "60s")
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.max_steps", 40)
	v.SetDefault("agent.requests_per_minute", 30.0)
	v.SetDefault("agent.record_episodes", true)
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults always unmarshal; a failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that has already read its sources.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("agent.api_key", "SHERPA_GEMINI_API_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values. Configuration errors
// fail fast at startup, before any browser or model time is spent.
func (c *Config) Validate() error {
	if err := c.Prior.Validate(); err != nil {
		return fmt.Errorf("prior configuration invalid: %w", err)
	}
	if c.Browser.ScreenW <= 0 || c.Browser.ScreenH <= 0 {
		return fmt.Errorf("browser.screen_w and browser.screen_h must be positive")
	}
	if c.Recorder.Episodes < 0 || c.Recorder.MaxSteps <= 0 {
		return fmt.Errorf("recorder.episodes must be non-negative and recorder.max_steps positive")
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive")
	}
	if c.Agent.RequestsPerMinute <= 0 {
		return fmt.Errorf("agent.requests_per_minute must be positive")
	}
	return nil
}

// Validate checks the prior block.
func (p *PriorConfig) Validate() error {
	if p.GridSize <= 0 || p.GridSize > 64 {
		return fmt.Errorf("grid_size must be in [1, 64], got %d", p.GridSize)
	}
	if p.TrainWorkers <= 0 {
		return fmt.Errorf("train_workers must be positive, got %d", p.TrainWorkers)
	}
	if p.Mode != ModeObserve && p.Mode != ModeEnforce {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeObserve, ModeEnforce, p.Mode)
	}
	if p.ScoreFloor < 0 || p.ScoreFloor > 1 {
		return fmt.Errorf("score_floor must be in [0, 1], got %v", p.ScoreFloor)
	}
	if p.CellThreshold < 0 || p.CellThreshold > 1 {
		return fmt.Errorf("cell_threshold must be in [0, 1], got %v", p.CellThreshold)
	}
	if p.MaxSnapDistancePx < 0 {
		return fmt.Errorf("max_snap_distance_px must be non-negative, got %v", p.MaxSnapDistancePx)
	}
	if p.MaxConsecutiveRejections <= 0 {
		return fmt.Errorf("max_consecutive_rejections must be positive, got %d", p.MaxConsecutiveRejections)
	}
	return nil
}
