package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	apperrors "go_analysis/internal/errors"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	GrpcPort   string `mapstructure:"GRPC_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	KatagoPath           string        `mapstructure:"KATAGO_PATH"`
	KatagoModel          string        `mapstructure:"KATAGO_MODEL"`
	KatagoConfig         string        `mapstructure:"KATAGO_CONFIG"`
	KatagoStartupTimeout time.Duration `mapstructure:"KATAGO_STARTUP_TIMEOUT"`
	KatagoTurnTimeout    time.Duration `mapstructure:"KATAGO_TURN_TIMEOUT"`
	KatagoTimeout        time.Duration `mapstructure:"KATAGO_TIMEOUT"`
	KatagoStopTimeout    time.Duration `mapstructure:"KATAGO_STOP_TIMEOUT"`
	WatchdogInterval     time.Duration `mapstructure:"WATCHDOG_INTERVAL"`
	PollInterval         time.Duration `mapstructure:"POLL_INTERVAL"`
	StreamBuffer         int           `mapstructure:"STREAM_BUFFER"`
	IncludeOwnership     bool          `mapstructure:"INCLUDE_OWNERSHIP"`

	MinAnalysisSteps     int `mapstructure:"MIN_ANALYSIS_STEPS"`
	MaxAnalysisSteps     int `mapstructure:"MAX_ANALYSIS_STEPS"`
	DefaultAnalysisSteps int `mapstructure:"DEFAULT_ANALYSIS_STEPS"`

	MaxSgfBytes   int `mapstructure:"MAX_SGF_BYTES"`
	MaxMoves      int `mapstructure:"MAX_MOVES"`
	MaxVariations int `mapstructure:"MAX_VARIATIONS"`
}

var defaults = map[string]any{
	"SERVER_PORT":            ":8080",
	"GRPC_PORT":              ":8082",
	"LOG_LEVEL":              "info",
	"KATAGO_PATH":            "",
	"KATAGO_MODEL":           "",
	"KATAGO_CONFIG":          "",
	"KATAGO_STARTUP_TIMEOUT": "120s",
	"KATAGO_TURN_TIMEOUT":    "30s",
	"KATAGO_TIMEOUT":         "120s",
	"KATAGO_STOP_TIMEOUT":    "5s",
	"WATCHDOG_INTERVAL":      "30s",
	"POLL_INTERVAL":          "50ms",
	"STREAM_BUFFER":          16,
	"INCLUDE_OWNERSHIP":      true,
	"MIN_ANALYSIS_STEPS":     100,
	"MAX_ANALYSIS_STEPS":     100000,
	"DEFAULT_ANALYSIS_STEPS": 1000,
	"MAX_SGF_BYTES":          500000,
	"MAX_MOVES":              1000,
	"MAX_VARIATIONS":         100,
}

// Setup reads cfgPath (if it exists) and lets environment variables override it.
// An empty path means environment and defaults only.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			v.SetConfigFile(cfgPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MinAnalysisSteps >= c.MaxAnalysisSteps {
		return fmt.Errorf("%w: MIN_ANALYSIS_STEPS (%d) must be below MAX_ANALYSIS_STEPS (%d)",
			apperrors.ErrConfiguration, c.MinAnalysisSteps, c.MaxAnalysisSteps)
	}
	if c.DefaultAnalysisSteps < c.MinAnalysisSteps || c.DefaultAnalysisSteps > c.MaxAnalysisSteps {
		return fmt.Errorf("%w: DEFAULT_ANALYSIS_STEPS (%d) must be within [%d, %d]",
			apperrors.ErrConfiguration, c.DefaultAnalysisSteps, c.MinAnalysisSteps, c.MaxAnalysisSteps)
	}
	if c.StreamBuffer < 0 {
		return fmt.Errorf("%w: STREAM_BUFFER must not be negative", apperrors.ErrConfiguration)
	}
	return nil
}

// KatagoPathsOK reports whether the engine binary, model and config all exist.
// A missing config is written on start, so it only has to be set.
func (c *Config) KatagoPathsOK() bool {
	for _, p := range []string{c.KatagoPath, c.KatagoModel} {
		if p == "" {
			return false
		}
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return c.KatagoConfig != ""
}

// ClampVisits applies the configured default and bounds to a requested visit budget.
func (c *Config) ClampVisits(visits int) int {
	if visits <= 0 {
		return c.DefaultAnalysisSteps
	}
	return max(c.MinAnalysisSteps, min(visits, c.MaxAnalysisSteps))
}
