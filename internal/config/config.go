// Package config loads service settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SDC_PRIORITIZER_HTTP_ADDR.
const EnvPrefix = "SDC_PRIORITIZER"

// Config is the service configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Store struct {
		// Path is the bbolt file holding suites and evaluation history.
		Path string `mapstructure:"path"`
	} `mapstructure:"store"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Experiment struct {
		TestsPerSuite int    `mapstructure:"tests_per_suite"`
		Parallel      int    `mapstructure:"parallel"`
		OutputDir     string `mapstructure:"output_dir"`
	} `mapstructure:"experiment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("store.path", "sdc-prioritizer.db")
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("experiment.tests_per_suite", 10)
	v.SetDefault("experiment.parallel", 4)
	v.SetDefault("experiment.output_dir", "results")
}

// Load reads the configuration. With an empty path it looks for config.yaml
// in the working directory and /etc/sdc-prioritizer/, and a missing file
// leaves the defaults in place. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sdc-prioritizer/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		slog.Debug("no config file found, using defaults")
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	if cfg.Experiment.Parallel < 1 {
		return nil, fmt.Errorf("experiment.parallel must be at least 1, got %d", cfg.Experiment.Parallel)
	}
	if cfg.Experiment.TestsPerSuite < 1 {
		return nil, fmt.Errorf("experiment.tests_per_suite must be at least 1, got %d", cfg.Experiment.TestsPerSuite)
	}
	return &cfg, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
}
