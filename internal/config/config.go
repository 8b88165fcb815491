// Package config loads tracknote configuration from file, environment,
// and defaults.
//
// Configuration is resolved by viper in this order: explicit file, then
// `tracknote.yaml` in the working directory or $HOME/.config/tracknote/,
// then TRACKNOTE_* environment variables, then built-in defaults. A
// missing config file is not an error; defaults apply.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved application configuration.
type Config struct {
	// Roots are the directory trees to watch and scan.
	Roots []string `mapstructure:"roots"`
	// Extension is the tracked file extension, including the dot.
	Extension string `mapstructure:"extension"`
	// Database is the SQLite file path.
	Database string `mapstructure:"database"`
	// Debounce is the watcher quiet period.
	Debounce time.Duration `mapstructure:"debounce"`
	// ConflictPolicy is one of prompt, file_wins, db_wins.
	ConflictPolicy string `mapstructure:"conflict_policy"`
	// LogFile is the daemon log sink; empty means stderr.
	LogFile string `mapstructure:"log_file"`
	// CompletedLimit caps the Completed section of generated bodies.
	CompletedLimit int `mapstructure:"completed_limit"`
}

// Load reads configuration. file may be empty, in which case the default
// search paths are used.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("roots", []string{"."})
	v.SetDefault("extension", ".md")
	v.SetDefault("database", ".tracknote/tracknote.db")
	v.SetDefault("debounce", time.Second)
	v.SetDefault("conflict_policy", "prompt")
	v.SetDefault("log_file", "")
	v.SetDefault("completed_limit", 10)

	v.SetEnvPrefix("TRACKNOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("tracknote")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tracknote")
		if err := v.ReadInConfig(); err != nil {
			// Missing config is fine; anything else is a real problem.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.ConflictPolicy {
	case "prompt", "file_wins", "db_wins":
	default:
		return fmt.Errorf("invalid conflict_policy %q (want prompt, file_wins, or db_wins)", c.ConflictPolicy)
	}
	if !strings.HasPrefix(c.Extension, ".") {
		return fmt.Errorf("extension %q must start with a dot", c.Extension)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive (got %v)", c.Debounce)
	}
	return nil
}
