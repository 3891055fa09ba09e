// Package config loads runtime settings from flags, environment, an
// optional config file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/gitgraph-dev/gitgraph/internal/state"
)

const (
	EnvPrefix  = "GITGRAPH"
	maxWorkers = 64
)

type Config struct {
	// GitBinary and DefaultRemote have no default here: when unset they
	// come from the persisted state.
	GitBinary     string        `mapstructure:"git_binary"`
	Backend       string        `mapstructure:"backend" validate:"oneof=cli native"`
	DefaultRemote string        `mapstructure:"default_remote"`
	StatePath     string        `mapstructure:"state_path"`
	ActionsFile   string        `mapstructure:"actions_file"`
	SearchWorkers int           `mapstructure:"search_workers" validate:"gte=0"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Theme         string        `mapstructure:"theme" validate:"oneof=auto light dark"`
	Color         string        `mapstructure:"color" validate:"oneof=auto always never"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce" validate:"gte=0"`
}

var keys = []string{
	"git_binary",
	"backend",
	"default_remote",
	"state_path",
	"actions_file",
	"search_workers",
	"log_level",
	"theme",
	"color",
	"watch_debounce",
}

// New returns a viper instance with defaults and GITGRAPH_* environment
// bindings. Callers bind their flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("backend", "cli")
	v.SetDefault("search_workers", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("theme", "auto")
	v.SetDefault("color", "auto")
	v.SetDefault("watch_debounce", 350*time.Millisecond)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, k := range keys {
		// explicit binding so Unmarshal sees keys without defaults
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads file, or searches <user config dir>/gitgraph/config.* when file
// is empty. Only a missing searched-for file is tolerated.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "gitgraph"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Debug("config file loaded", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	cfg.SearchWorkers = clampWorkers(cfg.SearchWorkers)
	if cfg.StatePath == "" {
		path, err := state.DefaultPath()
		if err != nil {
			return Config{}, err
		}
		cfg.StatePath = path
	}
	return cfg, nil
}

func clampWorkers(n int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return min(max(n, 1), maxWorkers)
}

// ApplyState fills the settings the user did not configure from the
// persisted state.
func (c *Config) ApplyState(st state.State) {
	if c.GitBinary == "" {
		c.GitBinary = st.GitBinary
	}
	if c.DefaultRemote == "" {
		c.DefaultRemote = st.DefaultRemote
	}
}

func (c Config) Level() slog.Level {
	switch c.LogLevel {
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
