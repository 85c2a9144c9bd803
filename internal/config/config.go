package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/loykin/wgman/internal/catalog"
	"github.com/loykin/wgman/internal/logger"
	"github.com/loykin/wgman/internal/state"
	"github.com/loykin/wgman/internal/tunnel"
)

// EnvPrefix prefixes environment overrides, e.g. WGMAN_DIR or WGMAN_LOG_LEVEL.
const EnvPrefix = "WGMAN"

// FileConfig represents the TOML config file. Every key may also come from the
// environment.
type FileConfig struct {
	Dir     string        `toml:"dir" mapstructure:"dir"`
	RunFile string        `toml:"run_file" mapstructure:"run_file"`
	Tool    string        `toml:"tool" mapstructure:"tool"`
	Mock    bool          `toml:"mock" mapstructure:"mock"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
	Status  StatusConfig  `toml:"status" mapstructure:"status"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	TimeStamps bool   `toml:"timestamps" mapstructure:"timestamps"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// HistoryConfig selects where transition events are appended. Empty DSN disables history.
type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// MetricsConfig enables a node_exporter textfile written after each mutating command.
type MetricsConfig struct {
	Textfile string `toml:"textfile" mapstructure:"textfile"`
}

// StatusConfig tunes the status command. Check is an optional command such as
// "wg show {name}" run in addition to the interface lookup.
type StatusConfig struct {
	Check string `toml:"check" mapstructure:"check"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dir", catalog.DefaultDir)
	v.SetDefault("run_file", state.DefaultPath)
	v.SetDefault("tool", tunnel.DefaultTool)
	v.SetDefault("mock", false)
	v.SetDefault("log.level", logger.LevelWarn)
	v.SetDefault("log.format", logger.FormatText)
	v.SetDefault("log.color", false)
	v.SetDefault("log.timestamps", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("status.check", "")
}

// Load reads defaults, then the optional TOML file at path, then WGMAN_* environment
// variables, each overriding the previous.
func Load(path string) (FileConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return fc, nil
}

// PathFromEnv returns the config file named by WGMAN_CONFIG, if any.
func PathFromEnv() string {
	return os.Getenv(EnvPrefix + "_CONFIG")
}

// Validate rejects settings that cannot work.
func (fc FileConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(fc.Dir) == "" {
		errs = append(errs, errors.New("dir must not be empty"))
	}
	if strings.TrimSpace(fc.RunFile) == "" {
		errs = append(errs, errors.New("run_file must not be empty"))
	}
	if strings.TrimSpace(fc.Tool) == "" {
		errs = append(errs, errors.New("tool must not be empty"))
	}
	if _, err := logger.ParseLevel(fc.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch fc.Log.Format {
	case "", logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", fc.Log.Format))
	}
	return errors.Join(errs...)
}

// Logger converts the log section into logger settings.
func (fc FileConfig) Logger() logger.Config {
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      fc.Log.Level,
			Format:     fc.Log.Format,
			Color:      fc.Log.Color,
			TimeStamps: fc.Log.TimeStamps,
		},
		File: logger.FileConfig{
			Path:       fc.Log.File,
			MaxSizeMB:  fc.Log.MaxSizeMB,
			MaxBackups: fc.Log.MaxBackups,
			MaxAgeDays: fc.Log.MaxAgeDays,
			Compress:   fc.Log.Compress,
		},
	}
}
