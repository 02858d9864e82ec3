// Package config holds skillet's typed configuration, loaded from viper
// (config.yaml, SKILLET_* environment variables and bound CLI flags).
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by skillet.
const EnvPrefix = "SKILLET"

// Config is the root configuration.
type Config struct {
	LogLevel  string         `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string         `mapstructure:"log_format" yaml:"log_format"`
	Skills    SkillsConfig   `mapstructure:"skills" yaml:"skills"`
	Selector  SelectorConfig `mapstructure:"selector" yaml:"selector"`
	History   HistoryConfig  `mapstructure:"history" yaml:"history"`
	Tracing   TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
	Server    ServerConfig   `mapstructure:"server" yaml:"server"`
}

// SkillsConfig controls skill discovery.
type SkillsConfig struct {
	// Enabled turns discovery off entirely when false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Builtin includes the embedded skills with the lowest precedence.
	Builtin bool `mapstructure:"builtin" yaml:"builtin"`
	// Allowed restricts the discovered skills to these names when non-empty.
	Allowed []string `mapstructure:"allowed" yaml:"allowed"`
	// Dirs are searched after the local and global skill directories.
	Dirs []string `mapstructure:"dirs" yaml:"dirs"`
}

// SelectorConfig tunes trigger matching.
type SelectorConfig struct {
	MinScore float64 `mapstructure:"min_score" yaml:"min_score"`
}

// HistoryConfig controls the selection history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// TracingConfig mirrors telemetry.Config.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	Sampler string  `mapstructure:"sampler" yaml:"sampler"`
	Ratio   float64 `mapstructure:"ratio" yaml:"ratio"`
}

// ServerConfig is the bind address of the HTTP API.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Validate checks the values that cannot be defaulted away.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Skills: SkillsConfig{
			Enabled: true,
			Builtin: true,
		},
		Selector: SelectorConfig{MinScore: 2},
		Tracing: TracingConfig{
			Sampler: "ratio",
			Ratio:   1,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

// SetDefaults registers Defaults on v so that unset keys unmarshal to them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("skills.enabled", d.Skills.Enabled)
	v.SetDefault("skills.builtin", d.Skills.Builtin)
	v.SetDefault("skills.allowed", d.Skills.Allowed)
	v.SetDefault("skills.dirs", d.Skills.Dirs)
	v.SetDefault("selector.min_score", d.Selector.MinScore)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.db_path", d.History.DBPath)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.sampler", d.Tracing.Sampler)
	v.SetDefault("tracing.ratio", d.Tracing.Ratio)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
}

// Init prepares v the way the CLI does: env prefix, config file search path
// and defaults. A missing config file is not an error.
func Init(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.skillet")
	v.AddConfigPath(".")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load unmarshals the global viper instance.
func Load() (Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v into a Config.
func LoadFrom(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}
	return cfg, nil
}
