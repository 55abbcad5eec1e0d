// Package config loads attrs settings from defaults, an optional TOML file
// and ATTRS_* environment variables, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pbaille/attrs/internal/errors"
)

// Config is the full runtime configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

type DatabaseConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

type ExtractorConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MinTextLength  int    `mapstructure:"min_text_length"`
}

// Timeout returns the per-call extractor deadline.
func (c ExtractorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type CatalogConfig struct {
	// Path to a YAML catalog replacing the embedded one. Empty means embedded.
	Path string `mapstructure:"path"`
}

// DefaultDir is where the database and user config live.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".attrs"
	}
	return filepath.Join(home, ".attrs")
}

// SetDefaults registers default values for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(DefaultDir(), "attrs.db"))
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("extractor.model", "gpt-4.1-nano")
	v.SetDefault("extractor.base_url", "")
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.timeout_seconds", 60)
	v.SetDefault("extractor.min_text_length", 10)

	v.SetDefault("catalog.path", "")
}

// New returns a viper instance wired to defaults and the environment.
// When configPath is empty, attrs.toml is looked up in the working
// directory and then in DefaultDir.
func New(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ATTRS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("extractor.api_key", "ATTRS_EXTRACTOR_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, errors.Wrap(err, "bind api key env")
	}

	SetDefaults(v)

	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configPath)
		}
		return v, nil
	}

	v.SetConfigName("attrs")
	v.AddConfigPath(".")
	v.AddConfigPath(DefaultDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return v, nil
}

// Load builds the Config from configPath (optional) and the environment.
func Load(configPath string) (*Config, error) {
	v, err := New(configPath)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper unmarshals and validates a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.WithHint(errors.New("database.path is empty"), "set ATTRS_DATABASE_PATH or pass --db")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return errors.Newf("database.busy_timeout_ms must not be negative, got %d", c.Database.BusyTimeoutMS)
	}
	if c.Extractor.TimeoutSeconds <= 0 {
		return errors.Newf("extractor.timeout_seconds must be positive, got %d", c.Extractor.TimeoutSeconds)
	}
	if c.Extractor.MinTextLength < 0 {
		return errors.Newf("extractor.min_text_length must not be negative, got %d", c.Extractor.MinTextLength)
	}
	return nil
}
