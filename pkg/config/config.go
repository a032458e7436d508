// Package config loads settings from flags, environment, an optional YAML
// file and a .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/entipedia/pkg/extract"
	"github.com/japaniel/entipedia/pkg/wikipedia"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable except UserKeyEnv.
const EnvPrefix = "ENTIPEDIA"

// UserKeyEnv holds the extraction service API key.
const UserKeyEnv = "ROSETTE_USER_KEY"

// Config is the resolved configuration.
type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	UserKey        string        `mapstructure:"user_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
	Workers        int           `mapstructure:"workers"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
	WikidataURL    string        `mapstructure:"wikidata_url"`
	WikipediaURL   string        `mapstructure:"wikipedia_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	ConfigFileUsed string        `mapstructure:"-"`
	DotEnvLoaded   bool          `mapstructure:"-"`
}

// RegisterFlags adds the flags Load reads to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("api-url", "a", extract.DefaultAPIURL, "extraction service base URL")
	fs.StringP("key", "k", "", "extraction service API key (used when "+UserKeyEnv+" is unset)")
	fs.Duration("timeout", wikipedia.DefaultTimeout, "timeout for each Wikipedia/Wikidata call")
	fs.Duration("extract-timeout", extract.DefaultTimeout, "timeout for each extraction call")
	fs.Int("workers", 1, "concurrent Wikipedia lookups")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-file", "", "write logs to a rotated file instead of stderr")
	fs.String("config", "", "path to a YAML config file")
}

var flagKeys = map[string]string{
	"api_url":         "api-url",
	"timeout":         "timeout",
	"extract_timeout": "extract-timeout",
	"workers":         "workers",
	"log_level":       "log-level",
	"log_file":        "log-file",
}

// Options controls where Load looks besides flags and the environment.
type Options struct {
	// DotEnv lists .env files to load; missing files are skipped. Nil means
	// ".env" in the working directory.
	DotEnv []string
}

// Load resolves the configuration. Precedence is flags, environment, config
// file, .env, defaults, except for the API key: the environment (or config
// file) wins over --key.
func Load(fs *pflag.FlagSet, opts Options) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", extract.DefaultAPIURL)
	v.SetDefault("timeout", wikipedia.DefaultTimeout)
	v.SetDefault("extract_timeout", extract.DefaultTimeout)
	v.SetDefault("workers", 1)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("user_key", "")
	v.SetDefault("wikidata_url", wikipedia.DefaultWikidataURL)
	v.SetDefault("wikipedia_url", wikipedia.DefaultWikipediaURL)
	v.SetDefault("user_agent", wikipedia.DefaultUserAgent)

	// .env does not override variables already set.
	dotenv := opts.DotEnv
	if dotenv == nil {
		dotenv = []string{".env"}
	}
	loaded := false
	for _, path := range dotenv {
		if err := godotenv.Load(path); err == nil {
			loaded = true
		}
	}

	if err := v.BindEnv("user_key", UserKeyEnv, EnvPrefix+"_USER_KEY"); err != nil {
		return nil, fmt.Errorf("bind %s: %w", UserKeyEnv, err)
	}

	var configFile string
	if fs != nil {
		for key, name := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		configFile, _ = fs.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFileUsed = v.ConfigFileUsed()
	cfg.DotEnvLoaded = loaded

	if cfg.UserKey == "" && fs != nil {
		cfg.UserKey, _ = fs.GetString("key")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.ExtractTimeout <= 0 {
		errs = append(errs, fmt.Errorf("extract timeout must be positive, got %s", c.ExtractTimeout))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.APIURL == "" {
		errs = append(errs, errors.New("api url is empty"))
	}
	return errors.Join(errs...)
}
