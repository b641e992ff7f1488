// Package config loads application configuration.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read, if present, before the environment is consulted.
const DefaultEnvFile = ".env"

// NewConfig loads configuration from the environment using viper with
// typed defaults and validation. Values in envFile fill in variables the
// environment does not already set. A missing envFile is ignored; one that
// exists but cannot be read or parsed is an error.
func NewConfig(envFile string) (*Config, error) {
	v := viper.New()
	if envFile != "" {
		envMap, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "read env file %q", envFile)
		}
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("http.request_timeout", 30*time.Second)

	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.rate_limit", 0)

	v.SetDefault("tagger.base_url", "https://api.clarifai.com")
	v.SetDefault("tagger.token_url", "https://api.clarifai.com/v2/token")
	v.SetDefault("tagger.model", "general-image-recognition")
	v.SetDefault("tagger.min_confidence", 0.0)
	v.SetDefault("tagger.batch_size", 32)
	v.SetDefault("tagger.rate_limit", 0)
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"logging.env",
		"server.host",
		"server.port",
		"server.shutdown_timeout",
		"http.request_timeout",
		"github.base_url",
		"github.token",
		"github.rate_limit",
		"tagger.base_url",
		"tagger.token_url",
		"tagger.client_id",
		"tagger.client_secret",
		"tagger.model",
		"tagger.min_confidence",
		"tagger.batch_size",
		"tagger.rate_limit",
	}

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
