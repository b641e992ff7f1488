package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Config holds application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Tagger  TaggerConfig  `mapstructure:"tagger"`
}

// Validate ensures required fields are present and in range.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	if c.Tagger.ClientID == "" || c.Tagger.ClientSecret == "" {
		return errors.New("tagger credentials are required")
	}
	if c.Tagger.TokenURL == "" {
		return errors.New("tagger.token_url is required")
	}
	if c.Tagger.BatchSize <= 0 {
		return errors.New("tagger.batch_size must be positive")
	}
	if c.Tagger.MinConfidence < 0 || c.Tagger.MinConfidence > 1 {
		return errors.Errorf("tagger.min_confidence %v is outside [0, 1]", c.Tagger.MinConfidence)
	}
	if c.GitHub.RateLimit < 0 || c.Tagger.RateLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}

// ServerAddr returns host:port for HTTP server binding.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HTTPConfig contains transport settings.
type HTTPConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"`
}

// GitHubConfig configures profile lookups.
type GitHubConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	Token     string  `mapstructure:"token"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// TaggerConfig configures the image tagging API and its credentials.
type TaggerConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	TokenURL      string  `mapstructure:"token_url"`
	ClientID      string  `mapstructure:"client_id"`
	ClientSecret  string  `mapstructure:"client_secret"`
	Model         string  `mapstructure:"model"`
	MinConfidence float64 `mapstructure:"min_confidence"`
	BatchSize     int     `mapstructure:"batch_size"`
	RateLimit     float64 `mapstructure:"rate_limit"`
}
