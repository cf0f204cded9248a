package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName            string        `mapstructure:"app_name"`
	Env                string        `mapstructure:"app_env"`
	LogLevel           string        `mapstructure:"log_level"`
	YelpToken          string        `mapstructure:"yelp_token"`
	YelpAPIHost        string        `mapstructure:"yelp_api_host"`
	SecretsFile        string        `mapstructure:"secrets_file"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
}

// secrets mirrors the layout of config/secrets.yml.
type secrets struct {
	YelpToken string `yaml:"yelp_token"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "city-dashboard")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("yelp_token", "")
	v.SetDefault("yelp_api_host", "https://api.yelp.com")
	v.SetDefault("secrets_file", "./config/secrets.yml")
	v.SetDefault("http_timeout_seconds", 10)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.YelpToken = strings.TrimSpace(cfg.YelpToken)
	if cfg.YelpToken == "" {
		token, err := tokenFromSecrets(cfg.SecretsFile)
		if err != nil {
			return nil, err
		}
		cfg.YelpToken = token
	}
	if cfg.YelpToken == "" {
		return nil, fmt.Errorf("yelp_token is required (set YELP_TOKEN or yelp_token in %s)", cfg.SecretsFile)
	}

	cfg.YelpAPIHost = strings.TrimRight(strings.TrimSpace(cfg.YelpAPIHost), "/")
	if cfg.YelpAPIHost == "" {
		return nil, fmt.Errorf("invalid yelp_api_host (must not be empty)")
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	return &cfg, nil
}

// tokenFromSecrets reads yelp_token from the YAML secrets file. A missing file yields "".
func tokenFromSecrets(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read secrets file: %w", err)
	}

	var s secrets
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode secrets file: %w", err)
	}
	return strings.TrimSpace(s.YelpToken), nil
}
