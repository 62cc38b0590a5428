package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	SourcesFile    string `mapstructure:"sources_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	ListenAddr     string `mapstructure:"listen_addr"`

	BaseURL    string `mapstructure:"base_url"`
	AuthToken  string `mapstructure:"auth_token"`
	AuthScheme string `mapstructure:"auth_scheme"`

	RequestTimeoutSeconds  int64         `mapstructure:"request_timeout"`
	RefreshIntervalSeconds int64         `mapstructure:"refresh_interval"`
	RequestTimeout         time.Duration `mapstructure:"-"`
	RefreshInterval        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-list-loader")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("base_url", "")
	v.SetDefault("auth_token", "")
	v.SetDefault("auth_scheme", "")
	v.SetDefault("request_timeout", 15) // seconds
	v.SetDefault("refresh_interval", 300)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.AuthToken = strings.TrimSpace(c.AuthToken)
	c.AuthScheme = strings.TrimSpace(c.AuthScheme)

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout (must be positive seconds)")
	}
	if c.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("invalid refresh_interval (must be positive seconds)")
	}
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	c.RefreshInterval = time.Duration(c.RefreshIntervalSeconds) * time.Second
	return nil
}

// Redacted returns a copy safe to log: the auth token is masked.
func (c Config) Redacted() Config {
	if c.AuthToken != "" {
		c.AuthToken = "***"
	}
	return c
}
