package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files, environment variables and flags.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	Env       string `mapstructure:"app_env"`
	LogLevel  string `mapstructure:"log_level"`
	Output    string `mapstructure:"output"`
	UserAgent string `mapstructure:"user_agent"`

	APIBaseURL       string        `mapstructure:"api_base_url"`
	RequestTimeoutMs int64         `mapstructure:"request_timeout_ms"`
	RequestTimeout   time.Duration `mapstructure:"-"`

	FallbackEnabled bool   `mapstructure:"fallback_enabled"`
	FallbackURL     string `mapstructure:"fallback_url"`
	FallbackFile    string `mapstructure:"fallback_file"`

	CookieStore           string        `mapstructure:"cookie_store"`
	CookieStorePath       string        `mapstructure:"cookie_store_path"`
	CookieTTLSeconds      int64         `mapstructure:"cookie_ttl_seconds"`
	CookieCleanupSeconds  int64         `mapstructure:"cookie_cleanup_interval_seconds"`
	CookieTTL             time.Duration `mapstructure:"-"`
	CookieCleanupInterval time.Duration `mapstructure:"-"`
}

// Flag names bound onto config keys when a flag set is passed to Load.
var flagKeys = map[string]string{
	"base-url":  "api_base_url",
	"timeout":   "request_timeout_ms",
	"log-level": "log_level",
	"output":    "output",
	"fallback":  "fallback_enabled",
}

// Load reads configuration from .env, environment variables and, when non-nil, flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "events-client")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("output", "json")
	v.SetDefault("user_agent", "events-client/1.0")
	v.SetDefault("api_base_url", "http://localhost:3036")
	v.SetDefault("request_timeout_ms", 2000)
	v.SetDefault("fallback_enabled", true)
	v.SetDefault("fallback_url", "")
	v.SetDefault("fallback_file", "")
	v.SetDefault("cookie_store", "none")
	v.SetDefault("cookie_store_path", "./data/cookies.db")
	v.SetDefault("cookie_ttl_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("cookie_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)
	if cfg.APIBaseURL == "" {
		return fmt.Errorf("invalid api_base_url (must not be empty)")
	}

	if cfg.RequestTimeoutMs <= 0 {
		return fmt.Errorf("invalid request_timeout_ms (must be positive milliseconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMs) * time.Millisecond

	cfg.Output = strings.ToLower(strings.TrimSpace(cfg.Output))
	switch cfg.Output {
	case "json", "yaml":
	default:
		return fmt.Errorf("invalid output %q (expected json or yaml)", cfg.Output)
	}

	cfg.FallbackURL = strings.TrimSpace(cfg.FallbackURL)
	cfg.FallbackFile = strings.TrimSpace(cfg.FallbackFile)
	cfg.CookieStore = strings.ToLower(strings.TrimSpace(cfg.CookieStore))

	if cfg.CookieTTLSeconds <= 0 {
		return fmt.Errorf("invalid cookie_ttl_seconds (must be positive seconds)")
	}
	if cfg.CookieCleanupSeconds <= 0 {
		return fmt.Errorf("invalid cookie_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.CookieTTL = time.Duration(cfg.CookieTTLSeconds) * time.Second
	cfg.CookieCleanupInterval = time.Duration(cfg.CookieCleanupSeconds) * time.Second

	return nil
}
