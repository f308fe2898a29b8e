// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port                 string  `mapstructure:"PORT"`
	Env                  string  `mapstructure:"APP_ENV"`
	APIBaseURL           string  `mapstructure:"API_BASE_URL"`
	APITimeoutSeconds    int     `mapstructure:"API_TIMEOUT_SECONDS"`
	StorageDriver        string  `mapstructure:"STORAGE_DRIVER"`
	StorageDSN           string  `mapstructure:"STORAGE_DSN"`
	RedisURL             string  `mapstructure:"REDIS_URL"`
	QueryStaleSeconds    int     `mapstructure:"QUERY_STALE_SECONDS"`
	QueryPersistTTLSecs  int     `mapstructure:"QUERY_PERSIST_TTL_SECONDS"`
	SessionCookieName    string  `mapstructure:"SESSION_COOKIE_NAME"`
	SessionIdleMinutes   int     `mapstructure:"SESSION_IDLE_MINUTES"`
	AllowedOrigins       string  `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags         string  `mapstructure:"FEATURE_FLAGS"`
	UploadMaxImageMB     int     `mapstructure:"UPLOAD_MAX_IMAGE_MB"`
	UploadMaxVideoMB     int     `mapstructure:"UPLOAD_MAX_VIDEO_MB"`
	UploadMaxDocumentMB  int     `mapstructure:"UPLOAD_MAX_DOCUMENT_MB"`
	TracingEnabled       bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter      string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint         string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
	RateLimitActionsPerM int     `mapstructure:"RATE_LIMIT_ACTIONS_PER_MINUTE"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "5173")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("API_BASE_URL", "http://localhost:4000/api")
	viper.SetDefault("API_TIMEOUT_SECONDS", 0)
	viper.SetDefault("STORAGE_DRIVER", "sqlite")
	viper.SetDefault("STORAGE_DSN", "trazio-web.db")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("QUERY_STALE_SECONDS", 30)
	viper.SetDefault("QUERY_PERSIST_TTL_SECONDS", 300)
	viper.SetDefault("SESSION_COOKIE_NAME", "trazio_sid")
	viper.SetDefault("SESSION_IDLE_MINUTES", 120)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "highlights=on,video_uploads=on")
	viper.SetDefault("UPLOAD_MAX_IMAGE_MB", 10)
	viper.SetDefault("UPLOAD_MAX_VIDEO_MB", 100)
	viper.SetDefault("UPLOAD_MAX_DOCUMENT_MB", 20)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
	viper.SetDefault("RATE_LIMIT_ACTIONS_PER_MINUTE", 60)
}

// Validate ensures that required configuration values are present and sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	switch c.StorageDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be sqlite or postgres, got %q", c.StorageDriver)
	}
	if c.StorageDSN == "" {
		return errors.New("STORAGE_DSN is required")
	}
	if c.APITimeoutSeconds < 0 {
		return errors.New("API_TIMEOUT_SECONDS cannot be negative")
	}
	if c.UploadMaxImageMB <= 0 || c.UploadMaxVideoMB <= 0 || c.UploadMaxDocumentMB <= 0 {
		return errors.New("upload limits must be positive")
	}
	if c.SessionCookieName == "" {
		return errors.New("SESSION_COOKIE_NAME is required")
	}

	if c.IsProduction() {
		if u.Scheme != "https" {
			return errors.New("API_BASE_URL must use https in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// APITimeout is the outbound request timeout; zero means none.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// QueryStaleTime is how long fetched data is served without refetching.
func (c *Config) QueryStaleTime() time.Duration {
	return time.Duration(c.QueryStaleSeconds) * time.Second
}

// QueryPersistTTL bounds how long query data survives in the redis store.
func (c *Config) QueryPersistTTL() time.Duration {
	return time.Duration(c.QueryPersistTTLSecs) * time.Second
}

// SessionIdle is how long an unused browser session is kept in memory.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}
