// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "change-me-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	RedisURL  string `mapstructure:"REDIS_URL"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	BlobDir           string `mapstructure:"BLOB_DIR"`
	PublicBaseURL     string `mapstructure:"PUBLIC_BASE_URL"`
	UseImageHost      bool   `mapstructure:"USE_IMAGE_HOST"`
	ImageHostURL      string `mapstructure:"IMAGE_HOST_URL"`
	ImageHostClientID string `mapstructure:"IMAGE_HOST_CLIENT_ID"`

	ProfanityTermsFile      string  `mapstructure:"PROFANITY_TERMS_FILE"`
	DefaultPostStatus       string  `mapstructure:"DEFAULT_POST_STATUS"`
	SubmissionMaxImageBytes int64   `mapstructure:"SUBMISSION_MAX_IMAGE_BYTES"`
	EditMaxImageBytes       int64   `mapstructure:"EDIT_MAX_IMAGE_BYTES"`
	ProfileMaxImageBytes    int64   `mapstructure:"PROFILE_MAX_IMAGE_BYTES"`
	MaxImageDimension       int     `mapstructure:"MAX_IMAGE_DIMENSION"`
	SkinRatioThreshold      float64 `mapstructure:"SKIN_RATIO_THRESHOLD"`

	StoreRetryAttempts int           `mapstructure:"STORE_RETRY_ATTEMPTS"`
	StoreRetryDelay    time.Duration `mapstructure:"STORE_RETRY_DELAY"`

	RateLimitSubmissions int           `mapstructure:"RATE_LIMIT_SUBMISSIONS"`
	RateLimitComments    int           `mapstructure:"RATE_LIMIT_COMMENTS"`
	RateLimitWindow      time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	TracingEnabled bool   `mapstructure:"TRACING_ENABLED"`
	OTLPEndpoint   string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "habersin")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "habersin")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "habersin.db")

	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)

	viper.SetDefault("BLOB_DIR", "./data/blobs")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("USE_IMAGE_HOST", false)
	viper.SetDefault("IMAGE_HOST_URL", "https://api.imgur.com/3/image")
	viper.SetDefault("IMAGE_HOST_CLIENT_ID", "")

	viper.SetDefault("PROFANITY_TERMS_FILE", "")
	viper.SetDefault("DEFAULT_POST_STATUS", "pending")
	viper.SetDefault("SUBMISSION_MAX_IMAGE_BYTES", 10<<20)
	viper.SetDefault("EDIT_MAX_IMAGE_BYTES", 5<<20)
	viper.SetDefault("PROFILE_MAX_IMAGE_BYTES", 20<<20)
	viper.SetDefault("MAX_IMAGE_DIMENSION", 5000)
	viper.SetDefault("SKIN_RATIO_THRESHOLD", 0.3)

	viper.SetDefault("STORE_RETRY_ATTEMPTS", 3)
	viper.SetDefault("STORE_RETRY_DELAY", "2s")

	viper.SetDefault("RATE_LIMIT_SUBMISSIONS", 10)
	viper.SetDefault("RATE_LIMIT_COMMENTS", 30)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

// LoadConfig loads application configuration from .env, config files and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		slog.Info("loaded profile-specific configuration", slog.String("file", "config."+env+".yml"))
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DefaultPostStatus = strings.ToLower(strings.TrimSpace(c.DefaultPostStatus))
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch c.DBDriver {
	case "postgres":
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when DB_DRIVER is sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	switch c.DefaultPostStatus {
	case "pending", "active":
	default:
		return fmt.Errorf("DEFAULT_POST_STATUS must be pending or active, got %q", c.DefaultPostStatus)
	}

	if c.SubmissionMaxImageBytes <= 0 || c.EditMaxImageBytes <= 0 || c.ProfileMaxImageBytes <= 0 {
		return errors.New("image byte limits must be positive")
	}
	if c.MaxImageDimension <= 0 {
		return errors.New("MAX_IMAGE_DIMENSION must be positive")
	}
	if c.SkinRatioThreshold <= 0 || c.SkinRatioThreshold > 1 {
		return errors.New("SKIN_RATIO_THRESHOLD must be in (0, 1]")
	}
	if c.StoreRetryAttempts < 1 {
		return errors.New("STORE_RETRY_ATTEMPTS must be at least 1")
	}
	if c.StoreRetryDelay < 0 {
		return errors.New("STORE_RETRY_DELAY must not be negative")
	}
	if c.UseImageHost && (c.ImageHostURL == "" || c.ImageHostClientID == "") {
		return errors.New("IMAGE_HOST_URL and IMAGE_HOST_CLIENT_ID are required when USE_IMAGE_HOST is set")
	}
	if !c.UseImageHost && c.BlobDir == "" {
		return errors.New("BLOB_DIR is required when the image host is disabled")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			slog.Warn("DB_SSLMODE is 'disable' in production")
		}
	} else if len(c.JWTSecret) < 32 {
		slog.Warn("JWT_SECRET is shorter than 32 characters")
	}

	return nil
}

// PostgresDSN builds the connection string for the postgres driver.
func (c *Config) PostgresDSN() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode,
	)
}

// Origins splits ALLOWED_ORIGINS into trimmed entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
