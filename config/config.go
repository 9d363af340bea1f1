package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"ospi/api/prediction"
)

// Config holds the application configuration, read from the environment.
type Config struct {
	Server     ServerConfig
	Session    SessionConfig
	Predictor  PredictorConfig
	ClickHouse ClickHouseConfig
	Stats      StatsConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port     string `env:"PORT"      envDefault:"8080"`
	GinMode  string `env:"GIN_MODE"  envDefault:"debug"`
	FEOrigin string `env:"FE_ORIGIN" envDefault:"http://localhost:3000"`
}

// SessionConfig controls tracker lifetime and the dwell timer.
type SessionConfig struct {
	TTL          time.Duration `env:"SESSION_TTL"           envDefault:"30m"`
	TickInterval time.Duration `env:"SESSION_TICK_INTERVAL" envDefault:"1s"`
	TokenSecret  string        `env:"SESSION_TOKEN_SECRET"`
	TokenTTL     time.Duration `env:"SESSION_TOKEN_TTL"     envDefault:"24h"`
	SecureCookie bool          `env:"SESSION_SECURE_COOKIE" envDefault:"false"`
}

type PredictorConfig struct {
	URL          string        `env:"PREDICTOR_URL"           envDefault:"http://localhost:5000"`
	Timeout      time.Duration `env:"PREDICTOR_TIMEOUT"       envDefault:"10s"`
	DefaultModel string        `env:"PREDICTOR_DEFAULT_MODEL" envDefault:"Gradient_Boosting"`
}

// ClickHouseConfig configures the optional interaction event log. An empty
// host disables it.
type ClickHouseConfig struct {
	Host       string `env:"CLICKHOUSE_HOST"`
	NativePort int    `env:"CLICKHOUSE_NATIVE_PORT" envDefault:"9000"`
	Database   string `env:"CLICKHOUSE_DB_NAME"     envDefault:"default"`
	Username   string `env:"CLICKHOUSE_USERNAME"    envDefault:"default"`
	Password   string `env:"CLICKHOUSE_PASSWORD"`
}

// Enabled reports whether the event log should be connected.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

type StatsConfig struct {
	APIKey string `env:"STATS_API_KEY"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Session.TokenSecret == "" {
		return &ValidationError{Field: "SESSION_TOKEN_SECRET", Message: "is required"}
	}
	if c.Session.TickInterval <= 0 {
		return &ValidationError{Field: "SESSION_TICK_INTERVAL", Message: "must be positive"}
	}
	if c.Session.TTL <= 0 {
		return &ValidationError{Field: "SESSION_TTL", Message: "must be positive"}
	}
	if !prediction.IsAllowedModel(c.Predictor.DefaultModel) {
		return &ValidationError{
			Field:   "PREDICTOR_DEFAULT_MODEL",
			Message: fmt.Sprintf("must be one of %v", prediction.AllowedModels()),
		}
	}
	if c.Predictor.Timeout <= 0 {
		return &ValidationError{Field: "PREDICTOR_TIMEOUT", Message: "must be positive"}
	}
	if !strings.HasPrefix(c.Server.FEOrigin, "http://") && !strings.HasPrefix(c.Server.FEOrigin, "https://") {
		return &ValidationError{Field: "FE_ORIGIN", Message: "must start with http:// or https://"}
	}
	return nil
}

// ValidationError describes a single invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
