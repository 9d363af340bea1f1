package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_TOKEN_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000", cfg.Server.FEOrigin)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, time.Second, cfg.Session.TickInterval)
	assert.Equal(t, "http://localhost:5000", cfg.Predictor.URL)
	assert.Equal(t, 10*time.Second, cfg.Predictor.Timeout)
	assert.Equal(t, "Gradient_Boosting", cfg.Predictor.DefaultModel)
	assert.False(t, cfg.ClickHouse.Enabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_TOKEN_SECRET", "s3cret")
	t.Setenv("SESSION_TICK_INTERVAL", "250ms")
	t.Setenv("PREDICTOR_DEFAULT_MODEL", "XGBoost")
	t.Setenv("CLICKHOUSE_HOST", "clickhouse")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Session.TickInterval)
	assert.Equal(t, "XGBoost", cfg.Predictor.DefaultModel)
	assert.True(t, cfg.ClickHouse.Enabled())
}

func TestValidate_MissingSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Session.TokenSecret = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "SESSION_TOKEN_SECRET: is required", err.Error())
}

func TestValidate_UnknownDefaultModel(t *testing.T) {
	cfg := validConfig()
	cfg.Predictor.DefaultModel = "Naive_Bayes"

	var vErr *ValidationError
	require.ErrorAs(t, cfg.Validate(), &vErr)
	assert.Equal(t, "PREDICTOR_DEFAULT_MODEL", vErr.Field)
}

func TestValidate_NonPositiveDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Session.TickInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Predictor.Timeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidate_FEOrigin(t *testing.T) {
	for _, origin := range []string{"", "localhost:3000", "*", "ftp://shop.example"} {
		cfg := validConfig()
		cfg.Server.FEOrigin = origin

		var vErr *ValidationError
		require.ErrorAs(t, cfg.Validate(), &vErr, origin)
		assert.Equal(t, "FE_ORIGIN", vErr.Field)
	}

	cfg := validConfig()
	cfg.Server.FEOrigin = "https://shop.example"
	assert.NoError(t, cfg.Validate())
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{FEOrigin: "http://localhost:3000"},
		Session: SessionConfig{
			TTL:          time.Minute,
			TickInterval: time.Second,
			TokenSecret:  "s3cret",
		},
		Predictor: PredictorConfig{
			Timeout:      time.Second,
			DefaultModel: "Random_Forest",
		},
	}
}
