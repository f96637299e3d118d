package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Port     string `env:"PORT" envDefault:"8080"`

	// NWS requires a descriptive User-Agent identifying the client.
	NWSBaseURL   string        `env:"NWS_BASE_URL" envDefault:"https://api.weather.gov"`
	NWSUserAgent string        `env:"NWS_USER_AGENT" envDefault:"hourlycast/1.0 (ops@hourlycast.example)"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// Per fetch invocation: attempts and the first backoff delay, which
	// doubles per attempt.
	FetchMaxAttempts int           `env:"FETCH_MAX_ATTEMPTS" envDefault:"3"`
	FetchBaseDelay   time.Duration `env:"FETCH_BASE_DELAY" envDefault:"2s"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"1m"`

	// Applied to instances whose configuration message omits the field.
	DefaultUpdateInterval time.Duration `env:"DEFAULT_UPDATE_INTERVAL" envDefault:"10m"`
	DefaultHoursToShow    int           `env:"DEFAULT_HOURS_TO_SHOW" envDefault:"24"`

	// Google Maps key for optional address geocoding; empty disables it.
	GeocoderAPIKey string `env:"GEOCODER_API_KEY"`
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", slog.String("reason", err.Error()))
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
