package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	JWTExpiryH  int    `env:"JWT_EXPIRY_H" envDefault:"24"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	AppBaseURL  string `env:"APP_BASE_URL" envDefault:"https://app.renolink.io"`

	// Single ledger currency for the whole platform.
	Currency string `env:"LEDGER_CURRENCY" envDefault:"USD"`

	RetryMaxAttempts     int `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryAttemptTimeoutS int `env:"RETRY_ATTEMPT_TIMEOUT_S" envDefault:"5"`
	RetryBaseDelayMS     int `env:"RETRY_BASE_DELAY_MS" envDefault:"100"`

	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	EmailFrom      string `env:"EMAIL_FROM" envDefault:"no-reply@renolink.io"`
	EmailFromName  string `env:"EMAIL_FROM_NAME" envDefault:"RenoLink"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
