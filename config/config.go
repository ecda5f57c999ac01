package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// DefaultSMTPPort is used when SMTP_PORT is unset.
	DefaultSMTPPort = 465
)

// Config holds all application configurations
type Config struct {
	SMTP           SMTPConfig
	DatabaseURL    string `env:"DATABASE_URL"`
	Port           string `env:"PORT" envDefault:"8080"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"database/migrations"`
	QueueWorkers   int    `env:"QUEUE_WORKERS" envDefault:"4"`
	Debug          bool   `env:"LOG_DEBUG" envDefault:"false"`
}

// SMTPConfig is the raw delivery configuration as found in the environment.
// Nothing is validated at load time; Resolve does that for every send.
type SMTPConfig struct {
	Host          string `env:"SMTP_HOST"`
	Port          string `env:"SMTP_PORT"`
	Secure        string `env:"SMTP_SECURE"`
	User          string `env:"SMTP_USER"`
	Pass          string `env:"SMTP_PASS"`
	SkipTLSVerify bool   `env:"SMTP_SKIP_TLS_VERIFY" envDefault:"false"`
}

// Credentials are the resolved values needed to submit one message.
type Credentials struct {
	Host          string
	Port          int
	Secure        bool
	User          string
	Pass          string
	SkipTLSVerify bool
}

// LoadConfig reads configuration from .env file and the environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables directly.")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.QueueWorkers <= 0 {
		cfg.QueueWorkers = 1
	}
	return &cfg, nil
}

// Resolve validates the SMTP settings and applies defaults. Port falls back
// to 465 and Secure to true when unset; a set Secure is true only for "true".
func (c SMTPConfig) Resolve() (*Credentials, error) {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if c.Pass == "" {
		missing = append(missing, "pass")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("missing SMTP config (%s); set SMTP_HOST, SMTP_USER and SMTP_PASS", strings.Join(missing, ", ")),
		}
	}

	port := DefaultSMTPPort
	if c.Port != "" {
		p, err := strconv.Atoi(strings.TrimSpace(c.Port))
		if err != nil || p <= 0 || p > 65535 {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("invalid SMTP port %q", c.Port)}
		}
		port = p
	}

	secure := true
	if c.Secure != "" {
		secure = c.Secure == "true"
	}

	return &Credentials{
		Host:          c.Host,
		Port:          port,
		Secure:        secure,
		User:          c.User,
		Pass:          c.Pass,
		SkipTLSVerify: c.SkipTLSVerify,
	}, nil
}

// ConfigurationError reports incomplete or malformed delivery settings.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// Kind labels the failure for metrics.
func (e *ConfigurationError) Kind() string { return "configuration" }
