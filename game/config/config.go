package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the relay server settings
type Config struct {
	Host            string `env:"QUIZ_HOST" envDefault:"localhost"`
	Port            int    `env:"QUIZ_PORT" envDefault:"8080"`
	LogLevel        string `env:"QUIZ_LOG_LEVEL" envDefault:"info"`
	LogPretty       bool   `env:"QUIZ_LOG_PRETTY" envDefault:"true"`
	SendBuffer      int    `env:"QUIZ_SEND_BUFFER" envDefault:"256"`
	MaxMessageBytes int64  `env:"QUIZ_MAX_MESSAGE_BYTES" envDefault:"65536"`
	Ngrok           Ngrok
}

// Ngrok holds the optional tunnel settings
type Ngrok struct {
	Enabled   bool   `env:"NGROK_ENABLED"`
	AuthToken string `env:"NGROK_AUTHTOKEN"`
	Domain    string `env:"NGROK_DOMAIN"`
}

// Load reads dotenv files (".env" when none are given) and the process
// environment into a Config. Missing dotenv files are ignored and process
// variables win over dotenv values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	environment := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		for k, v := range values {
			environment[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environment[k] = v
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Both spellings of the ngrok token variable are accepted
	if cfg.Ngrok.AuthToken == "" {
		cfg.Ngrok.AuthToken = environment["NGROK_AUTH_TOKEN"]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("%w: send buffer must be positive, got %d", ErrInvalidConfig, c.SendBuffer)
	}
	if c.MaxMessageBytes < 1024 {
		return fmt.Errorf("%w: max message bytes must be at least 1024, got %d", ErrInvalidConfig, c.MaxMessageBytes)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
