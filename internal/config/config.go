package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	Host string
	Port int

	SecretKey string

	RedisURL    string
	DatabaseURL string
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port: 8080,
	}

	cfg.Host = strings.TrimSpace(os.Getenv("HOST"))
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return nil, errors.New("PORT is not a valid port number")
		}
		cfg.Port = n
	}

	cfg.SecretKey = strings.TrimSpace(os.Getenv("SECRET_KEY"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	// optional; account endpoints stay disabled without it
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if cfg.SecretKey == "" {
		return nil, errors.New("SECRET_KEY is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
