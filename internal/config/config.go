package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"CONFETTI_QUIZ_REDIS_ADDR"`
		Password string `yaml:"password" env:"CONFETTI_QUIZ_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"CONFETTI_QUIZ_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"CONFETTI_QUIZ_REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"CONFETTI_QUIZ_POSTGRES_URL"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL         string `yaml:"ttl" env:"CONFETTI_QUIZ_QUESTIONS_TTL"`
		Autoload    bool   `yaml:"autoload" env:"CONFETTI_QUIZ_AUTOLOAD"`
		Gating      string `yaml:"gating" env:"CONFETTI_QUIZ_GATING"`
		DefaultPath string `yaml:"default_path" env:"CONFETTI_QUIZ_DEFAULT_PATH"`
	} `yaml:"quiz"`
	Manifest struct {
		BaseURL string `yaml:"base_url" env:"CONFETTI_QUIZ_MANIFEST_BASE_URL"`
		Path    string `yaml:"path" env:"CONFETTI_QUIZ_MANIFEST_PATH"`
		Timeout string `yaml:"timeout" env:"CONFETTI_QUIZ_MANIFEST_TIMEOUT"`
	} `yaml:"manifest"`
	AMQP struct {
		URL      string `yaml:"url" env:"RABBITMQ_URI"`
		Exchange string `yaml:"exchange" env:"CONFETTI_QUIZ_AMQP_EXCHANGE"`
	} `yaml:"amqp"`
	SQLite struct {
		Path string `yaml:"path" env:"CONFETTI_QUIZ_SQLITE_PATH"`
	} `yaml:"sqlite"`
	Confetti struct {
		Duration  string `yaml:"duration" env:"CONFETTI_QUIZ_CONFETTI_DURATION"`
		Particles int    `yaml:"particles" env:"CONFETTI_QUIZ_CONFETTI_PARTICLES"`
	} `yaml:"confetti"`
}

// Load reads YAML config from path, then applies a local .env file and environment
// overrides. A missing config file yields the zero config plus overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
