// Package config loads service configuration.
//
// Order: built-in defaults, then an optional YAML file, then environment
// variables. In development a .env file in the working directory is read first.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string `yaml:"env"`
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	AnnotationAPI AnnotationAPIConfig `yaml:"annotation_api"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Redis         RedisConfig         `yaml:"redis"`
	OTel          OTelConfig          `yaml:"otel"`
}

// AnnotationAPIConfig is where the session service sends annotation calls.
// Token is also the bearer token the reference API accepts.
type AnnotationAPIConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr             string `yaml:"addr"`
	NotificationsKey string `yaml:"notifications_key"`
	NotificationsMax int    `yaml:"notifications_max"`
}

type OTelConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Headers        string `yaml:"headers"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

func Default() Config {
	return Config{
		Env:      "development",
		HTTPAddr: ":8080",
		LogLevel: "",
		AnnotationAPI: AnnotationAPIConfig{
			URL: "http://localhost:3000/api",
		},
		Redis: RedisConfig{
			NotificationsKey: "annotator:notifications",
			NotificationsMax: 100,
		},
		OTel: OTelConfig{
			ServiceName:    "job-annotation-service",
			ServiceVersion: "dev",
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	if envOr("APP_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Env = envOr("APP_ENV", cfg.Env)
	cfg.HTTPAddr = envOr("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)

	cfg.AnnotationAPI.URL = envOr("ANNOTATION_API_URL", cfg.AnnotationAPI.URL)
	cfg.AnnotationAPI.Token = envOr("ANNOTATION_API_TOKEN", cfg.AnnotationAPI.Token)
	cfg.AnnotationAPI.Timeout = envDurationOr("ANNOTATION_API_TIMEOUT", cfg.AnnotationAPI.Timeout)

	cfg.Postgres.DSN = envOr("POSTGRES_DSN", cfg.Postgres.DSN)

	cfg.Redis.Addr = envOr("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.NotificationsKey = envOr("REDIS_NOTIFICATIONS_KEY", cfg.Redis.NotificationsKey)
	cfg.Redis.NotificationsMax = envIntOr("NOTIFICATIONS_MAX", cfg.Redis.NotificationsMax)

	cfg.OTel.Endpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTel.Endpoint)
	cfg.OTel.Headers = envOr("OTEL_EXPORTER_OTLP_HEADERS", cfg.OTel.Headers)
	cfg.OTel.ServiceName = envOr("OTEL_SERVICE_NAME", cfg.OTel.ServiceName)
	cfg.OTel.ServiceVersion = envOr("OTEL_SERVICE_VERSION", cfg.OTel.ServiceVersion)

	return cfg, nil
}

// ValidateServe checks what the session service needs.
func (c Config) ValidateServe() error {
	if c.AnnotationAPI.URL == "" {
		return errors.New("ANNOTATION_API_URL is required")
	}
	if c.AnnotationAPI.Timeout < 0 {
		return errors.New("ANNOTATION_API_TIMEOUT must not be negative")
	}
	return nil
}

// ValidateAPI checks what the reference Annotation API needs.
func (c Config) ValidateAPI() error {
	if c.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	return nil
}

func (c Config) IsProduction() bool  { return c.Env == "production" }
func (c Config) IsDevelopment() bool { return c.Env == "development" }

func (c OTelConfig) Enabled() bool { return c.Endpoint != "" }

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password: user:pass@ -> user:****@.
func RedactDSN(dsn string) string {
	return dsnPassword.ReplaceAllString(dsn, `://$1:****@`)
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// envDurationOr accepts Go durations ("5s") or plain milliseconds ("5000").
func envDurationOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
