package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/socialbox/config.yaml",
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Log       LogConfig       `koanf:"log"`
	NATS      NATSConfig      `koanf:"nats"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Realtime  RealtimeConfig  `koanf:"realtime"`
}

type ServerConfig struct {
	Addr               string        `koanf:"addr"`
	CORSAllowedOrigins string        `koanf:"cors_allowed_origins"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret    string        `koanf:"jwt_secret"`
	TokenTTL     time.Duration `koanf:"token_ttl"`
	CookieName   string        `koanf:"cookie_name"`
	CookieSecure bool          `koanf:"cookie_secure"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// NATSConfig enables relationship event publishing when URL is set.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

type RateLimitConfig struct {
	FollowPerMinute int `koanf:"follow_per_minute"`
	FollowBurst     int `koanf:"follow_burst"`
}

type RealtimeConfig struct {
	SendBuffer int `koanf:"send_buffer"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			CORSAllowedOrigins: "http://localhost:5173,http://localhost:3000",
			ShutdownTimeout:    10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          DriverMySQL,
			DSN:             "root:root@tcp(localhost:3306)/socialbox?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Auth: AuthConfig{
			JWTSecret:  "socialbox-secret-key-change-in-production",
			TokenTTL:   7 * 24 * time.Hour,
			CookieName: "jwt",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		NATS: NATSConfig{
			SubjectPrefix: "socialbox",
		},
		RateLimit: RateLimitConfig{
			FollowPerMinute: 30,
			FollowBurst:     10,
		},
		Realtime: RealtimeConfig{
			SendBuffer: 256,
		},
	}
}

// envMappings maps environment variable names (lowercased) to config paths.
var envMappings = map[string]string{
	"server_addr":                  "server.addr",
	"cors_allowed_origins":         "server.cors_allowed_origins",
	"shutdown_timeout":             "server.shutdown_timeout",
	"db_driver":                    "database.driver",
	"mysql_dsn":                    "database.dsn",
	"db_max_open_conns":            "database.max_open_conns",
	"db_max_idle_conns":            "database.max_idle_conns",
	"db_conn_max_lifetime":         "database.conn_max_lifetime",
	"auto_migrate":                 "database.auto_migrate",
	"jwt_secret":                   "auth.jwt_secret",
	"token_ttl":                    "auth.token_ttl",
	"cookie_name":                  "auth.cookie_name",
	"cookie_secure":                "auth.cookie_secure",
	"log_level":                    "log.level",
	"log_format":                   "log.format",
	"log_caller":                   "log.caller",
	"nats_url":                     "nats.url",
	"nats_subject_prefix":          "nats.subject_prefix",
	"rate_limit_follow_per_minute": "rate_limit.follow_per_minute",
	"rate_limit_follow_burst":      "rate_limit.follow_burst",
	"ws_send_buffer":               "realtime.send_buffer",
}

// envTransformFunc returns an empty key for variables that are not ours so
// koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load reads configuration in three layers: built-in defaults, an optional
// YAML file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// PORT is what most hosting platforms set.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SERVER_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the mysql driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.CookieName == "" {
		errs = append(errs, errors.New("auth.cookie_name is required"))
	}
	if c.RateLimit.FollowPerMinute <= 0 || c.RateLimit.FollowBurst <= 0 {
		errs = append(errs, errors.New("rate_limit values must be positive"))
	}
	if c.Realtime.SendBuffer <= 0 {
		errs = append(errs, errors.New("realtime.send_buffer must be positive"))
	}

	return errors.Join(errs...)
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
