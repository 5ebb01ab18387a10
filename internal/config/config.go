// Package config provides unified configuration for the askdeck services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Mode selects which backend implementation the services use.
type Mode string

const (
	// ModeAuto tries Redis first and falls back to the embedded store.
	ModeAuto Mode = "auto"
	// ModeRedis requires a reachable Redis backend.
	ModeRedis Mode = "redis"
	// ModeEmbedded runs against the in-process store with JSON snapshots.
	ModeEmbedded Mode = "embedded"
)

// Config holds the configuration for the daemon and the admin CLI.
type Config struct {
	// ListenAddr is the HTTP listen address of the daemon.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	Backend  BackendConfig  `json:"backend" yaml:"backend"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Profile  ProfileConfig  `json:"profile" yaml:"profile"`
	Defaults DefaultsConfig `json:"defaults" yaml:"defaults"`
}

// BackendConfig selects and parameterizes the key-value backend.
type BackendConfig struct {
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the snapshot directory for the embedded store.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig holds the Redis connection parameters.
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	DB       int    `json:"db" yaml:"db"`
	Password string `json:"password" yaml:"password"`
}

// Addr returns the host:port dial address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SessionConfig controls session issuance.
type SessionConfig struct {
	// TTLSeconds is the session expiry. Expired sessions are recreated on
	// the next login.
	TTLSeconds int `json:"ttl_seconds" yaml:"ttl_seconds"`
}

// TTL returns the session expiry as a duration.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// ProfileConfig controls profile storage.
type ProfileConfig struct {
	// TTLSeconds is the profile record expiry.
	TTLSeconds int `json:"ttl_seconds" yaml:"ttl_seconds"`
}

// TTL returns the profile expiry as a duration.
func (p ProfileConfig) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// DefaultsConfig holds the values substituted for unset event and profile
// fields.
type DefaultsConfig struct {
	Category   string `json:"category" yaml:"category"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
	Department string `json:"department" yaml:"department"`
	Role       string `json:"role" yaml:"role"`
	Status     string `json:"status" yaml:"status"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Backend: BackendConfig{
			Mode:    ModeAuto,
			DataDir: "./data",
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Session: SessionConfig{TTLSeconds: 3600},
		Profile: ProfileConfig{TTLSeconds: 86400 * 365},
		Defaults: DefaultsConfig{
			Category:   "general",
			Difficulty: "beginner",
			Department: "General",
			Role:       "Employee",
			Status:     "active",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// ASKDECK_* environment variables, in that order. A .env file in the working
// directory is honored before the environment is read.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.ListenAddr, "ASKDECK_LISTEN_ADDR")
	setString(&c.LogLevel, "ASKDECK_LOG_LEVEL")

	if v := os.Getenv("ASKDECK_BACKEND"); v != "" {
		c.Backend.Mode = Mode(v)
	}
	setString(&c.Backend.DataDir, "ASKDECK_DATA_DIR")
	setString(&c.Backend.Redis.Host, "ASKDECK_REDIS_HOST")
	setInt(&c.Backend.Redis.Port, "ASKDECK_REDIS_PORT")
	setInt(&c.Backend.Redis.DB, "ASKDECK_REDIS_DB")
	setString(&c.Backend.Redis.Password, "ASKDECK_REDIS_PASSWORD")

	setInt(&c.Session.TTLSeconds, "ASKDECK_SESSION_TTL")
	setInt(&c.Profile.TTLSeconds, "ASKDECK_PROFILE_TTL")

	setString(&c.Defaults.Category, "ASKDECK_DEFAULT_CATEGORY")
	setString(&c.Defaults.Difficulty, "ASKDECK_DEFAULT_DIFFICULTY")
	setString(&c.Defaults.Department, "ASKDECK_DEFAULT_DEPARTMENT")
	setString(&c.Defaults.Role, "ASKDECK_DEFAULT_ROLE")
	setString(&c.Defaults.Status, "ASKDECK_DEFAULT_STATUS")
}

func (c *Config) validate() error {
	switch c.Backend.Mode {
	case ModeAuto, ModeRedis, ModeEmbedded:
	default:
		return fmt.Errorf("unknown backend mode %q", c.Backend.Mode)
	}
	if c.Session.TTLSeconds <= 0 {
		return fmt.Errorf("session ttl must be positive, got %d", c.Session.TTLSeconds)
	}
	if c.Profile.TTLSeconds <= 0 {
		return fmt.Errorf("profile ttl must be positive, got %d", c.Profile.TTLSeconds)
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
