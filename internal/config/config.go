package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Workout   WorkoutConfig   `yaml:"workout"`
	Ranking   RankingConfig   `yaml:"ranking"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig holds the shared key used by the workout runner and the login
// every request is attributed to when Tailscale is disabled.
type AuthConfig struct {
	APIKey   string `yaml:"api_key"`
	DevLogin string `yaml:"dev_login"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type WorkoutConfig struct {
	XPPerExercise int `yaml:"xp_per_exercise"`
}

type RankingConfig struct {
	ChallengeDays int    `yaml:"challenge_days"`
	Timezone      string `yaml:"timezone"`
}

// Location resolves the configured timezone used for month windows.
func (r RankingConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix IRONPRO_ and underscore-separated paths:
//
//	IRONPRO_SERVER_HOST, IRONPRO_SERVER_PORT,
//	IRONPRO_DB_HOST, IRONPRO_DB_PORT, IRONPRO_DB_NAME,
//	IRONPRO_DB_USER, IRONPRO_DB_PASSWORD, IRONPRO_DB_SSLMODE,
//	IRONPRO_AUTH_API_KEY, IRONPRO_AUTH_DEV_LOGIN,
//	IRONPRO_TAILSCALE_ENABLED, IRONPRO_TAILSCALE_HOSTNAME, IRONPRO_TAILSCALE_STATE_DIR,
//	IRONPRO_WORKOUT_XP_PER_EXERCISE,
//	IRONPRO_RANKING_CHALLENGE_DAYS, IRONPRO_RANKING_TIMEZONE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	envString("IRONPRO_SERVER_HOST", &cfg.Server.Host)
	envInt("IRONPRO_SERVER_PORT", &cfg.Server.Port)
	envString("IRONPRO_DB_HOST", &cfg.Database.Host)
	envInt("IRONPRO_DB_PORT", &cfg.Database.Port)
	envString("IRONPRO_DB_NAME", &cfg.Database.Name)
	envString("IRONPRO_DB_USER", &cfg.Database.User)
	envString("IRONPRO_DB_PASSWORD", &cfg.Database.Password)
	envString("IRONPRO_DB_SSLMODE", &cfg.Database.SSLMode)
	envString("IRONPRO_AUTH_API_KEY", &cfg.Auth.APIKey)
	envString("IRONPRO_AUTH_DEV_LOGIN", &cfg.Auth.DevLogin)
	envBool("IRONPRO_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	envString("IRONPRO_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	envString("IRONPRO_TAILSCALE_STATE_DIR", &cfg.Tailscale.StateDir)
	envInt("IRONPRO_WORKOUT_XP_PER_EXERCISE", &cfg.Workout.XPPerExercise)
	envInt("IRONPRO_RANKING_CHALLENGE_DAYS", &cfg.Ranking.ChallengeDays)
	envString("IRONPRO_RANKING_TIMEZONE", &cfg.Ranking.Timezone)
}

func applyDefaults(cfg *Config) {
	if cfg.Workout.XPPerExercise == 0 {
		cfg.Workout.XPPerExercise = 25
	}
	if cfg.Ranking.ChallengeDays == 0 {
		cfg.Ranking.ChallengeDays = 30
	}
	if cfg.Ranking.Timezone == "" {
		cfg.Ranking.Timezone = "UTC"
	}
	if cfg.Tailscale.Enabled && cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "ironpro"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if !c.Tailscale.Enabled && strings.TrimSpace(c.Auth.DevLogin) == "" {
		return fmt.Errorf("auth.dev_login is required when tailscale is disabled")
	}
	if c.Workout.XPPerExercise < 0 {
		return fmt.Errorf("workout.xp_per_exercise must be positive")
	}
	if c.Ranking.ChallengeDays < 0 {
		return fmt.Errorf("ranking.challenge_days must be positive")
	}
	if _, err := c.Ranking.Location(); err != nil {
		return fmt.Errorf("ranking.timezone: %w", err)
	}
	return nil
}
