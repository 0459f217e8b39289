// Package config loads backlinkwatch settings from defaults, an optional
// config file, .env files and BACKLINKWATCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/recheck"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BACKLINKWATCH"

// Config is the full application configuration.
type Config struct {
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Check     CheckConfig     `mapstructure:"check"`
	Recheck   RecheckConfig   `mapstructure:"recheck"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// FetchConfig controls page retrieval.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	Retries        int           `mapstructure:"retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
}

// CheckConfig controls batch runs.
type CheckConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Rate        float64       `mapstructure:"rate"`
	TargetRTT   time.Duration `mapstructure:"target_rtt"`
	FixedRate   bool          `mapstructure:"fixed_rate"`
	BatchLimit  int           `mapstructure:"batch_limit"` // 0 checks every due record
}

// RecheckConfig controls when a checked record becomes due again.
type RecheckConfig struct {
	RetryCooldown  time.Duration `mapstructure:"retry_cooldown"`
	StableInterval time.Duration `mapstructure:"stable_interval"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig controls periodic checks in server mode.
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	APIToken     string        `mapstructure:"api_token"` // empty disables bearer auth
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load builds a Config. An explicit configFile must exist; otherwise a
// backlinkwatch.{yaml,toml,json} in the working directory is read if present.
// Environment variables override file values, and .env files only set
// variables that are not already present.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("backlinkwatch")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads ENV_FILE, then .env.local, then .env. Missing files are
// skipped; earlier files win because godotenv never overrides.
func loadEnvFiles() error {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	for _, path := range []string{".env.local", ".env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// SetDefaults registers every key with its default so environment variables
// can override any of them.
func SetDefaults(v *viper.Viper) {
	def := checker.DefaultConfig()
	policy := recheck.DefaultPolicy()

	v.SetDefault("fetch.timeout", def.RequestTimeout)
	v.SetDefault("fetch.max_redirects", def.MaxRedirects)
	v.SetDefault("fetch.user_agent", def.UserAgent)
	v.SetDefault("fetch.max_body_bytes", def.MaxBodyBytes)
	v.SetDefault("fetch.retries", def.RetryPolicy.MaxRetries)
	v.SetDefault("fetch.retry_base_delay", def.RetryPolicy.BaseDelay)
	v.SetDefault("fetch.retry_max_delay", def.RetryPolicy.MaxDelay)

	v.SetDefault("check.concurrency", def.Concurrency)
	v.SetDefault("check.rate", def.RateLimit)
	v.SetDefault("check.target_rtt", def.TargetRTT)
	v.SetDefault("check.fixed_rate", false)
	v.SetDefault("check.batch_limit", 50)

	v.SetDefault("recheck.retry_cooldown", policy.RetryCooldown)
	v.SetDefault("recheck.stable_interval", policy.StableInterval)
	v.SetDefault("recheck.max_retries", policy.MaxRetries)

	v.SetDefault("database.path", "backlinks.db")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.schedule", "0 */6 * * *")

	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.api_token", "")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)

	v.SetDefault("logger.level", logger.DefaultLevel)
	v.SetDefault("logger.output_paths", []string{"stderr"})
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Fetch.Timeout <= 0 {
		problems = append(problems, "fetch.timeout must be positive")
	}
	if c.Fetch.MaxRedirects < 0 {
		problems = append(problems, "fetch.max_redirects must not be negative")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		problems = append(problems, "fetch.max_body_bytes must be positive")
	}
	if c.Fetch.Retries < 0 {
		problems = append(problems, "fetch.retries must not be negative")
	}
	if c.Check.Concurrency <= 0 {
		problems = append(problems, "check.concurrency must be positive")
	}
	if c.Check.Rate <= 0 {
		problems = append(problems, "check.rate must be positive")
	}
	if c.Check.BatchLimit < 0 {
		problems = append(problems, "check.batch_limit must not be negative")
	}
	if c.Recheck.RetryCooldown <= 0 || c.Recheck.StableInterval <= 0 {
		problems = append(problems, "recheck intervals must be positive")
	}
	if c.Recheck.MaxRetries < 0 {
		problems = append(problems, "recheck.max_retries must not be negative")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("scheduler.schedule %q is invalid: %v", c.Scheduler.Schedule, err))
		}
	}
	if !logger.ValidLevel(c.Logger.Level) {
		problems = append(problems, fmt.Sprintf("logger.level %q is invalid", c.Logger.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Checker returns the fetch and batch settings for checker.NewRunner.
func (c *Config) Checker() checker.Config {
	return checker.Config{
		RequestTimeout: c.Fetch.Timeout,
		MaxRedirects:   c.Fetch.MaxRedirects,
		UserAgent:      c.Fetch.UserAgent,
		MaxBodyBytes:   c.Fetch.MaxBodyBytes,
		RetryPolicy: checker.RetryPolicy{
			MaxRetries: c.Fetch.Retries,
			BaseDelay:  c.Fetch.RetryBaseDelay,
			MaxDelay:   c.Fetch.RetryMaxDelay,
		},
		Concurrency: c.Check.Concurrency,
		RateLimit:   c.Check.Rate,
		TargetRTT:   c.Check.TargetRTT,
		FixedRate:   c.Check.FixedRate,
	}
}

// Policy returns the recheck policy.
func (c *Config) Policy() recheck.Policy {
	return recheck.Policy{
		RetryCooldown:  c.Recheck.RetryCooldown,
		StableInterval: c.Recheck.StableInterval,
		MaxRetries:     c.Recheck.MaxRetries,
	}
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() logger.Config {
	return logger.Config{Level: c.Logger.Level, OutputPaths: c.Logger.OutputPaths}
}
