// Package config loads cadence configuration from defaults, a file, the
// environment and command-line overrides.
package config

import (
	"fmt"
	"time"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/logging"
	"github.com/lazypower/cadence/internal/metrics"
	"github.com/lazypower/cadence/internal/selector"
)

// Config holds all cadence configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Bind            string        `mapstructure:"bind" validate:"required"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // empty resolves to store.DefaultDBPath()
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path" validate:"required,startswith=/"`
	DueGaugeEvery time.Duration `mapstructure:"due_gauge_every" validate:"gte=0"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     float64       `mapstructure:"rps" validate:"gt=0"`
	Burst   int           `mapstructure:"burst" validate:"min=1"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// SchedulerConfig holds the parameters new decks start with and the
// boundary daily quotas reset at.
type SchedulerConfig struct {
	Timezone  string `mapstructure:"timezone" validate:"timezone"`
	StartHour int    `mapstructure:"start_hour" validate:"min=0,max=23"`

	RequestRetention float64         `mapstructure:"request_retention" validate:"gt=0,lt=1"`
	MaximumStability float64         `mapstructure:"maximum_stability" validate:"gte=1,lte=36500"`
	LearningSteps    []time.Duration `mapstructure:"learning_steps" validate:"dive,gt=0"`
	RelearningSteps  []time.Duration `mapstructure:"relearning_steps" validate:"dive,gt=0"`
	EnableFSRS       bool            `mapstructure:"enable_fsrs"`
	DailyNewCards    int             `mapstructure:"daily_new_cards" validate:"min=0"`
	DailyReviews     int             `mapstructure:"daily_reviews" validate:"min=0"`
	EasyBonus        float64         `mapstructure:"easy_bonus" validate:"gte=1,lte=10"`
	GraduateOnEasy   bool            `mapstructure:"graduate_on_easy"`
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Logging converts the log section for the logging package.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}

// MetricsConfig converts the metrics section for the metrics package.
func (c *Config) MetricsConfig() metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = c.Metrics.Enabled
	return cfg
}

// DayBoundary resolves the configured timezone and start hour.
func (s SchedulerConfig) DayBoundary() (selector.DayBoundary, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return selector.DayBoundary{}, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	return selector.DayBoundary{Location: loc, StartHour: s.StartHour}, nil
}

// DeckDefaults returns the parameters a newly created deck gets.
func (s SchedulerConfig) DeckDefaults() fsrs.Parameters {
	p := fsrs.DefaultParameters()
	p.RequestRetention = s.RequestRetention
	p.MaximumStability = s.MaximumStability
	p.LearningSteps = append([]time.Duration(nil), s.LearningSteps...)
	p.RelearningSteps = append([]time.Duration(nil), s.RelearningSteps...)
	p.EnableFSRS = s.EnableFSRS
	p.DailyNewCardsLimit = s.DailyNewCards
	p.DailyReviewLimit = s.DailyReviews
	p.EasyBonus = s.EasyBonus
	p.GraduateOnEasy = s.GraduateOnEasy
	return p
}
