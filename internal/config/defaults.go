package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/confmap"
)

// defaults are flat dotted keys so a file or env var can override one
// field without replacing its whole section.
func defaults() map[string]any {
	return map[string]any{
		"server.bind":             "127.0.0.1",
		"server.port":             37778,
		"server.session_ttl":      "2h",
		"server.shutdown_timeout": "10s",

		"database.path": "",

		"log.level":  "info",
		"log.format": "text",
		"log.output": "stderr",

		"metrics.enabled":         true,
		"metrics.path":            "/metrics",
		"metrics.due_gauge_every": "5m",

		"ratelimit.enabled": true,
		"ratelimit.rps":     20.0,
		"ratelimit.burst":   40,
		"ratelimit.ttl":     "10m",

		"scheduler.timezone":          "UTC",
		"scheduler.start_hour":        0,
		"scheduler.request_retention": 0.9,
		"scheduler.maximum_stability": 36500.0,
		"scheduler.learning_steps":    []any{"1m", "10m"},
		"scheduler.relearning_steps":  []any{"10m"},
		"scheduler.enable_fsrs":       true,
		"scheduler.daily_new_cards":   20,
		"scheduler.daily_reviews":     100,
		"scheduler.easy_bonus":        1.3,
		"scheduler.graduate_on_easy":  true,
	}
}

// Default returns the configuration with nothing loaded on top.
func Default() Config {
	l := NewLoader()
	if err := l.k.Load(confmap.Provider(defaults(), Delimiter), nil); err != nil {
		panic(fmt.Sprintf("config: load defaults: %v", err))
	}
	cfg, err := l.unmarshal()
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return *cfg
}
