package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/cadence/internal/fsrs"
)

// isolate keeps the test away from any real config file or CADENCE_ env.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:37778", cfg.ListenAddr())
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	require.NoError(t, ValidateWithDetails(&cfg))
}

func TestDeckDefaultsMatchScheduler(t *testing.T) {
	cfg := Default()
	p := cfg.Scheduler.DeckDefaults()

	want := fsrs.DefaultParameters()
	assert.Equal(t, want.RequestRetention, p.RequestRetention)
	assert.Equal(t, want.DailyNewCardsLimit, p.DailyNewCardsLimit)
	assert.Equal(t, []time.Duration{time.Minute, 10 * time.Minute}, p.LearningSteps)
	assert.NoError(t, p.Validate())
}

func TestLoadFileEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "cadence.yaml")
	yaml := `
server:
  port: 9000
scheduler:
  timezone: Europe/Berlin
  start_hour: 4
  learning_steps: [30s, 5m, 1h]
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CADENCE_SCHEDULER__DAILY_NEW_CARDS", "7")
	t.Setenv("CADENCE_LOG__FORMAT", "text")
	t.Setenv("CADENCE_SCHEDULER__RELEARNING_STEPS", "2m,20m")

	cfg, err := Load(path, map[string]any{"server.bind": "0.0.0.0"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
	assert.Equal(t, "text", cfg.Log.Format, "env wins over file")
	assert.Equal(t, "info", cfg.Log.Level, "untouched keys keep defaults")
	assert.Equal(t, 7, cfg.Scheduler.DailyNewCards)
	assert.Equal(t, []time.Duration{30 * time.Second, 5 * time.Minute, time.Hour}, cfg.Scheduler.LearningSteps)
	assert.Equal(t, []time.Duration{2 * time.Minute, 20 * time.Minute}, cfg.Scheduler.RelearningSteps)

	b, err := cfg.Scheduler.DayBoundary()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", b.Location.String())
	assert.Equal(t, 4, b.StartHour)
}

func TestLoadSearchesWorkingDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cadence.json"), []byte(`{"server":{"port":8123}}`), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Server.Port)
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err, "missing file")
	_, err = Load(filepath.Join(dir, "cadence.toml"), nil)
	assert.Error(t, err, "unsupported format")
}

func TestValidation(t *testing.T) {
	isolate(t)

	tests := []struct {
		name      string
		overrides map[string]any
		field     string
	}{
		{"port out of range", map[string]any{"server.port": 70000}, "Config.Server.Port"},
		{"bad log level", map[string]any{"log.level": "loud"}, "Config.Log.Level"},
		{"bad timezone", map[string]any{"scheduler.timezone": "Mars/Olympus"}, "Config.Scheduler.Timezone"},
		{"start hour", map[string]any{"scheduler.start_hour": 24}, "Config.Scheduler.StartHour"},
		{"retention", map[string]any{"scheduler.request_retention": 1.0}, "Config.Scheduler.RequestRetention"},
		{"zero burst", map[string]any{"ratelimit.burst": 0}, "Config.RateLimit.Burst"},
		{"metrics path", map[string]any{"metrics.path": "metrics"}, "Config.Metrics.Path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", tt.overrides)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)

			var fields []string
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
