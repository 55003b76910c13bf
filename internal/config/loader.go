package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CADENCE_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
	// envNesting separates sections in variable names:
	// CADENCE_SCHEDULER__START_HOUR -> scheduler.start_hour
	envNesting = "__"
)

// Loader handles configuration loading from various sources.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{k: koanf.New(Delimiter)}
}

// Load loads configuration from all sources, later ones winning:
// defaults, the config file, CADENCE_ environment variables, overrides.
// An empty configPath searches the standard locations.
func (l *Loader) Load(configPath string, overrides map[string]any) (*Config, error) {
	if err := l.k.Load(confmap.Provider(defaults(), Delimiter), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := l.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else if err := l.loadDefaultFiles(); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if err := ValidateWithDetails(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) loadFile(path string) error {
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}
	return l.k.Load(file.Provider(path), parser)
}

// loadDefaultFiles loads the first config file found in the standard
// locations. Finding none is not an error.
func (l *Loader) loadDefaultFiles() error {
	candidates := []string{"cadence.yaml", "cadence.yml", "cadence.json"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".cadence", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return l.loadFile(path)
		}
	}
	return nil
}

// loadEnv maps CADENCE_SECTION__KEY to section.key. Step lists are given
// comma separated: CADENCE_SCHEDULER__LEARNING_STEPS=1m,10m.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.ProviderWithValue(EnvPrefix, Delimiter, func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, envNesting, Delimiter)
		if strings.HasSuffix(key, "_steps") {
			if value == "" {
				return key, []string{}
			}
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil)
}

// Print returns the merged configuration for debugging.
func (l *Loader) Print() string {
	return l.k.Sprint()
}

// Load is a convenience function to load configuration.
func Load(configPath string, overrides map[string]any) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}
