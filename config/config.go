package config

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/soh/core/factory"
	"github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/soh"
	"github.com/kilianp07/soh/infra/mqtt"
)

type Config struct {
	Scheduler soh.Config `json:"scheduler"`
	// Store selects the schedule repository backend.
	Store factory.ModuleConfig `json:"store"`
	// Readings selects the reading source backend.
	Readings factory.ModuleConfig `json:"readings"`
	MQTT     mqtt.Config          `json:"mqtt"`
	Metrics  metrics.Config       `json:"metrics"`
	Logging  LoggingConfig        `json:"logging"`
	Sentry   SentryConfig         `json:"sentry"`
	HTTP     HTTPConfig           `json:"http"`
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.Logging.SetDefaults()
	c.HTTP.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Scheduler.Validate(); err != nil {
		return errors.Wrap(err, "scheduler")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}
	if err := c.HTTP.Validate(); err != nil {
		return errors.Wrap(err, "http")
	}
	if err := c.Sentry.Validate(); err != nil {
		return errors.Wrap(err, "sentry")
	}
	return nil
}

// Load reads path (yaml or json) and applies K_ environment overrides, e.g.
// K_SCHEDULER__INTERVAL_SECONDS=2. An empty path uses the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, errors.Newf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
