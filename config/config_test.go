package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `scheduler:
  interval_seconds: 0.5
  dispatch_period_seconds: 2
  resume_running: true
  abandon_missing: false
store:
  type: sqlite
  conf:
    path: /var/lib/soh/soh.db
readings:
  type: postgres
  conf:
    dsn: postgres://soh@localhost/openmuc
    layout: point_tables
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "site1"
metrics:
  prometheus_addr: ":9100"
  sinks:
    - type: "nop"
logging:
  level: debug
sentry:
  dsn: ""
http:
  addr: ":9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"interval", cfg.Scheduler.Interval(), 500 * time.Millisecond},
		{"dispatch_period", cfg.Scheduler.DispatchPeriod(), 2 * time.Second},
		{"resume_running", cfg.Scheduler.ResumeRunning, true},
		{"abandon_missing", cfg.Scheduler.Abandon(), false},
		{"store.type", cfg.Store.Type, "sqlite"},
		{"store.path", cfg.Store.Conf["path"], "/var/lib/soh/soh.db"},
		{"readings.type", cfg.Readings.Type, "postgres"},
		{"readings.layout", cfg.Readings.Conf["layout"], "point_tables"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"prefix", cfg.MQTT.Prefix(), "site1"},
		{"prometheus_addr", cfg.Metrics.PrometheusAddr, ":9100"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"http.addr", cfg.HTTP.Addr, ":9000"},
		{"http.shutdown", cfg.HTTP.ShutdownTimeout(), 5 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Scheduler.Interval())
	assert.True(t, cfg.Scheduler.Abandon())
	assert.False(t, cfg.Scheduler.ResumeRunning)
	assert.Equal(t, "", cfg.Store.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.MQTT.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("K_SCHEDULER__INTERVAL_SECONDS", "2")
	t.Setenv("K_HTTP__ADDR", ":7070")
	cfg, err := Load(writeConfig(t, "config.yaml", "scheduler:\n  interval_seconds: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.Interval())
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("K_LOGGING__LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.yaml", "logging:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.yaml", "scheduler:\n  interval_seconds: 0.0001\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.yaml", "sentry:\n  traces_sample_rate: 2\n"))
	assert.Error(t, err)
}
