package main

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	readingsmqtt "github.com/kilianp07/soh/infra/readings/mqtt"
)

type recordTarget struct {
	mu     sync.Mutex
	values map[string]float64
	fail   error
}

func (r *recordTarget) Store(_ context.Context, point string, v float64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if r.values == nil {
		r.values = map[string]float64{}
	}
	r.values[point] = v
	return nil
}

type recordPublisher struct {
	topics   []string
	retained bool
}

func (r *recordPublisher) Publish(topic string, _ []byte, retained bool) error {
	r.topics = append(r.topics, topic)
	r.retained = retained
	return nil
}

func testConfig() Config {
	return Config{
		Broker:      "tcp://localhost:1883",
		TopicPrefix: "soh",
		Count:       3,
		CapacityAh:  50,
		HealthMin:   0.8,
		HealthMax:   0.9,
		InitialSoC:  95,
		Current:     10,
		Temperature: 25,
		Interval:    time.Second,
		TimeScale:   1,
	}
}

func TestGenerateStrings(t *testing.T) {
	strs := GenerateStrings(testConfig(), rand.New(rand.NewSource(1)))
	require.Len(t, strs, 3)
	assert.Equal(t, "str001", strs[0].ID)
	assert.Equal(t, "str003", strs[2].ID)
	for _, s := range strs {
		assert.GreaterOrEqual(t, s.Battery.Health, 0.8)
		assert.LessOrEqual(t, s.Battery.Health, 0.9)
		assert.Equal(t, 95.0, s.Battery.SoC())
	}
	cfg := testConfig()
	cfg.Count = 0
	assert.Nil(t, GenerateStrings(cfg, rand.New(rand.NewSource(1))))
}

func TestHandleScheduleTogglesDischarge(t *testing.T) {
	s := GenerateStrings(testConfig(), rand.New(rand.NewSource(1)))[0]
	s.HandleSchedule("soh/str001/schedule", []byte(`{"string_id":"str001","state":"RUNNING"}`))
	assert.True(t, s.Discharging())
	s.HandleSchedule("soh/str002/schedule", []byte(`{"string_id":"str002","state":"SUCCESS"}`))
	assert.True(t, s.Discharging(), "events for other strings are ignored")
	s.HandleSchedule("soh/str001/schedule", []byte(`not json`))
	assert.True(t, s.Discharging())
	s.HandleSchedule("soh/str001/schedule", []byte(`{"string_id":"str001","state":"STOPPED"}`))
	assert.False(t, s.Discharging())
}

func TestStepPublishesReadings(t *testing.T) {
	s := GenerateStrings(testConfig(), rand.New(rand.NewSource(1)))[0]
	target := &recordTarget{}
	ctx := context.Background()

	require.NoError(t, s.Step(ctx, target, time.Minute, time.Now()))
	assert.Equal(t, 50.0, target.values["str001_Cnominal"])
	assert.Equal(t, 95.0, target.values["str001_string_soc"])
	assert.Equal(t, 0.0, target.values["str001_total_i"])
	assert.Equal(t, 25.0, target.values["str001_ambient_t"])

	s.HandleSchedule("", []byte(`{"string_id":"str001","state":"RUNNING"}`))
	require.NoError(t, s.Step(ctx, target, time.Minute, time.Now()))
	assert.Equal(t, 10.0, target.values["str001_total_i"])
	assert.Less(t, target.values["str001_string_soc"], 95.0)

	target.fail = errors.New("down")
	assert.Error(t, s.Step(ctx, target, time.Minute, time.Now()))
}

func TestMQTTTargetUsesReadingTopics(t *testing.T) {
	pub := &recordPublisher{}
	tgt := mqttTarget{pub: pub, prefix: "plant"}
	require.NoError(t, tgt.Store(context.Background(), "str001_total_i", 3, time.Now()))
	require.Equal(t, []string{readingsmqtt.ReadingTopic("plant", "str001_total_i")}, pub.topics)
	assert.True(t, pub.retained)
}

func TestMultiTargetCombinesErrors(t *testing.T) {
	ok := &recordTarget{}
	bad := &recordTarget{fail: errors.New("boom")}
	err := multiTarget{bad, ok}.Store(context.Background(), "p", 1, time.Now())
	require.Error(t, err)
	assert.Equal(t, 1.0, ok.values["p"], "healthy targets still receive the value")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())
	for name, mut := range map[string]func(*Config){
		"no target":    func(c *Config) { c.Broker = "" },
		"count":        func(c *Config) { c.Count = 0 },
		"capacity":     func(c *Config) { c.CapacityAh = 0 },
		"health range": func(c *Config) { c.HealthMin = 0.95 },
		"soc":          func(c *Config) { c.InitialSoC = 120 },
		"interval":     func(c *Config) { c.Interval = 0 },
		"scale":        func(c *Config) { c.TimeScale = 0 },
	} {
		cfg := testConfig()
		mut(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"-count", "4", "-redis", "localhost:6379", "-time-scale", "60"})
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Count)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 60.0, cfg.TimeScale)
	assert.NoError(t, cfg.Validate())

	_, err = parseFlags([]string{"-count", "x"})
	assert.Error(t, err)
}
