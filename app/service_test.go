package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/soh/api/schedules"
	"github.com/kilianp07/soh/config"
	"github.com/kilianp07/soh/core/factory"
	"github.com/kilianp07/soh/core/reading"
)

func testConfig() *config.Config {
	cfg := &config.Config{HTTP: config.HTTPConfig{Addr: "127.0.0.1:0"}}
	cfg.Scheduler.IntervalSeconds = 0.01
	cfg.Scheduler.DispatchPeriodSeconds = 0.01
	cfg.SetDefaults()
	return cfg
}

func getSchedule(t *testing.T, base string, id string) map[string]any {
	t.Helper()
	resp, err := http.Get(base + schedules.Prefix + "get?id=" + id)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var out schedules.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	data, _ := out.Data.(map[string]any)
	return data
}

func post(t *testing.T, base, op string, form url.Values) int {
	t.Helper()
	resp, err := http.PostForm(base+schedules.Prefix+op, form)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestServiceEndToEnd(t *testing.T) {
	svc, err := New(testConfig())
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	src, ok := svc.Readings().(*reading.MemorySource)
	require.True(t, ok)
	src.SetFloat("str1_Cnominal", 100)
	src.SetFloat("str1_string_soc", 90)
	src.SetFloat("str1_total_i", 50)
	src.SetFloat("str1_ambient_t", 25)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- svc.Run(ctx) }()

	select {
	case <-svc.Ready():
	case <-time.After(5 * time.Second):
		t.Fatalf("service not ready")
	}
	base := "http://" + svc.Addr().String()

	start := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	code := post(t, base, "create", url.Values{"strId": {"str1"}, "startTime": {start}, "current": {"50"}})
	require.Equal(t, http.StatusOK, code)

	require.Eventually(t, func() bool {
		s := getSchedule(t, base, "1")
		return s["state"] == "RUNNING" && s["soh"] != nil
	}, 5*time.Second, 20*time.Millisecond, "schedule never started integrating")

	code = post(t, base, "create", url.Values{"strId": {"str1"}, "startTime": {start}, "current": {"50"}})
	assert.Equal(t, http.StatusConflict, code, "one open test per string")

	// A stop racing a calculator write is rejected as stale and retried.
	require.Eventually(t, func() bool {
		return post(t, base, "stop", url.Values{"id": {"1"}}) == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return getSchedule(t, base, "1")["state"] == "SUCCESS"
	}, 5*time.Second, 20*time.Millisecond, "stopped schedule never finalized")

	final := getSchedule(t, base, "1")
	assert.NotNil(t, final["endTime"])
	assert.Greater(t, final["soh"].(float64), 0.0)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not stop")
	}
	assert.Equal(t, 0, svc.Dispatcher.Registry().Len())
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig()
	cfg.Store = factory.ModuleConfig{Type: "mongo"}
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Readings = factory.ModuleConfig{Type: "opcua"}
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestRunFailsOnBusyAddress(t *testing.T) {
	first, err := New(testConfig())
	require.NoError(t, err)
	defer func() { _ = first.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Run(ctx) }()
	<-first.Ready()

	cfg := testConfig()
	cfg.HTTP.Addr = first.Addr().String()
	second, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	assert.Error(t, second.Run(context.Background()))
}
