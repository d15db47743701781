package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/model"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSink_RecordProgress(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	ev := coremetrics.ProgressEvent{
		ScheduleID: 7, StringID: "str1", SoH: 91.23456, UsedCharge: 2.5,
		SoCBefore: 80, SoCAfter: 75, Current: -10, Temperature: 25, Factor: 1, Time: now,
	}
	if err := sink.RecordProgress(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("soh_progress").
		AddTag("string_id", "str1").
		AddTag("schedule_id", "7").
		AddField("soh", 91.235).
		AddField("used_charge_ah", 2.5).
		AddField("soc_before", 80.0).
		AddField("soc_after", 75.0).
		AddField("current_a", -10.0).
		AddField("temperature_c", 25.0).
		AddField("temp_factor", 1.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	got := bodies()
	if len(got) != 1 || got[0] != expected {
		t.Errorf("unexpected body: %v", got)
	}
}

func TestInfluxSink_RecordTransition(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	ev := coremetrics.TransitionEvent{
		ScheduleID: 3, StringID: "str2", Action: "finished",
		From: model.StateRunning, To: model.StateSuccess, Status: model.StatusActive, Time: now,
	}
	if err := sink.RecordTransition(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("schedule_transition").
		AddTag("string_id", "str2").
		AddTag("action", "finished").
		AddTag("from", "RUNNING").
		AddTag("to", "SUCCESS").
		AddField("schedule_id", int64(3)).
		AddField("active", true).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	got := bodies()
	if len(got) != 1 || got[0] != expected {
		t.Errorf("unexpected body: %v", got)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
