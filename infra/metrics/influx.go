package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/infra/logger"
)

// InfluxSink writes discharge test progress to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordProgress writes one calculator iteration.
func (s *InfluxSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("soh_progress").
		AddTag("string_id", ev.StringID).
		AddTag("schedule_id", strconv.FormatInt(ev.ScheduleID, 10)).
		AddField("soh", round3(ev.SoH)).
		AddField("used_charge_ah", round3(ev.UsedCharge)).
		AddField("soc_before", round3(ev.SoCBefore)).
		AddField("soc_after", round3(ev.SoCAfter)).
		AddField("current_a", round3(ev.Current)).
		AddField("temperature_c", round3(ev.Temperature)).
		AddField("temp_factor", round3(ev.Factor)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransition writes a persisted schedule change.
func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_transition").
		AddTag("string_id", ev.StringID).
		AddTag("action", ev.Action).
		AddTag("from", ev.From.String()).
		AddTag("to", ev.To.String()).
		AddField("schedule_id", ev.ScheduleID).
		AddField("active", ev.Status == model.StatusActive).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
