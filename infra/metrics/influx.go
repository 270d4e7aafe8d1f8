package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	coremetrics "github.com/askelund/spotheat/core/metrics"
	"github.com/askelund/spotheat/infra/logger"
)

// InfluxSink writes optimization events to InfluxDB using the official
// client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	base := strings.TrimSuffix(cfg.InfluxURL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a down metrics backend never
// blocks the optimizer.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
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

// RecordCycle writes the cycle outcome as a point.
func (s *InfluxSink) RecordCycle(ev coremetrics.CycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	point := influxdb2.NewPoint("cycle",
		map[string]string{"zone": ev.Zone, "action": ev.Action.String()},
		map[string]any{"applied": ev.Applied, "error": ev.Err},
		ev.Time)
	return s.writeAPI.WritePoint(ctx, point)
}

// RecordApply writes the gateway push outcome as a point.
func (s *InfluxSink) RecordApply(ev coremetrics.ApplyEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	point := influxdb2.NewPoint("apply",
		map[string]string{"user": ev.UserID},
		map[string]any{
			"success":      ev.Success,
			"auth_failure": ev.Auth,
			"latency_ms":   ev.Latency.Milliseconds(),
		},
		time.Now())
	return s.writeAPI.WritePoint(ctx, point)
}

// RecordLease writes the lease attempt as a point.
func (s *InfluxSink) RecordLease(ev coremetrics.LeaseEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	point := influxdb2.NewPoint("lease",
		map[string]string{"kind": string(ev.Kind)},
		map[string]any{"acquired": ev.Acquired},
		time.Now())
	return s.writeAPI.WritePoint(ctx, point)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
