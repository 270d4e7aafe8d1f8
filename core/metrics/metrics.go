package metrics

import (
	"time"

	"github.com/askelund/spotheat/core/jobs"
	"github.com/askelund/spotheat/core/schedule"
)

// CycleEvent captures the outcome of one per-user optimization cycle.
type CycleEvent struct {
	UserID  string
	Zone    string
	Action  schedule.ActionKind
	Applied bool
	Err     string
	Time    time.Time
}

// ApplyEvent captures one push to the device gateway, including retries.
type ApplyEvent struct {
	UserID  string
	Success bool
	Auth    bool
	Latency time.Duration
}

// LeaseEvent captures a coordinator acquisition attempt.
type LeaseEvent struct {
	Kind     jobs.Kind
	Acquired bool
}

// Sink records optimization events for observability purposes.
type Sink interface {
	RecordCycle(ev CycleEvent) error
	RecordApply(ev ApplyEvent) error
	RecordLease(ev LeaseEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordCycle(CycleEvent) error { return nil }
func (NopSink) RecordApply(ApplyEvent) error { return nil }
func (NopSink) RecordLease(LeaseEvent) error { return nil }

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = ":2112"
	}
}
