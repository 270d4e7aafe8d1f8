package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/askelund/spotheat/core/metrics"
)

// PromSink records optimization events in Prometheus metrics.
type PromSink struct {
	cycles  *prometheus.CounterVec
	applies *prometheus.CounterVec
	latency prometheus.Histogram
	leases  *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The Prometheus server is started separately on cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optimizer_cycles_total",
		Help: "Total number of per-user optimization cycles",
	}, []string{"zone", "action", "applied"})
	applies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_applies_total",
		Help: "Total number of device gateway pushes",
	}, []string{"success", "auth_failure"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_apply_latency_seconds",
		Help:    "Latency of device gateway pushes including retries",
		Buckets: prometheus.DefBuckets,
	})
	leases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_lease_attempts_total",
		Help: "Coordinator lease acquisition attempts per job kind",
	}, []string{"kind", "acquired"})

	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(applies); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			applies = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(leases); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			leases = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{cycles: cycles, applies: applies, latency: latency, leases: leases}, nil
}

// RecordCycle increments the cycle counter.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.cycles.WithLabelValues(ev.Zone, ev.Action.String(), strconv.FormatBool(ev.Applied)).Inc()
	return nil
}

// RecordApply increments the apply counter and observes latency.
func (s *PromSink) RecordApply(ev coremetrics.ApplyEvent) error {
	s.applies.WithLabelValues(strconv.FormatBool(ev.Success), strconv.FormatBool(ev.Auth)).Inc()
	s.latency.Observe(ev.Latency.Seconds())
	return nil
}

// RecordLease increments the lease attempt counter.
func (s *PromSink) RecordLease(ev coremetrics.LeaseEvent) error {
	s.leases.WithLabelValues(string(ev.Kind), strconv.FormatBool(ev.Acquired)).Inc()
	return nil
}
