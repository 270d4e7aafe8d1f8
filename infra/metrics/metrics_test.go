package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/askelund/spotheat/core/jobs"
	coremetrics "github.com/askelund/spotheat/core/metrics"
	"github.com/askelund/spotheat/core/schedule"
)

func TestPromSinkRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	if err := sink.RecordCycle(coremetrics.CycleEvent{Zone: "SE3", Action: schedule.ActionRunNow, Applied: true, Time: time.Now()}); err != nil {
		t.Fatalf("record cycle: %v", err)
	}
	if err := sink.RecordApply(coremetrics.ApplyEvent{UserID: "u1", Success: true, Latency: 120 * time.Millisecond}); err != nil {
		t.Fatalf("record apply: %v", err)
	}
	if err := sink.RecordLease(coremetrics.LeaseEvent{Kind: jobs.KindScheduleCompute, Acquired: false}); err != nil {
		t.Fatalf("record lease: %v", err)
	}

	if got := testutil.CollectAndCount(sink.(*PromSink).cycles); got != 1 {
		t.Fatalf("expected 1 cycle series, got %d", got)
	}
	if got := testutil.CollectAndCount(sink.(*PromSink).leases); got != 1 {
		t.Fatalf("expected 1 lease series, got %d", got)
	}
}

func TestPromSinkDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
}

type failSink struct{ err error }

func (f failSink) RecordCycle(coremetrics.CycleEvent) error { return f.err }
func (f failSink) RecordApply(coremetrics.ApplyEvent) error { return f.err }
func (f failSink) RecordLease(coremetrics.LeaseEvent) error { return f.err }

func TestMultiSinkReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMultiSink(coremetrics.NopSink{}, failSink{err: boom})
	if err := m.RecordCycle(coremetrics.CycleEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
	if err := NewMultiSink().RecordApply(coremetrics.ApplyEvent{}); err != nil {
		t.Fatalf("empty multi sink must be a no-op, got %v", err)
	}
}
