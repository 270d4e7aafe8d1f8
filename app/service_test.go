package app

import (
	"testing"
	"time"

	"github.com/askelund/spotheat/core/jobs"
	coremetrics "github.com/askelund/spotheat/core/metrics"
	"github.com/askelund/spotheat/infra/logger"
)

func TestUntilDailyBatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	if got := untilDailyBatch(now, 14); got != 4*time.Hour+30*time.Minute {
		t.Fatalf("same-day batch: got %v", got)
	}
	// The batch hour already passed today, so the timer targets tomorrow.
	if got := untilDailyBatch(now, 6); got != 20*time.Hour+30*time.Minute {
		t.Fatalf("next-day batch: got %v", got)
	}
	// Exactly at the batch hour the next run is a full day away.
	at := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	if got := untilDailyBatch(at, 14); got != 24*time.Hour {
		t.Fatalf("on-the-hour batch: got %v", got)
	}
}

func TestWithLeaseSkipsHeldKind(t *testing.T) {
	s := &Service{
		coordinator: jobs.NewMemoryCoordinator(),
		sink:        coremetrics.NopSink{},
		log:         logger.NopLogger{},
	}

	held, ok := s.coordinator.TryAcquire(jobs.KindScheduleCompute, time.Minute)
	if !ok {
		t.Fatalf("initial acquire should succeed")
	}

	ran := false
	s.withLease(jobs.KindScheduleCompute, time.Minute, func() { ran = true })
	if ran {
		t.Fatalf("callback must not run while the lease is held")
	}

	s.coordinator.Release(held)
	s.withLease(jobs.KindScheduleCompute, time.Minute, func() { ran = true })
	if !ran {
		t.Fatalf("callback should run once the lease is free")
	}
}
