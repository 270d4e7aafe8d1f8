package jobs

import (
	"testing"
	"time"
)

func TestTryAcquireExcludesSameKind(t *testing.T) {
	c := NewMemoryCoordinator()
	lease, ok := c.TryAcquire(KindScheduleCompute, 120*time.Second)
	if !ok {
		t.Fatalf("first acquire should succeed")
	}
	if _, ok := c.TryAcquire(KindScheduleCompute, 120*time.Second); ok {
		t.Fatalf("second acquire within lease must be busy")
	}
	// A different kind is unaffected.
	if _, ok := c.TryAcquire(KindPriceRefresh, time.Minute); !ok {
		t.Fatalf("other kind should acquire")
	}
	c.Release(lease)
	if _, ok := c.TryAcquire(KindScheduleCompute, 120*time.Second); !ok {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestExpiredLeaseIsReclaimed(t *testing.T) {
	c := NewMemoryCoordinator()
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, ok := c.TryAcquire(KindScheduleCompute, 120*time.Second); !ok {
		t.Fatalf("first acquire should succeed")
	}
	now = now.Add(119 * time.Second)
	if _, ok := c.TryAcquire(KindScheduleCompute, 120*time.Second); ok {
		t.Fatalf("lease still valid, expected busy")
	}
	now = now.Add(2 * time.Second)
	if _, ok := c.TryAcquire(KindScheduleCompute, 120*time.Second); !ok {
		t.Fatalf("expired lease should be reclaimed")
	}
}

func TestReleaseOfSupersededLeaseIsNoop(t *testing.T) {
	c := NewMemoryCoordinator()
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	old, _ := c.TryAcquire(KindTokenRefresh, 30*time.Second)
	now = now.Add(time.Minute)
	if _, ok := c.TryAcquire(KindTokenRefresh, 30*time.Second); !ok {
		t.Fatalf("reclaim after expiry should succeed")
	}
	// The crashed holder coming back must not free the new lease.
	c.Release(old)
	if _, ok := c.TryAcquire(KindTokenRefresh, 30*time.Second); ok {
		t.Fatalf("stale release must not unlock the active lease")
	}
}
