package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names a recurring background job. Exclusion is per kind: two runs
// of the same kind never overlap, runs of different kinds may.
type Kind string

const (
	KindPriceRefresh    Kind = "price-refresh"
	KindScheduleCompute Kind = "schedule-compute"
	KindTokenRefresh    Kind = "token-refresh"
	KindDailyBatch      Kind = "daily-batch"
)

// Lease grants exclusive execution rights for one job kind until ExpiresAt.
// It is released explicitly on completion or reclaimed on expiry, so a
// crashed holder locks out the job for at most the lease duration.
type Lease struct {
	Kind      Kind
	ID        string
	ExpiresAt time.Time
}

// Coordinator enforces at-most-one-concurrent-execution per job kind. This
// is best effort exclusion, not a queue and not exactly-once: a caller that
// gets Busy skips its cycle and relies on the next periodic trigger.
type Coordinator interface {
	// TryAcquire returns a lease valid for ttl, or false while another
	// unexpired lease for the kind exists.
	TryAcquire(kind Kind, ttl time.Duration) (*Lease, bool)
	// Release frees the lease early. Releasing an expired or superseded
	// lease is a no-op, so a slow holder cannot free its successor's lease.
	Release(lease *Lease)
}

// MemoryCoordinator backs leases with an in-process mutex. It serves
// single-instance deployments; multi-instance setups swap in a
// Coordinator backed by a shared lock store.
type MemoryCoordinator struct {
	mu     sync.Mutex
	leases map[Kind]Lease
	now    func() time.Time
}

// NewMemoryCoordinator creates an empty coordinator.
func NewMemoryCoordinator() *MemoryCoordinator {
	return &MemoryCoordinator{leases: map[Kind]Lease{}, now: time.Now}
}

// TryAcquire implements Coordinator.
func (c *MemoryCoordinator) TryAcquire(kind Kind, ttl time.Duration) (*Lease, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if held, ok := c.leases[kind]; ok && held.ExpiresAt.After(now) {
		return nil, false
	}
	lease := Lease{Kind: kind, ID: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	c.leases[kind] = lease
	return &lease, true
}

// Release implements Coordinator.
func (c *MemoryCoordinator) Release(lease *Lease) {
	if lease == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if held, ok := c.leases[lease.Kind]; ok && held.ID == lease.ID {
		delete(c.leases, lease.Kind)
	}
}
