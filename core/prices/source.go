package prices

import (
	"context"
	"sync"
	"time"

	"github.com/askelund/spotheat/core/logger"
	"github.com/askelund/spotheat/core/model"
)

// Source delivers day-ahead hourly spot prices for a zone. Implementations
// are fallible remote clients; callers treat an error as DataUnavailable
// and fall back rather than abort.
type Source interface {
	Prices(ctx context.Context, zone string, day model.HorizonDay) (model.PriceSeries, error)
}

// CachedSource decorates a Source with a last-good series per zone. It is
// the single canonical read path for price data in a cycle: jobs warm it,
// the engine reads through it, and a fetch failure degrades to the cached
// horizon with a warning instead of an empty decision.
type CachedSource struct {
	src Source
	log logger.Logger

	mu   sync.RWMutex
	last map[string]model.PriceSeries
}

// NewCachedSource wraps src.
func NewCachedSource(src Source, log logger.Logger) *CachedSource {
	return &CachedSource{src: src, log: log, last: map[string]model.PriceSeries{}}
}

// Horizon returns today's remaining hours plus tomorrow where available,
// sorted chronologically. Both fetches failing serves the cached series;
// with no cache either, the empty series is returned with the first error.
func (c *CachedSource) Horizon(ctx context.Context, zone string, now time.Time) (model.PriceSeries, error) {
	today, errToday := c.src.Prices(ctx, zone, model.DayToday)
	tomorrow, errTomorrow := c.src.Prices(ctx, zone, model.DayTomorrow)
	if errTomorrow != nil {
		// Tomorrow's auction publishes around 13:00 CET; missing data is
		// routine in the morning.
		c.log.Debugf("no prices for tomorrow in %s: %v", zone, errTomorrow)
	}
	if errToday != nil {
		c.mu.RLock()
		cached := c.last[zone]
		c.mu.RUnlock()
		if len(cached) == 0 {
			return nil, errToday
		}
		c.log.Warnf("price fetch for %s failed, serving cached horizon: %v", zone, errToday)
		return cached.From(now), nil
	}

	series := make(model.PriceSeries, 0, len(today)+len(tomorrow))
	series = append(series, today...)
	series = append(series, tomorrow...)
	series.Sort()

	c.mu.Lock()
	c.last[zone] = series
	c.mu.Unlock()
	return series.From(now), nil
}

// Warm refreshes the cache for a zone without returning data. Used by the
// periodic price-refresh job.
func (c *CachedSource) Warm(ctx context.Context, zone string, now time.Time) error {
	_, err := c.Horizon(ctx, zone, now)
	return err
}
