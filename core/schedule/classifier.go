package schedule

import (
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/askelund/spotheat/core/model"
)

// ErrNoPrices indicates the price series is empty and no decision can be
// computed. The caller decides whether to fall back to a prior decision.
var ErrNoPrices = errors.New("no price data for horizon")

// Classify assigns a heater state to every hour of the price series.
//
// The comfortHours cheapest hours seed the comfort set, hours at or above
// the turn-off percentile (nearest rank) are forced off, everything else
// defaults to comfort, and a final pass force-heats the cheapest hour
// inside any gap exceeding MaxComfortGapHours. The result covers every
// series hour exactly once and always contains at least one comfort hour.
func Classify(series model.PriceSeries, settings model.ScheduleSettings, now time.Time) (model.ScheduleDecision, error) {
	if len(series) == 0 {
		return nil, ErrNoPrices
	}
	settings, _ = settings.Normalize(len(series))

	hours := make(model.PriceSeries, len(series))
	copy(hours, series)
	hours.Sort()

	// Indices ranked by ascending price, ties broken by earliest hour.
	ranked := make([]int, len(hours))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if hours[ranked[a]].Price != hours[ranked[b]].Price {
			return hours[ranked[a]].Price < hours[ranked[b]].Price
		}
		return hours[ranked[a]].Timestamp.Before(hours[ranked[b]].Timestamp)
	})

	sorted := hours.Prices()
	sort.Float64s(sorted)
	// stat.Empirical picks the value at rank ceil(p*N), the nearest-rank
	// quantile of the horizon distribution.
	threshold := stat.Quantile(settings.TurnOffPercentile, stat.Empirical, sorted, nil)

	decision := make(model.ScheduleDecision, len(hours))
	comfortCount := 0
	for i, p := range hours {
		state := model.StateComfort
		if p.Price >= threshold {
			state = model.StateTurnOff
		}
		if state == model.StateComfort {
			comfortCount++
		}
		decision[i] = model.HourState{Hour: p.Timestamp, State: state, Price: p.Price}
	}

	// The heater never fully starves: keep the cheapest hour heating even
	// when the whole horizon sits above the threshold.
	if comfortCount == 0 {
		decision[ranked[0]].State = model.StateComfort
	}

	repairGaps(decision, settings, now)
	return decision, nil
}

// repairGaps force-converts the cheapest hour inside every oversized gap to
// comfort until no gap between consecutive comfort hours, nor the span from
// now to the first one, exceeds the configured bound. The pass only adds
// comfort hours.
func repairGaps(decision model.ScheduleDecision, settings model.ScheduleSettings, now time.Time) {
	maxGap := time.Duration(settings.MaxComfortGapHours) * time.Hour
	for {
		start, end, found := firstGapViolation(decision, now, maxGap)
		if !found {
			return
		}
		best := -1
		for i, h := range decision {
			if h.State != model.StateTurnOff || !h.Hour.After(start) || !h.Hour.Before(end) {
				continue
			}
			if best < 0 || h.Price < decision[best].Price {
				best = i
			}
		}
		if best < 0 {
			// Nothing inside the gap to flip; the series itself has a hole.
			return
		}
		decision[best].State = model.StateComfort
	}
}

func firstGapViolation(decision model.ScheduleDecision, now time.Time, maxGap time.Duration) (time.Time, time.Time, bool) {
	prev := now
	for _, h := range decision {
		if h.State != model.StateComfort {
			continue
		}
		if h.Hour.Sub(prev) > maxGap {
			return prev, h.Hour, true
		}
		prev = h.Hour
	}
	return time.Time{}, time.Time{}, false
}
