package model

import (
	"sort"
	"time"
)

// HorizonDay identifies which day-ahead window a price point belongs to.
type HorizonDay int

const (
	DayToday HorizonDay = iota
	DayTomorrow
)

// String returns a human-readable representation of the horizon day.
func (d HorizonDay) String() string {
	switch d {
	case DayToday:
		return "today"
	case DayTomorrow:
		return "tomorrow"
	default:
		return "unknown"
	}
}

// PricePoint is one hourly spot price as delivered by the price source.
type PricePoint struct {
	Timestamp time.Time  `json:"timestamp"`
	Price     float64    `json:"price"`
	Day       HorizonDay `json:"day"`
}

// PriceSeries is a chronologically ordered sequence of hourly price points.
type PriceSeries []PricePoint

// Sort orders the series chronologically in place.
func (s PriceSeries) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) })
}

// From returns the sub-series at or after t. The series must be sorted.
func (s PriceSeries) From(t time.Time) PriceSeries {
	i := sort.Search(len(s), func(i int) bool { return !s[i].Timestamp.Before(t) })
	return s[i:]
}

// Prices extracts the raw price values in series order.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}
