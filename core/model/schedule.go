package model

import "time"

// State is the commanded heater mode for one hour.
type State int

const (
	StateComfort State = iota
	StateTurnOff
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateComfort:
		return "comfort"
	case StateTurnOff:
		return "turnoff"
	default:
		return "unknown"
	}
}

// HourState assigns a state to a single horizon hour.
type HourState struct {
	Hour  time.Time `json:"hour"`
	State State     `json:"state"`
	Price float64   `json:"price"`
}

// ScheduleDecision covers the full horizon, one entry per hour, in
// chronological order. It is recomputed from scratch each cycle.
type ScheduleDecision []HourState

// At returns the entry for the given hour, if present.
func (d ScheduleDecision) At(hour time.Time) (HourState, bool) {
	for _, h := range d {
		if h.Hour.Equal(hour) {
			return h, true
		}
	}
	return HourState{}, false
}

// ComfortHours returns the comfort entries at or after t, in order.
func (d ScheduleDecision) ComfortHours(t time.Time) []HourState {
	var out []HourState
	for _, h := range d {
		if h.State == StateComfort && !h.Hour.Before(t) {
			out = append(out, h)
		}
	}
	return out
}

// Default tuning values applied when a user has no stored settings.
const (
	DefaultComfortHours       = 3
	DefaultTurnOffPercentile  = 0.9
	DefaultMaxComfortGapHours = 28
)

// ScheduleSettings holds the per-user optimization tuning. The engine
// treats it as read-only; mutation happens only through explicit settings
// updates outside this module.
type ScheduleSettings struct {
	ComfortHours       int     `json:"comfort_hours"`
	TurnOffPercentile  float64 `json:"turnoff_percentile"`
	MaxComfortGapHours int     `json:"max_comfort_gap_hours"`
	AutoApply          bool    `json:"auto_apply"`
	Zone               string  `json:"zone"`
}

// DefaultSettings returns the stock tuning for a zone.
func DefaultSettings(zone string) ScheduleSettings {
	return ScheduleSettings{
		ComfortHours:       DefaultComfortHours,
		TurnOffPercentile:  DefaultTurnOffPercentile,
		MaxComfortGapHours: DefaultMaxComfortGapHours,
		Zone:               zone,
	}
}

// Normalize clamps out-of-range values against the given horizon length and
// reports whether anything had to be adjusted. Invalid settings are never
// fatal; the clamped copy is used and the caller logs a warning.
func (s ScheduleSettings) Normalize(horizonHours int) (ScheduleSettings, bool) {
	clamped := false
	if s.ComfortHours < 1 {
		s.ComfortHours = 1
		clamped = true
	}
	if horizonHours > 0 && s.ComfortHours > horizonHours {
		s.ComfortHours = horizonHours
		clamped = true
	}
	if s.TurnOffPercentile <= 0 || s.TurnOffPercentile > 1 {
		s.TurnOffPercentile = DefaultTurnOffPercentile
		clamped = true
	}
	if s.MaxComfortGapHours < 1 {
		s.MaxComfortGapHours = DefaultMaxComfortGapHours
		clamped = true
	}
	return s, clamped
}

// FlexibleState is the per-user cursor of the next pending comfort run.
// It is mutated exclusively by the reoptimization engine and persisted
// after each reconciliation.
type FlexibleState struct {
	// LastComfortRun is the confirmed time of the most recent comfort run.
	LastComfortRun *time.Time `json:"last_comfort_run,omitempty"`
	// LastEcoRun survives from the legacy three-state model. It is carried
	// through the import adapter untouched and never read by the engine.
	LastEcoRun *time.Time `json:"last_eco_run,omitempty"`
	// NextScheduledComfort is the pending run, if any.
	NextScheduledComfort *time.Time `json:"next_scheduled_comfort,omitempty"`
}

// Deadline returns the latest admissible time for the next comfort run.
// Without a confirmed previous run there is no deadline.
func (s FlexibleState) Deadline(maxGapHours int) (time.Time, bool) {
	if s.LastComfortRun == nil {
		return time.Time{}, false
	}
	return s.LastComfortRun.Add(time.Duration(maxGapHours) * time.Hour), true
}

// HistoryEntry is an immutable audit record of one computed decision.
type HistoryEntry struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Timestamp time.Time        `json:"timestamp"`
	Decision  ScheduleDecision `json:"decision"`
}
