package schedule

import (
	"fmt"
	"time"

	"github.com/askelund/spotheat/core/model"
)

// ActionKind enumerates what the caller must do after a reconciliation.
type ActionKind int

const (
	// ActionNone leaves the pending run untouched.
	ActionNone ActionKind = iota
	// ActionScheduleRun sets a fresh pending comfort run at Hour.
	ActionScheduleRun
	// ActionRescheduleRun moves the pending run from From to Hour.
	ActionRescheduleRun
	// ActionRunNow executes the comfort run immediately.
	ActionRunNow
)

// String returns a human-readable representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionScheduleRun:
		return "schedule"
	case ActionRescheduleRun:
		return "reschedule"
	case ActionRunNow:
		return "run-now"
	default:
		return "unknown"
	}
}

// Action describes the outcome of a reconciliation. Hour is the target run
// hour for schedule, reschedule and run-now actions; From carries the
// previous hour of a reschedule.
type Action struct {
	Kind ActionKind
	Hour time.Time
	From time.Time
}

// String renders the action for logs.
func (a Action) String() string {
	switch a.Kind {
	case ActionRescheduleRun:
		return fmt.Sprintf("%s %s -> %s", a.Kind, a.From.Format(time.RFC3339), a.Hour.Format(time.RFC3339))
	case ActionScheduleRun, ActionRunNow:
		return fmt.Sprintf("%s %s", a.Kind, a.Hour.Format(time.RFC3339))
	default:
		return a.Kind.String()
	}
}

// Reconcile compares the pending comfort run against a freshly computed
// decision and moves it only when the optimal upcoming hour actually
// changed. It returns the updated cursor and the action the caller must
// perform. The cursor stays pending across failed executions; only
// Confirm advances it.
//
// Rules, in order:
//   - a cursor past the gap deadline is stale and is cleared;
//   - an unconfirmed cursor in the past is overdue and forces a run now;
//   - with no cursor, the earliest future comfort hour is scheduled
//     (run now when it is the current hour);
//   - a strictly cheaper comfort hour before the deadline steals the run;
//   - a cursor whose hour flipped to turn-off moves to a no-more-expensive
//     alternative before the deadline, or stays put when none exists;
//     the deadline always wins over cost.
func Reconcile(state model.FlexibleState, decision model.ScheduleDecision, settings model.ScheduleSettings, now time.Time) (model.FlexibleState, Action) {
	deadline, hasDeadline := state.Deadline(settings.MaxComfortGapHours)

	if state.NextScheduledComfort != nil && hasDeadline && state.NextScheduledComfort.After(deadline) {
		state.NextScheduledComfort = nil
	}
	next := state.NextScheduledComfort

	if next == nil {
		return scheduleEarliest(state, decision, now)
	}
	if next.Before(now) {
		// Overdue: the scheduled hour passed without confirmation.
		return state, Action{Kind: ActionRunNow, Hour: *next}
	}

	current, known := decision.At(*next)
	if !known {
		// Horizon rolled past the cursor; start over.
		state.NextScheduledComfort = nil
		return scheduleEarliest(state, decision, now)
	}

	if current.State == model.StateComfort {
		if alt, ok := cheapestBefore(decision, now, deadline, hasDeadline, current.Price, false); ok && !alt.Hour.Equal(*next) {
			from := *next
			hour := alt.Hour
			state.NextScheduledComfort = &hour
			return state, Action{Kind: ActionRescheduleRun, Hour: hour, From: from}
		}
		if next.Equal(now) {
			return state, Action{Kind: ActionRunNow, Hour: *next}
		}
		return state, Action{Kind: ActionNone}
	}

	// The selected hour flipped to turn-off after a price spike. Move to a
	// no-more-expensive alternative inside the deadline if one exists,
	// otherwise keep the original hour: running late breaks the gap
	// invariant, running at the original price does not.
	if alt, ok := cheapestBefore(decision, now, deadline, hasDeadline, current.Price, true); ok {
		from := *next
		hour := alt.Hour
		state.NextScheduledComfort = &hour
		return state, Action{Kind: ActionRescheduleRun, Hour: hour, From: from}
	}
	if next.Equal(now) {
		return state, Action{Kind: ActionRunNow, Hour: *next}
	}
	return state, Action{Kind: ActionNone}
}

// Confirm records a completed comfort run and clears the pending cursor.
func Confirm(state model.FlexibleState, now time.Time) model.FlexibleState {
	ran := now
	state.LastComfortRun = &ran
	state.NextScheduledComfort = nil
	return state
}

func scheduleEarliest(state model.FlexibleState, decision model.ScheduleDecision, now time.Time) (model.FlexibleState, Action) {
	for _, h := range decision.ComfortHours(now) {
		hour := h.Hour
		state.NextScheduledComfort = &hour
		if hour.Equal(now) {
			return state, Action{Kind: ActionRunNow, Hour: hour}
		}
		return state, Action{Kind: ActionScheduleRun, Hour: hour}
	}
	return state, Action{Kind: ActionNone}
}

// cheapestBefore finds the best comfort hour at or after now and no later
// than the deadline. With orEqual false the candidate must be strictly
// cheaper than limit; with orEqual true, no more expensive. Ties resolve
// to the earliest hour.
func cheapestBefore(decision model.ScheduleDecision, now, deadline time.Time, hasDeadline bool, limit float64, orEqual bool) (model.HourState, bool) {
	var best model.HourState
	found := false
	for _, h := range decision.ComfortHours(now) {
		if hasDeadline && h.Hour.After(deadline) {
			continue
		}
		if h.Price > limit || (!orEqual && h.Price == limit) {
			continue
		}
		if !found || h.Price < best.Price {
			best = h
			found = true
		}
	}
	return best, found
}
