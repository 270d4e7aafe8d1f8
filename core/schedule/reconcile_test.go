package schedule

import (
	"testing"
	"time"

	"github.com/askelund/spotheat/core/model"
)

var reconcileSettings = model.ScheduleSettings{ComfortHours: 3, TurnOffPercentile: 0.9, MaxComfortGapHours: 28}

func at(base time.Time, hour int) time.Time {
	return base.Add(time.Duration(hour) * time.Hour)
}

func TestReconcileSchedulesWhenIdle(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	dec := model.ScheduleDecision{
		{Hour: at(now, 0), State: model.StateTurnOff, Price: 2},
		{Hour: at(now, 2), State: model.StateComfort, Price: 0.4},
		{Hour: at(now, 5), State: model.StateComfort, Price: 0.6},
	}
	state, action := Reconcile(model.FlexibleState{}, dec, reconcileSettings, now)
	if action.Kind != ActionScheduleRun {
		t.Fatalf("expected schedule, got %v", action)
	}
	if !action.Hour.Equal(at(now, 2)) {
		t.Fatalf("expected earliest comfort hour, got %v", action.Hour)
	}
	if state.NextScheduledComfort == nil || !state.NextScheduledComfort.Equal(at(now, 2)) {
		t.Fatalf("cursor not set: %+v", state)
	}
}

func TestReconcileRunsNowWhenEarliestIsCurrentHour(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	dec := model.ScheduleDecision{
		{Hour: now, State: model.StateComfort, Price: 0.3},
		{Hour: at(now, 1), State: model.StateComfort, Price: 0.5},
	}
	state, action := Reconcile(model.FlexibleState{}, dec, reconcileSettings, now)
	if action.Kind != ActionRunNow {
		t.Fatalf("expected run-now, got %v", action)
	}
	// The cursor stays pending so a failed execution retries next cycle.
	if state.NextScheduledComfort == nil {
		t.Fatalf("cursor must stay pending until confirmed")
	}
}

func TestReconcileReschedulesToCheaperHour(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	last := now.Add(-4 * time.Hour)
	scheduled := at(now, 12) // hour 20, price 0.6
	state := model.FlexibleState{LastComfortRun: &last, NextScheduledComfort: &scheduled}
	dec := model.ScheduleDecision{
		{Hour: at(now, 10), State: model.StateComfort, Price: 0.3}, // hour 18
		{Hour: scheduled, State: model.StateComfort, Price: 0.6},
	}
	updated, action := Reconcile(state, dec, reconcileSettings, now)
	if action.Kind != ActionRescheduleRun {
		t.Fatalf("expected reschedule, got %v", action)
	}
	if !action.From.Equal(scheduled) || !action.Hour.Equal(at(now, 10)) {
		t.Fatalf("unexpected move %v", action)
	}
	if !updated.NextScheduledComfort.Equal(at(now, 10)) {
		t.Fatalf("cursor not moved: %+v", updated)
	}
}

func TestReconcileNeverMovesPastDeadline(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	last := now.Add(-20 * time.Hour) // deadline now+8h
	scheduled := at(now, 6)
	state := model.FlexibleState{LastComfortRun: &last, NextScheduledComfort: &scheduled}
	dec := model.ScheduleDecision{
		{Hour: scheduled, State: model.StateComfort, Price: 0.6},
		{Hour: at(now, 10), State: model.StateComfort, Price: 0.1}, // cheaper but after deadline
	}
	updated, action := Reconcile(state, dec, reconcileSettings, now)
	if action.Kind != ActionNone {
		t.Fatalf("cheaper hour past deadline must not steal the run, got %v", action)
	}
	if !updated.NextScheduledComfort.Equal(scheduled) {
		t.Fatalf("cursor moved: %+v", updated)
	}
}

func TestReconcileOverdueForcesRunNow(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Hour)
	scheduled := now.Add(-1 * time.Hour)
	state := model.FlexibleState{LastComfortRun: &last, NextScheduledComfort: &scheduled}
	dec := model.ScheduleDecision{
		{Hour: at(now, 3), State: model.StateComfort, Price: 0.2},
	}
	_, action := Reconcile(state, dec, reconcileSettings, now)
	if action.Kind != ActionRunNow {
		t.Fatalf("overdue run must execute immediately, got %v", action)
	}
}

func TestReconcileClearsStaleCursor(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	last := now.Add(-10 * time.Hour)
	stale := last.Add(40 * time.Hour) // past last+28h
	state := model.FlexibleState{LastComfortRun: &last, NextScheduledComfort: &stale}
	dec := model.ScheduleDecision{
		{Hour: at(now, 2), State: model.StateComfort, Price: 0.5},
	}
	updated, action := Reconcile(state, dec, reconcileSettings, now)
	if action.Kind != ActionScheduleRun || !action.Hour.Equal(at(now, 2)) {
		t.Fatalf("expected fresh schedule after stale cursor, got %v", action)
	}
	if !updated.NextScheduledComfort.Equal(at(now, 2)) {
		t.Fatalf("cursor not repicked: %+v", updated)
	}
}

func TestReconcileTurnOffFlipMovesInsideDeadline(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	last := now.Add(-4 * time.Hour)
	scheduled := at(now, 5)
	state := model.FlexibleState{LastComfortRun: &last, NextScheduledComfort: &scheduled}
	dec := model.ScheduleDecision{
		{Hour: at(now, 3), State: model.StateComfort, Price: 0.7},
		{Hour: scheduled, State: model.StateTurnOff, Price: 1.9}, // spiked after selection
	}
	updated, action := Reconcile(state, dec, reconcileSettings, now)
	if action.Kind != ActionRescheduleRun || !action.Hour.Equal(at(now, 3)) {
		t.Fatalf("expected move off the spiked hour, got %v", action)
	}
	if !updated.NextScheduledComfort.Equal(at(now, 3)) {
		t.Fatalf("cursor not moved: %+v", updated)
	}
}

func TestReconcileTurnOffFlipKeepsHourWithoutAlternative(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	last := now.Add(-26 * time.Hour) // deadline now+2h
	scheduled := at(now, 1)
	state := model.FlexibleState{LastComfortRun: &last, NextScheduledComfort: &scheduled}
	dec := model.ScheduleDecision{
		{Hour: scheduled, State: model.StateTurnOff, Price: 1.9},
		{Hour: at(now, 6), State: model.StateComfort, Price: 0.2}, // after deadline
	}
	updated, action := Reconcile(state, dec, reconcileSettings, now)
	if action.Kind != ActionNone {
		t.Fatalf("deadline safety must keep the original hour, got %v", action)
	}
	if !updated.NextScheduledComfort.Equal(scheduled) {
		t.Fatalf("cursor moved: %+v", updated)
	}
}

func TestConfirmClearsCursor(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	scheduled := now
	state := model.FlexibleState{NextScheduledComfort: &scheduled}
	confirmed := Confirm(state, now)
	if confirmed.NextScheduledComfort != nil {
		t.Fatalf("cursor not cleared")
	}
	if confirmed.LastComfortRun == nil || !confirmed.LastComfortRun.Equal(now) {
		t.Fatalf("last run not recorded: %+v", confirmed)
	}
}
