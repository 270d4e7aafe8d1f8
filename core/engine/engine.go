package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/askelund/spotheat/core/events"
	"github.com/askelund/spotheat/core/gateway"
	"github.com/askelund/spotheat/core/logger"
	"github.com/askelund/spotheat/core/metrics"
	"github.com/askelund/spotheat/core/model"
	"github.com/askelund/spotheat/core/prices"
	"github.com/askelund/spotheat/core/schedule"
	"github.com/askelund/spotheat/core/storage"
	"github.com/askelund/spotheat/internal/eventbus"
)

// CycleResult is the structured outcome of one per-user cycle. Collaborator
// failures land in Message rather than an error so a batch never aborts on
// a single user.
type CycleResult struct {
	Applied  bool
	Decision model.ScheduleDecision
	Action   schedule.Action
	Message  string
}

// Engine wires the pure classification and reconciliation algorithms to
// the price source, the repositories and the device gateway.
type Engine struct {
	prices   *prices.CachedSource
	settings storage.SettingsRepository
	states   storage.StateRepository
	history  storage.HistoryRepository
	users    storage.UserDirectory
	applier  gateway.Applier
	sink     metrics.Sink
	bus      eventbus.EventBus
	log      logger.Logger
}

// New creates an Engine. The sink and bus may be nil.
func New(src *prices.CachedSource, settings storage.SettingsRepository, states storage.StateRepository, history storage.HistoryRepository, users storage.UserDirectory, applier gateway.Applier, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger) *Engine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		prices:   src,
		settings: settings,
		states:   states,
		history:  history,
		users:    users,
		applier:  applier,
		sink:     sink,
		bus:      bus,
		log:      log,
	}
}

// GenerateDecision computes a preview decision for a zone. It acquires no
// lease and mutates no per-user state, so it is safe to call from
// interactive handlers concurrently with the background jobs.
func (e *Engine) GenerateDecision(ctx context.Context, zone string, settings model.ScheduleSettings, now time.Time) (model.ScheduleDecision, error) {
	series, err := e.prices.Horizon(ctx, zone, now)
	if err != nil {
		return nil, fmt.Errorf("fetch prices for %s: %w", zone, err)
	}
	return schedule.Classify(series, settings, now)
}

// RunCycle executes the compute-and-apply step for one user: fetch prices,
// classify, reconcile against the persisted cursor, append history, and
// push to the device when a run is due and the user opted in.
func (e *Engine) RunCycle(ctx context.Context, userID string, now time.Time) CycleResult {
	settings, err := e.settings.UserScheduleSettings(ctx, userID)
	if err != nil {
		return e.record(userID, CycleResult{Message: fmt.Sprintf("load settings: %v", err)}, "", now)
	}
	if normalized, clamped := settings.Normalize(0); clamped {
		e.log.Warnf("user %s: settings out of range, clamped", userID)
		settings = normalized
	}

	decision, warn := e.decide(ctx, userID, settings, now)
	if decision == nil {
		return e.record(userID, CycleResult{Message: warn}, settings.Zone, now)
	}

	state, err := e.states.Load(ctx, userID)
	if err != nil {
		return e.record(userID, CycleResult{Decision: decision, Message: fmt.Sprintf("load state: %v", err)}, settings.Zone, now)
	}
	state, action := schedule.Reconcile(state, decision, settings, now)

	if err := e.history.Append(ctx, model.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Timestamp: now,
		Decision:  decision,
	}); err != nil {
		// Auditing must not block the run itself.
		e.log.Errorf("user %s: append history: %v", userID, err)
	}

	result := CycleResult{Decision: decision, Action: action, Message: warn}
	if action.Kind == schedule.ActionRunNow && settings.AutoApply {
		if err := e.apply(ctx, userID, action.Hour); err != nil {
			// The cursor stays pending; the next lease window retries.
			result.Message = fmt.Sprintf("apply deferred: %v", err)
			if gateway.IsAuthError(err) {
				e.publish(events.AuthFailure{UserID: userID, Reason: err.Error(), Time: now})
			}
		} else {
			state = schedule.Confirm(state, now)
			result.Applied = true
			e.publish(events.RunApplied{UserID: userID, Hour: action.Hour})
		}
	}

	if err := e.states.Save(ctx, userID, state); err != nil {
		e.log.Errorf("user %s: save state: %v", userID, err)
		if result.Message == "" {
			result.Message = fmt.Sprintf("save state: %v", err)
		}
	}
	return e.record(userID, result, settings.Zone, now)
}

// RunBatch runs RunCycle for each user strictly sequentially. One user's
// compute-and-apply completes, success or failure, before the next starts,
// bounding load on the device API and attributing failures per user.
func (e *Engine) RunBatch(ctx context.Context, now time.Time, everyone bool) error {
	var (
		ids []string
		err error
	)
	if everyone {
		ids, err = e.users.AllUsers(ctx)
	} else {
		ids, err = e.users.AutoApplyUsers(ctx)
	}
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := e.RunCycle(ctx, id, now)
		if res.Message != "" {
			e.log.Warnf("user %s: %s", id, res.Message)
		}
	}
	return nil
}

// decide classifies the current horizon, falling back to the latest stored
// decision when price data is unavailable.
func (e *Engine) decide(ctx context.Context, userID string, settings model.ScheduleSettings, now time.Time) (model.ScheduleDecision, string) {
	series, err := e.prices.Horizon(ctx, settings.Zone, now)
	if err == nil {
		decision, cerr := schedule.Classify(series, settings, now)
		if cerr == nil {
			return decision, ""
		}
		err = cerr
	}

	prior, ok, herr := e.history.Latest(ctx, userID)
	if herr != nil || !ok {
		return nil, fmt.Sprintf("no price data and no prior decision: %v", err)
	}
	e.log.Warnf("user %s: no price data, reusing decision from %s", userID, prior.Timestamp.Format(time.RFC3339))
	return prior.Decision, fmt.Sprintf("price data unavailable, reused decision from %s", prior.Timestamp.Format(time.RFC3339))
}

// apply pushes a comfort run with a single immediate retry on transient
// failure. Authorization failures are never retried here.
func (e *Engine) apply(ctx context.Context, userID string, hour time.Time) error {
	start := time.Now()
	err := e.applier.Apply(ctx, userID, hour, model.StateComfort)
	if err != nil && !gateway.IsAuthError(err) {
		err = e.applier.Apply(ctx, userID, hour, model.StateComfort)
	}
	if serr := e.sink.RecordApply(metrics.ApplyEvent{
		UserID:  userID,
		Success: err == nil,
		Auth:    gateway.IsAuthError(err),
		Latency: time.Since(start),
	}); serr != nil {
		e.log.Debugf("record apply: %v", serr)
	}
	return err
}

func (e *Engine) record(userID string, res CycleResult, zone string, now time.Time) CycleResult {
	e.log.Debugw("cycle complete", map[string]any{
		"user":    userID,
		"zone":    zone,
		"action":  res.Action.Kind.String(),
		"applied": res.Applied,
	})
	if err := e.sink.RecordCycle(metrics.CycleEvent{
		UserID:  userID,
		Zone:    zone,
		Action:  res.Action.Kind,
		Applied: res.Applied,
		Err:     res.Message,
		Time:    now,
	}); err != nil {
		e.log.Debugf("record cycle: %v", err)
	}
	return res
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
