package tracker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muratovb/geowatch/internal/config"
	"github.com/muratovb/geowatch/internal/geo"
	"github.com/muratovb/geowatch/internal/models"
	"github.com/muratovb/geowatch/internal/store"
	"github.com/muratovb/geowatch/internal/timer"
)

// Kicker requests an immediate sync pass after a failed direct delivery.
type Kicker interface {
	Kick()
}

// Tracker is the presence state machine. It owns the persisted tracker
// snapshot and both grace timers: every position update, timer fire and
// deep-validation tick is serialized through one mutex, so two position
// updates can never race on the inside/checked-in state. Network delivery
// runs on its own goroutines and re-enters the lock only to record results.
type Tracker struct {
	mu     sync.Mutex
	cfg    *config.Config
	store  *store.Store
	clock  timer.Clock
	log    *zap.Logger
	kicker Kicker

	sched  *timer.Scheduler
	eval   *geo.Evaluator
	state  *models.PersistentState
	events chan Event

	stopDeep chan struct{} // non-nil while the deep-validation loop runs
}

// New creates a tracker over the given store, restoring the persisted
// snapshot. It does not arm anything until Start.
func New(cfg *config.Config, st *store.Store, clock timer.Clock, log *zap.Logger, kicker Kicker) (*Tracker, error) {
	state, err := st.LoadState()
	if err != nil {
		return nil, fmt.Errorf("failed to load tracker state: %w", err)
	}

	t := &Tracker{
		cfg:    cfg,
		store:  st,
		clock:  clock,
		log:    log,
		kicker: kicker,
		eval:   geo.NewEvaluator(state.WorkLocations),
		state:  state,
		events: make(chan Event, 64),
	}

	t.sched = timer.NewScheduler(clock, timer.Callbacks{
		OnStart: func(kind timer.Kind, duration time.Duration) {
			t.publish(Event{Type: EventTimerStart, TimerKind: kind, Duration: duration})
		},
		OnTick: func(kind timer.Kind, remaining time.Duration) {
			t.publish(Event{Type: EventTimerUpdate, TimerKind: kind, Remaining: remaining})
		},
		OnFire: t.onTimerFire,
		OnCancel: func(kind timer.Kind) {
			t.publish(Event{Type: EventTimerCancelled, TimerKind: kind})
		},
	})

	return t, nil
}

// Start arms the state machine: persists the given config, restores any
// in-flight grace timer from its persisted start instant, begins deep
// validation and runs an immediate evaluation against the last known fix.
// Empty arguments keep whatever was persisted before.
func (t *Tracker) Start(locations []models.WorkLocation, apiBaseURL, authToken string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if locations != nil {
		t.state.WorkLocations = locations
		t.eval = geo.NewEvaluator(locations)
	}
	if apiBaseURL != "" {
		t.state.APIBaseURL = apiBaseURL
	}
	if authToken != "" {
		t.state.AuthToken = authToken
	}
	t.state.Enabled = true
	t.resetOverrideIfExpiredLocked()

	if err := t.store.SaveState(t.state); err != nil {
		return fmt.Errorf("failed to persist tracker config: %w", err)
	}

	t.restoreTimersLocked()

	if deleted, err := t.store.DeleteSyncedBefore(t.retentionCutoff()); err != nil {
		t.log.Warn("retention cleanup failed", zap.Error(err))
	} else if deleted > 0 {
		t.log.Info("retention cleanup", zap.Int64("deleted", deleted))
	}

	if t.stopDeep == nil {
		t.stopDeep = make(chan struct{})
		go t.runDeepValidation(t.stopDeep)
	}

	t.log.Info("tracker started",
		zap.Int("locations", len(t.state.WorkLocations)),
		zap.Bool("checked_in", t.state.CheckedIn))

	// Immediate check against the last known fix, so a restart inside a
	// region does not wait for the next position update.
	if t.state.HasFix() {
		t.evaluateLocked(t.state.LastLatitude, t.state.LastLongitude)
		t.saveLocked()
	}
	return nil
}

// Stop cancels all armed timers, halts deep validation and persists the
// disabled flag. Pending unsynced events stay in the log for a later sync.
func (t *Tracker) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Enabled = false
	t.sched.CancelAll()
	t.state.EntryTimerStart = nil
	t.state.EntryTimerLocationID = ""
	t.state.ExitTimerStart = nil

	if t.stopDeep != nil {
		close(t.stopDeep)
		t.stopDeep = nil
	}

	t.log.Info("tracker stopped")
	return t.store.SaveState(t.state)
}

// UpdateLocations hot-swaps the active geofence set.
func (t *Tracker) UpdateLocations(locations []models.WorkLocation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.WorkLocations = locations
	t.eval = geo.NewEvaluator(locations)
	t.log.Info("work locations updated", zap.Int("count", len(locations)))
	return t.store.SaveState(t.state)
}

// OnPosition feeds a new location fix into the state machine.
func (t *Tracker) OnPosition(lat, lng, accuracy float64, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Enabled {
		return
	}

	t.log.Debug("position update",
		zap.Float64("lat", lat), zap.Float64("lng", lng),
		zap.Float64("accuracy", accuracy))

	t.state.LastLatitude = lat
	t.state.LastLongitude = lng
	t.state.LastFixAt = &ts

	t.evaluateLocked(lat, lng)
	t.saveLocked()
}

// evaluateLocked runs one transition of the state machine for a position.
// Caller holds t.mu.
func (t *Tracker) evaluateLocked(lat, lng float64) {
	now := t.clock.Now()
	t.resetOverrideIfExpiredLocked()

	match, inside := t.eval.Locate(lat, lng)
	wasInside := t.state.IsInsideRegion

	if inside {
		t.state.IsInsideRegion = true
		t.state.CurrentRegionID = match.Location.ID

		switch {
		case t.state.CheckedIn:
			// Back (or still) inside while checked in: abort any exit grace.
			if t.state.ExitTimerStart != nil {
				t.log.Info("inside region again, exit timer cancelled")
				t.cancelExitLocked()
			}
		case t.state.OverrideActive(now):
			// Manual override: no timer, no event until the next day.
		case !wasInside:
			t.log.Info("entered region, starting entry grace timer",
				zap.String("location", match.Location.ID),
				zap.Float64("distance_m", match.Distance))
			t.startEntryLocked(match.Location.ID)
		default:
			// Still inside, not checked in.
			if start := t.state.EntryTimerStart; start != nil {
				if now.Sub(*start) >= t.cfg.EntryGrace {
					if err := t.performCheckInLocked(t.state.EntryTimerLocationID, "Auto check-in", true); err != nil {
						t.log.Error("check-in failed", zap.Error(err))
					}
				}
			} else {
				// No timer running: start one from zero.
				t.startEntryLocked(match.Location.ID)
			}
		}
		return
	}

	t.state.IsInsideRegion = false
	t.state.CurrentRegionID = ""

	if t.state.CheckedIn {
		if start := t.state.ExitTimerStart; start != nil {
			if now.Sub(*start) >= t.cfg.ExitGrace {
				if err := t.performCheckOutLocked("Auto check-out", true); err != nil {
					t.log.Error("check-out failed", zap.Error(err))
				}
			}
		} else {
			t.log.Info("left region, starting exit grace timer")
			t.startExitLocked()
		}
		return
	}

	// Outside and not checked in: abort any entry grace.
	if t.state.EntryTimerStart != nil {
		t.log.Info("left region before entry grace elapsed, timer cancelled")
		t.cancelEntryLocked()
	}
}

// onTimerFire runs when a grace timer expires. It re-enters the serialized
// owner before touching any state.
func (t *Tracker) onTimerFire(kind timer.Kind, locationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Enabled {
		return
	}

	// The fire can race a cancel: the scheduler removes the timer before
	// this callback re-enters the lock, so a cancel landing in that window
	// cannot stop it. Cancels clear the persisted start under the lock,
	// which makes a cleared start the stale-fire signal. The
	// restore-after-restart path keeps the start set, so an elapsed
	// restored timer still passes.
	if kind == timer.Entry && t.state.EntryTimerStart == nil {
		return
	}
	if kind == timer.Exit && t.state.ExitTimerStart == nil {
		return
	}

	t.publish(Event{Type: EventTimerComplete, TimerKind: kind})

	var err error
	if kind == timer.Entry {
		err = t.performCheckInLocked(locationID, "Auto check-in", true)
	} else {
		err = t.performCheckOutLocked("Auto check-out", true)
	}
	if err != nil {
		t.log.Error("grace timer action failed",
			zap.String("timer", string(kind)), zap.Error(err))
	}
}

func (t *Tracker) startEntryLocked(locationID string) {
	startedAt := t.sched.Arm(timer.Entry, locationID, t.cfg.EntryGrace)
	t.state.EntryTimerStart = &startedAt
	t.state.EntryTimerLocationID = locationID
}

func (t *Tracker) startExitLocked() {
	startedAt := t.sched.Arm(timer.Exit, "", t.cfg.ExitGrace)
	t.state.ExitTimerStart = &startedAt
}

func (t *Tracker) cancelEntryLocked() {
	t.sched.Cancel(timer.Entry)
	t.state.EntryTimerStart = nil
	t.state.EntryTimerLocationID = ""
}

func (t *Tracker) cancelExitLocked() {
	t.sched.Cancel(timer.Exit)
	t.state.ExitTimerStart = nil
}

// restoreTimersLocked re-arms grace timers from persisted start instants.
// An already-elapsed timer fires its pending action immediately; a start
// that no longer matches the checked-in state is stale and dropped.
func (t *Tracker) restoreTimersLocked() {
	if start := t.state.EntryTimerStart; start != nil {
		if !t.state.CheckedIn {
			t.log.Info("restoring entry grace timer",
				zap.Duration("elapsed", t.clock.Now().Sub(*start)))
			t.sched.Restore(timer.Entry, t.state.EntryTimerLocationID, *start, t.cfg.EntryGrace)
		} else {
			t.state.EntryTimerStart = nil
			t.state.EntryTimerLocationID = ""
		}
	}

	if start := t.state.ExitTimerStart; start != nil {
		if t.state.CheckedIn {
			t.log.Info("restoring exit grace timer",
				zap.Duration("elapsed", t.clock.Now().Sub(*start)))
			t.sched.Restore(timer.Exit, "", *start, t.cfg.ExitGrace)
		} else {
			t.state.ExitTimerStart = nil
		}
	}
}

// runDeepValidation unconditionally re-evaluates the last known fix on a
// long interval, as a safety net against missed position updates, and runs
// retention cleanup alongside.
func (t *Tracker) runDeepValidation(stop chan struct{}) {
	ticker := time.NewTicker(t.cfg.DeepValidation)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		enabled := t.state.Enabled
		if enabled && t.state.HasFix() {
			t.log.Debug("deep validation tick")
			t.evaluateLocked(t.state.LastLatitude, t.state.LastLongitude)
			t.saveLocked()
		}
		t.mu.Unlock()

		if !enabled {
			continue
		}
		if _, err := t.store.DeleteSyncedBefore(t.retentionCutoff()); err != nil {
			t.log.Warn("retention cleanup failed", zap.Error(err))
		}
	}
}

func (t *Tracker) retentionCutoff() time.Time {
	return t.clock.Now().AddDate(0, 0, -t.cfg.RetentionDays)
}

func (t *Tracker) saveLocked() {
	if err := t.store.SaveState(t.state); err != nil {
		t.log.Error("failed to persist tracker state", zap.Error(err))
	}
}

func (t *Tracker) resetOverrideIfExpiredLocked() {
	now := t.clock.Now()
	if t.state.OverrideUntil != nil && !now.Before(*t.state.OverrideUntil) {
		t.state.OverrideUntil = nil
		t.log.Info("new day, auto check-in re-enabled")
	}
}
