package syncer

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/muratovb/geowatch/internal/api"
	"github.com/muratovb/geowatch/internal/models"
	"github.com/muratovb/geowatch/internal/timer"
)

// EventStore is the slice of the store the engine needs.
type EventStore interface {
	UnsyncedEvents() ([]models.AttendanceEvent, error)
	MarkSynced(id string, syncedAt time.Time) error
}

// Sender delivers one event to the remote API.
type Sender interface {
	SendEvent(ctx context.Context, event *models.AttendanceEvent) error
}

// SenderFunc resolves a Sender with current credentials. It is called once
// per pass so a token saved mid-run is picked up without restarting the
// engine. Returning api.ErrAuthMissing skips the pass entirely.
type SenderFunc func() (Sender, error)

// Result summarizes one sync pass.
type Result struct {
	Synced int
	Failed int
}

// Retry reports whether the whole pass should be rescheduled.
func (r Result) Retry() bool { return r.Failed > 0 }

// Engine pushes unsynced attendance events to the server, periodically and
// on demand. Delivery is at-least-once: an event is marked synced only after
// a confirmed 2xx, and a failed event stays in the log for the next pass.
type Engine struct {
	store    EventStore
	sender   SenderFunc
	clock    timer.Clock
	log      *zap.Logger
	interval time.Duration
	flex     time.Duration
	kick     chan struct{}
}

// New creates a sync engine. interval is the periodic cadence, flex the
// jitter window around it.
func New(store EventStore, sender SenderFunc, clock timer.Clock, log *zap.Logger, interval, flex time.Duration) *Engine {
	return &Engine{
		store:    store,
		sender:   sender,
		clock:    clock,
		log:      log,
		interval: interval,
		flex:     flex,
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests an immediate pass, used right after a failed direct API
// call. Coalesces when a kick is already pending.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// RunPass pushes every unsynced event once, in ascending timestamp order.
// A failing event is left unsynced and the pass moves on; there is no
// per-event retry loop inside a single pass.
func (e *Engine) RunPass(ctx context.Context) (Result, error) {
	events, err := e.store.UnsyncedEvents()
	if err != nil {
		return Result{}, err
	}
	if len(events) == 0 {
		return Result{}, nil
	}

	sender, err := e.sender()
	if err != nil {
		if errors.Is(err, api.ErrAuthMissing) {
			// No token: don't even try the network, ask for a later pass.
			e.log.Warn("sync skipped, auth token not available",
				zap.Int("pending", len(events)))
			return Result{Failed: len(events)}, nil
		}
		return Result{}, err
	}

	var result Result
	for i := range events {
		event := &events[i]
		if err := sender.SendEvent(ctx, event); err != nil {
			result.Failed++
			e.log.Warn("failed to sync event",
				zap.String("id", event.ID), zap.Error(err))
			continue
		}
		if err := e.store.MarkSynced(event.ID, e.clock.Now()); err != nil {
			result.Failed++
			e.log.Error("failed to mark event synced",
				zap.String("id", event.ID), zap.Error(err))
			continue
		}
		result.Synced++
	}

	e.log.Info("sync pass finished",
		zap.Int("synced", result.Synced), zap.Int("failed", result.Failed))
	return result, nil
}

// Run loops until ctx is cancelled, executing a pass on each periodic tick
// (with flex jitter) and on each Kick. A pass that leaves events behind is
// rescheduled with a shorter, bounded backoff instead of waiting the full
// interval.
func (e *Engine) Run(ctx context.Context) {
	backoff := time.Minute

	for {
		wait := e.nextWait()
		select {
		case <-ctx.Done():
			return
		case <-e.kick:
		case <-time.After(wait):
		}

		result, err := e.RunPass(ctx)
		if err != nil {
			e.log.Error("sync pass failed", zap.Error(err))
		}

		if result.Retry() {
			// Bounded reschedule: try again sooner than the next period.
			select {
			case <-ctx.Done():
				return
			case <-e.kick:
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > e.interval {
				backoff = e.interval
			}
			e.Kick()
			continue
		}
		backoff = time.Minute
	}
}

// nextWait returns the periodic interval with +-flex jitter applied.
func (e *Engine) nextWait() time.Duration {
	if e.flex <= 0 {
		return e.interval
	}
	jitter := time.Duration(rand.Int63n(int64(2*e.flex))) - e.flex
	wait := e.interval + jitter
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}
