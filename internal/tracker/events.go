package tracker

import (
	"time"

	"github.com/muratovb/geowatch/internal/timer"
)

// Outbound event types emitted to UI collaborators.
const (
	EventCheckIn        = "check_in"
	EventCheckOut       = "check_out"
	EventTimerStart     = "timer_start"
	EventTimerUpdate    = "timer_update"
	EventTimerComplete  = "timer_complete"
	EventTimerCancelled = "timer_cancelled"
)

// Event is a notification from the tracker to whoever is watching (the
// status UI, mostly). Timer events carry the kind and countdown fields;
// check-in events carry the location.
type Event struct {
	Type       string
	TimerKind  timer.Kind
	LocationID string
	Timestamp  time.Time
	Duration   time.Duration
	Remaining  time.Duration
}

// Events returns the tracker's outbound event feed. Delivery is best
// effort: when nobody is draining the channel, events are dropped rather
// than blocking the state machine.
func (t *Tracker) Events() <-chan Event {
	return t.events
}

func (t *Tracker) publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.clock.Now()
	}
	select {
	case t.events <- ev:
	default:
	}
}
