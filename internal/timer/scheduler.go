package timer

import (
	"sync"
	"time"
)

// Kind identifies one of the two independent grace timers.
type Kind string

const (
	Entry Kind = "entry"
	Exit  Kind = "exit"
)

// Callbacks are invoked by the scheduler on timer lifecycle changes. All
// callbacks run outside the scheduler lock; OnFire and OnTick run on their
// own goroutines so a slow consumer cannot stall arming or cancelling.
type Callbacks struct {
	OnStart  func(kind Kind, duration time.Duration)
	OnTick   func(kind Kind, remaining time.Duration)
	OnFire   func(kind Kind, locationID string)
	OnCancel func(kind Kind)
}

// graceTimer exists only while armed; destroyed on cancel or fire.
type graceTimer struct {
	kind       Kind
	locationID string
	startedAt  time.Time
	duration   time.Duration
	fire       *time.Timer
	stopTicks  chan struct{}
}

// Scheduler manages the entry and exit grace timers. Each armed timer fires
// exactly once after its duration unless cancelled first, and
// cancel-then-restart is atomic: there is never an overlapping timer for the
// same kind. Remaining time is always computed from the start instant, so a
// timer restored after a process restart picks up where it left off instead
// of resetting to full duration.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	timers map[Kind]*graceTimer
	cb     Callbacks
}

// NewScheduler creates a scheduler with no armed timers.
func NewScheduler(clock Clock, cb Callbacks) *Scheduler {
	return &Scheduler{
		clock:  clock,
		timers: make(map[Kind]*graceTimer),
		cb:     cb,
	}
}

// Arm starts a fresh timer of the given kind, cancelling any previous one.
// Returns the start instant, which the caller persists.
func (s *Scheduler) Arm(kind Kind, locationID string, duration time.Duration) time.Time {
	startedAt := s.clock.Now()
	s.arm(kind, locationID, startedAt, duration, true)
	return startedAt
}

// Restore re-arms a timer from a persisted start instant. If the remaining
// time is already gone the pending fire happens immediately.
func (s *Scheduler) Restore(kind Kind, locationID string, startedAt time.Time, duration time.Duration) {
	s.arm(kind, locationID, startedAt, duration, false)
}

func (s *Scheduler) arm(kind Kind, locationID string, startedAt time.Time, duration time.Duration, announce bool) {
	s.mu.Lock()

	s.cancelLocked(kind, false)

	remaining := duration - s.clock.Now().Sub(startedAt)
	if remaining <= 0 {
		s.mu.Unlock()
		if s.cb.OnFire != nil {
			go s.cb.OnFire(kind, locationID)
		}
		return
	}

	t := &graceTimer{
		kind:       kind,
		locationID: locationID,
		startedAt:  startedAt,
		duration:   duration,
		stopTicks:  make(chan struct{}),
	}
	t.fire = time.AfterFunc(remaining, func() { s.fired(t) })
	s.timers[kind] = t

	go s.runCountdown(t)

	s.mu.Unlock()

	if announce && s.cb.OnStart != nil {
		s.cb.OnStart(kind, duration)
	}
}

// fired removes the timer before invoking the callback, so a concurrent
// Cancel after expiry is a no-op and the callback runs at most once.
func (s *Scheduler) fired(t *graceTimer) {
	s.mu.Lock()
	current, ok := s.timers[t.kind]
	if !ok || current != t {
		s.mu.Unlock()
		return
	}
	delete(s.timers, t.kind)
	close(t.stopTicks)
	s.mu.Unlock()

	if s.cb.OnFire != nil {
		s.cb.OnFire(t.kind, t.locationID)
	}
}

// runCountdown emits a per-second remaining-time tick while the timer is
// armed. Ticks stop together with the timer: cancelling removes both the
// fire callback and the countdown.
func (s *Scheduler) runCountdown(t *graceTimer) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopTicks:
			return
		case <-ticker.C:
			remaining := t.duration - s.clock.Now().Sub(t.startedAt)
			if remaining < 0 {
				remaining = 0
			}
			if s.cb.OnTick != nil {
				s.cb.OnTick(t.kind, remaining)
			}
			if remaining == 0 {
				return
			}
		}
	}
}

// Cancel disarms a timer. Returns false if nothing was armed.
func (s *Scheduler) Cancel(kind Kind) bool {
	s.mu.Lock()
	cancelled := s.cancelLocked(kind, true)
	s.mu.Unlock()
	return cancelled
}

// CancelAll disarms both timers, for service stop.
func (s *Scheduler) CancelAll() {
	s.Cancel(Entry)
	s.Cancel(Exit)
}

func (s *Scheduler) cancelLocked(kind Kind, announce bool) bool {
	t, ok := s.timers[kind]
	if !ok {
		return false
	}
	t.fire.Stop()
	close(t.stopTicks)
	delete(s.timers, kind)

	if announce && s.cb.OnCancel != nil {
		go s.cb.OnCancel(kind)
	}
	return true
}

// Active reports whether a timer of the given kind is armed.
func (s *Scheduler) Active(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[kind]
	return ok
}

// StartedAt returns the armed timer's start instant.
func (s *Scheduler) StartedAt(kind Kind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[kind]
	if !ok {
		return time.Time{}, false
	}
	return t.startedAt, true
}

// Remaining returns how much grace time is left, or zero when not armed.
func (s *Scheduler) Remaining(kind Kind) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[kind]
	if !ok {
		return 0
	}
	remaining := t.duration - s.clock.Now().Sub(t.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
