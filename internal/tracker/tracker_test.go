package tracker

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muratovb/geowatch/internal/config"
	"github.com/muratovb/geowatch/internal/logging"
	"github.com/muratovb/geowatch/internal/models"
	"github.com/muratovb/geowatch/internal/store"
	"github.com/muratovb/geowatch/internal/timer"
)

const (
	hqLat = 41.311081
	hqLng = 69.240562

	// ~1.5 km north of HQ, outside its 100 m radius.
	awayLat = hqLat + 0.014
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeKicker struct {
	mu    sync.Mutex
	kicks int
}

func (k *fakeKicker) Kick() {
	k.mu.Lock()
	k.kicks++
	k.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		// Unreachable host: direct delivery fails fast and events stay
		// unsynced, which keeps assertions deterministic.
		APIBaseURL:       "http://127.0.0.1:1",
		AuthToken:        "test-token",
		EntryGrace:       time.Minute,
		ExitGrace:        time.Minute,
		DeepValidation:   time.Hour,
		SyncInterval:     15 * time.Minute,
		DirectRetries:    1,
		DirectRetryDelay: time.Millisecond,
		RetentionDays:    30,
	}
}

func testLocations() []models.WorkLocation {
	return []models.WorkLocation{
		{ID: "hq", Name: "HQ", Latitude: hqLat, Longitude: hqLng, RadiusMeters: 100},
	}
}

func newTestTracker(t *testing.T, clock *fakeClock) (*Tracker, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "geowatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return newTrackerOn(t, s, clock), s
}

func newTrackerOn(t *testing.T, s *store.Store, clock *fakeClock) *Tracker {
	t.Helper()
	tr, err := New(testConfig(), s, clock, logging.Nop(), &fakeKicker{})
	require.NoError(t, err)
	return tr
}

func startTracker(t *testing.T, tr *Tracker) {
	t.Helper()
	require.NoError(t, tr.Start(testLocations(), "", ""))
	t.Cleanup(func() { tr.Stop() })
}

func countEvents(t *testing.T, s *store.Store, eventType string) int {
	t.Helper()
	events, err := s.RecentEvents(100)
	require.NoError(t, err)
	n := 0
	for _, e := range events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func TestEntry_StartsOneTimer(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())

	status := tr.Status()
	assert.True(t, status.InsideRegion)
	assert.Equal(t, "hq", status.CurrentRegionID)
	assert.False(t, status.CheckedIn)
	assert.Equal(t, time.Minute, status.EntryRemaining)

	// Re-entering while already timing must not restart the countdown.
	clock.Advance(20 * time.Second)
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	assert.Equal(t, 40*time.Second, tr.Status().EntryRemaining)

	assert.Zero(t, countEvents(t, s, models.EventCheckIn))
}

func TestEntry_GraceElapsedChecksIn(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	armedAt := clock.Now()

	clock.Advance(61 * time.Second)
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())

	status := tr.Status()
	assert.True(t, status.CheckedIn)
	assert.Equal(t, "hq", status.CheckedInLocationID)
	assert.Zero(t, status.EntryRemaining)

	events, err := s.UnsyncedEvents()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCheckIn, events[0].EventType)
	assert.True(t, events[0].IsAuto)
	// Id derives from the timer start, so duplicate fires collapse.
	assert.Equal(t, fmt.Sprintf("CHECK_IN_%d", armedAt.UnixMilli()), events[0].ID)

	// Another evaluation while checked in appends nothing.
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	assert.Equal(t, 1, countEvents(t, s, models.EventCheckIn))
}

func TestEntry_LeavingBeforeGraceCancels(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	clock.Advance(30 * time.Second)
	tr.OnPosition(awayLat, hqLng, 10, clock.Now())

	status := tr.Status()
	assert.False(t, status.InsideRegion)
	assert.False(t, status.CheckedIn)
	assert.Zero(t, status.EntryRemaining)
	assert.Zero(t, countEvents(t, s, models.EventCheckIn))
}

func checkIn(t *testing.T, tr *Tracker, clock *fakeClock) {
	t.Helper()
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	clock.Advance(61 * time.Second)
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	require.True(t, tr.Status().CheckedIn)
}

func TestExit_ReturnBeforeGraceCancels(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)
	checkIn(t, tr, clock)

	tr.OnPosition(awayLat, hqLng, 10, clock.Now())
	assert.Equal(t, time.Minute, tr.Status().ExitRemaining)

	clock.Advance(30 * time.Second)
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())

	status := tr.Status()
	assert.True(t, status.CheckedIn)
	assert.Zero(t, status.ExitRemaining)
	assert.Zero(t, countEvents(t, s, models.EventCheckOut))
}

func TestExit_GraceElapsedChecksOut(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)
	checkIn(t, tr, clock)

	tr.OnPosition(awayLat, hqLng, 10, clock.Now())
	clock.Advance(61 * time.Second)
	tr.OnPosition(awayLat, hqLng, 10, clock.Now())

	status := tr.Status()
	assert.False(t, status.CheckedIn)
	assert.Empty(t, status.CheckedInLocationID)
	assert.Equal(t, 1, countEvents(t, s, models.EventCheckOut))
}

func TestExitFire_DeliveredAfterCancelIsIgnored(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)
	checkIn(t, tr, clock)

	tr.OnPosition(awayLat, hqLng, 10, clock.Now())
	require.Equal(t, time.Minute, tr.Status().ExitRemaining)

	// Back inside before the grace elapses: the cancel clears the
	// persisted exit start under the lock.
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	require.Zero(t, tr.Status().ExitRemaining)

	// A fire already in flight when the cancel landed arrives late; it
	// must not check the user out.
	tr.onTimerFire(timer.Exit, "")

	assert.True(t, tr.Status().CheckedIn)
	assert.Zero(t, countEvents(t, s, models.EventCheckOut))
}

func TestEntryFire_DeliveredAfterCancelIsIgnored(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	require.Equal(t, time.Minute, tr.Status().EntryRemaining)

	// Leaving cancels the pending entry grace.
	tr.OnPosition(awayLat, hqLng, 10, clock.Now())

	tr.onTimerFire(timer.Entry, "hq")

	assert.False(t, tr.Status().CheckedIn)
	assert.Zero(t, countEvents(t, s, models.EventCheckIn))
}

func TestDeepValidation_ChecksInAfterMissedUpdates(t *testing.T) {
	clock := newFakeClock()
	s, err := store.Open(filepath.Join(t.TempDir(), "geowatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := testConfig()
	cfg.DeepValidation = 25 * time.Millisecond

	tr, err := New(cfg, s, clock, logging.Nop(), &fakeKicker{})
	require.NoError(t, err)
	startTracker(t, tr)

	// One fix inside, then no position updates at all; only the periodic
	// safety net re-evaluates the stored fix after the grace elapses.
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	clock.Advance(61 * time.Second)

	require.Eventually(t, func() bool {
		return tr.Status().CheckedIn
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, countEvents(t, s, models.EventCheckIn))
}

func TestRestart_RestoresRemainingTime(t *testing.T) {
	clock := newFakeClock()
	s, err := store.Open(filepath.Join(t.TempDir(), "geowatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tr1 := newTrackerOn(t, s, clock)
	require.NoError(t, tr1.Start(testLocations(), "", ""))
	tr1.OnPosition(hqLat, hqLng, 10, clock.Now())
	require.Equal(t, time.Minute, tr1.Status().EntryRemaining)
	// Process killed here: no Stop, the armed start stays persisted.

	clock.Advance(45 * time.Second)
	tr2 := newTrackerOn(t, s, clock)
	require.NoError(t, tr2.Start(nil, "", ""))
	t.Cleanup(func() { tr2.Stop() })

	// 15 seconds left, not a fresh minute.
	assert.Equal(t, 15*time.Second, tr2.Status().EntryRemaining)
	assert.False(t, tr2.Status().CheckedIn)
}

func TestRestart_ElapsedTimerFiresImmediately(t *testing.T) {
	clock := newFakeClock()
	s, err := store.Open(filepath.Join(t.TempDir(), "geowatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tr1 := newTrackerOn(t, s, clock)
	require.NoError(t, tr1.Start(testLocations(), "", ""))
	tr1.OnPosition(hqLat, hqLng, 10, clock.Now())

	clock.Advance(2 * time.Minute)
	tr2 := newTrackerOn(t, s, clock)
	require.NoError(t, tr2.Start(nil, "", ""))
	t.Cleanup(func() { tr2.Stop() })

	assert.True(t, tr2.Status().CheckedIn)
	assert.Equal(t, 1, countEvents(t, s, models.EventCheckIn))
}

func TestManualOverride_SuppressesUntilMidnight(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)
	checkIn(t, tr, clock)

	require.NoError(t, tr.ManualOverrideOff())

	status := tr.Status()
	assert.False(t, status.CheckedIn)
	require.NotNil(t, status.OverrideUntil)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), *status.OverrideUntil)
	assert.Equal(t, 1, countEvents(t, s, models.EventCheckOut))

	// Re-entering during the override window arms nothing and appends
	// nothing.
	tr.OnPosition(awayLat, hqLng, 10, clock.Now())
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	assert.Zero(t, tr.Status().EntryRemaining)
	clock.Advance(2 * time.Minute)
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	assert.Equal(t, 1, countEvents(t, s, models.EventCheckIn))
	assert.False(t, tr.Status().CheckedIn)

	// Past midnight the override resets and the next evaluation starts a
	// fresh entry grace timer.
	clock.Advance(16 * time.Hour)
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	status = tr.Status()
	assert.Nil(t, status.OverrideUntil)
	assert.Equal(t, time.Minute, status.EntryRemaining)
}

func TestManualCheckInAndOut(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())

	require.NoError(t, tr.ManualCheckIn("", "on site early"))
	status := tr.Status()
	assert.True(t, status.CheckedIn)
	assert.Equal(t, "hq", status.CheckedInLocationID)

	assert.Error(t, tr.ManualCheckIn("", ""), "double manual check-in")

	require.NoError(t, tr.ManualCheckOut(""))
	assert.False(t, tr.Status().CheckedIn)

	events, err := s.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.False(t, e.IsAuto)
	}
}

func TestManualCheckIn_OutsideAnyRegionNeedsLocation(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(awayLat, hqLng, 10, clock.Now())
	assert.Error(t, tr.ManualCheckIn("", ""))

	require.NoError(t, tr.ManualCheckIn("hq", "forced"))
	assert.True(t, tr.Status().CheckedIn)
}

func TestStop_CancelsTimersAndPersistsDisabled(t *testing.T) {
	clock := newFakeClock()
	tr, s := newTestTracker(t, clock)
	require.NoError(t, tr.Start(testLocations(), "https://api.example.com", "tok"))

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	require.Equal(t, time.Minute, tr.Status().EntryRemaining)

	require.NoError(t, tr.Stop())

	status := tr.Status()
	assert.False(t, status.Enabled)
	assert.Zero(t, status.EntryRemaining)

	persisted, err := s.LoadState()
	require.NoError(t, err)
	assert.False(t, persisted.Enabled)
	assert.Nil(t, persisted.EntryTimerStart)

	// Disabled tracker ignores position updates.
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	assert.Zero(t, tr.Status().EntryRemaining)
}

func TestUpdateLocations_HotSwap(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	require.Equal(t, time.Minute, tr.Status().EntryRemaining)

	// The region set moves elsewhere; the same position is now outside and
	// the pending entry grace is abandoned.
	require.NoError(t, tr.UpdateLocations([]models.WorkLocation{
		{ID: "branch", Name: "Branch", Latitude: 41.40, Longitude: 69.40, RadiusMeters: 100},
	}))
	tr.OnPosition(hqLat, hqLng, 10, clock.Now())

	status := tr.Status()
	assert.False(t, status.InsideRegion)
	assert.Zero(t, status.EntryRemaining)
}

func TestOutboundEvents_TimerLifecycle(t *testing.T) {
	clock := newFakeClock()
	tr, _ := newTestTracker(t, clock)
	startTracker(t, tr)

	tr.OnPosition(hqLat, hqLng, 10, clock.Now())
	clock.Advance(30 * time.Second)
	tr.OnPosition(awayLat, hqLng, 10, clock.Now())

	var types []string
	for {
		select {
		case ev := <-tr.Events():
			types = append(types, ev.Type)
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}

	assert.Contains(t, types, EventTimerStart)
	assert.Contains(t, types, EventTimerCancelled)
}
