package tracker

import (
	"time"

	"github.com/muratovb/geowatch/internal/models"
	"github.com/muratovb/geowatch/internal/timer"
)

// Snapshot is a read-only view of the tracker for the status surface.
type Snapshot struct {
	Enabled         bool
	InsideRegion    bool
	CurrentRegionID string

	CheckedIn           bool
	CheckedInLocationID string
	CheckInTime         *time.Time

	EntryRemaining time.Duration // zero when the entry timer is not armed
	ExitRemaining  time.Duration

	OverrideUntil *time.Time

	LastLatitude  float64
	LastLongitude float64
	LastFixAt     *time.Time

	Locations []models.WorkLocation
}

// Status returns the current tracker view.
func (t *Tracker) Status() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		Enabled:             t.state.Enabled,
		InsideRegion:        t.state.IsInsideRegion,
		CurrentRegionID:     t.state.CurrentRegionID,
		CheckedIn:           t.state.CheckedIn,
		CheckedInLocationID: t.state.CheckedInLocationID,
		CheckInTime:         t.state.CheckInTime,
		EntryRemaining:      t.sched.Remaining(timer.Entry),
		ExitRemaining:       t.sched.Remaining(timer.Exit),
		OverrideUntil:       t.state.OverrideUntil,
		LastLatitude:        t.state.LastLatitude,
		LastLongitude:       t.state.LastLongitude,
		LastFixAt:           t.state.LastFixAt,
		Locations:           t.state.WorkLocations,
	}
}
