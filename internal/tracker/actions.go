package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muratovb/geowatch/internal/api"
	"github.com/muratovb/geowatch/internal/config"
	"github.com/muratovb/geowatch/internal/models"
)

// performCheckInLocked commits a check-in transition: append the event,
// flip the snapshot, then hand delivery to a background goroutine. The
// event is durable before any network attempt, so a kill mid-call loses
// nothing; a storage failure aborts the transition and is returned for the
// safety net to retry. Caller holds t.mu.
func (t *Tracker) performCheckInLocked(locationID, notes string, isAuto bool) error {
	now := t.clock.Now()

	if isAuto && t.state.OverrideActive(now) {
		t.log.Info("auto check-in suppressed by manual override",
			zap.Timep("until", t.state.OverrideUntil))
		t.cancelEntryLocked()
		return nil
	}
	if t.state.CheckedIn {
		t.cancelEntryLocked()
		return nil
	}
	if locationID == "" {
		return fmt.Errorf("no location for check-in")
	}
	if !t.state.HasFix() {
		return fmt.Errorf("no position available for check-in")
	}

	event := models.AttendanceEvent{
		ID:         t.eventID(models.EventCheckIn, t.state.EntryTimerStart, isAuto),
		EventType:  models.EventCheckIn,
		Timestamp:  now,
		Latitude:   t.state.LastLatitude,
		Longitude:  t.state.LastLongitude,
		LocationID: &locationID,
		Notes:      notes,
		IsAuto:     isAuto,
	}
	if name := t.locationName(locationID); name != "" {
		event.LocationName = &name
	}

	if err := t.store.AppendEvent(&event); err != nil {
		return err
	}

	t.state.CheckedIn = true
	t.state.CheckedInLocationID = locationID
	t.state.CheckInTime = &now
	t.cancelEntryLocked()
	t.saveLocked()

	t.log.Info("checked in",
		zap.String("location", locationID), zap.Bool("auto", isAuto))
	t.publish(Event{Type: EventCheckIn, LocationID: locationID, Timestamp: now})

	t.deliverAsync(event)
	return nil
}

// performCheckOutLocked commits a check-out transition. Caller holds t.mu.
func (t *Tracker) performCheckOutLocked(notes string, isAuto bool) error {
	now := t.clock.Now()

	if !t.state.CheckedIn {
		t.cancelExitLocked()
		return nil
	}
	if !t.state.HasFix() {
		return fmt.Errorf("no position available for check-out")
	}

	event := models.AttendanceEvent{
		ID:        t.eventID(models.EventCheckOut, t.state.ExitTimerStart, isAuto),
		EventType: models.EventCheckOut,
		Timestamp: now,
		Latitude:  t.state.LastLatitude,
		Longitude: t.state.LastLongitude,
		Notes:     notes,
		IsAuto:    isAuto,
	}

	if err := t.store.AppendEvent(&event); err != nil {
		return err
	}

	t.state.CheckedIn = false
	t.state.CheckedInLocationID = ""
	t.state.CheckInTime = nil
	t.cancelExitLocked()
	t.saveLocked()

	t.log.Info("checked out", zap.Bool("auto", isAuto))
	t.publish(Event{Type: EventCheckOut, Timestamp: now})

	t.deliverAsync(event)
	return nil
}

// eventID builds the log id. Auto events reuse the grace timer's persisted
// start instant, so a duplicate fire or a restart re-fire produces the same
// id and collapses to one row. Manual events get a random id.
func (t *Tracker) eventID(eventType string, timerStart *time.Time, isAuto bool) string {
	if !isAuto {
		return fmt.Sprintf("%s_%s", eventType, uuid.NewString())
	}
	at := t.clock.Now()
	if timerStart != nil {
		at = *timerStart
	}
	return fmt.Sprintf("%s_%d", eventType, at.UnixMilli())
}

func (t *Tracker) locationName(id string) string {
	for _, loc := range t.state.WorkLocations {
		if loc.ID == id {
			return loc.Name
		}
	}
	return ""
}

// deliverAsync attempts direct delivery off the owner goroutine. On failure
// the event simply stays unsynced and the sync engine is kicked.
func (t *Tracker) deliverAsync(event models.AttendanceEvent) {
	baseURL, token := config.Credentials(t.state, t.cfg)
	retries, delay := t.cfg.DirectRetries, t.cfg.DirectRetryDelay

	go func() {
		client := api.NewClient(baseURL, token)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		err := api.Retry(ctx, retries, delay, func() error {
			return client.SendEvent(ctx, &event)
		})
		if err != nil {
			t.log.Warn("direct delivery failed, deferring to sync",
				zap.String("id", event.ID), zap.Error(err))
			if t.kicker != nil {
				t.kicker.Kick()
			}
			return
		}

		if err := t.store.MarkSynced(event.ID, t.clock.Now()); err != nil {
			t.log.Error("failed to mark event synced",
				zap.String("id", event.ID), zap.Error(err))
		}
	}()
}

// ManualCheckIn records a user-initiated check-in at the last known
// position. locationID may be empty when the tracker already knows the
// current region.
func (t *Tracker) ManualCheckIn(locationID, notes string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.CheckedIn {
		return fmt.Errorf("already checked in at %s", t.state.CheckedInLocationID)
	}
	if locationID == "" {
		locationID = t.state.CurrentRegionID
	}
	if notes == "" {
		notes = "Manual check-in"
	}
	return t.performCheckInLocked(locationID, notes, false)
}

// ManualCheckOut records a user-initiated check-out without suppressing
// future auto check-ins.
func (t *Tracker) ManualCheckOut(notes string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.CheckedIn {
		return fmt.Errorf("not checked in")
	}
	if notes == "" {
		notes = "Manual check-out"
	}
	return t.performCheckOutLocked(notes, false)
}

// ManualOverrideOff ends attendance for the day: immediate check-out (if
// checked in) and auto check-in suppressed until the next local midnight.
func (t *Tracker) ManualOverrideOff() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.CheckedIn {
		if err := t.performCheckOutLocked("Manual check-out", false); err != nil {
			return err
		}
	}

	until := nextMidnight(t.clock.Now())
	t.state.OverrideUntil = &until
	t.cancelEntryLocked()

	t.log.Info("manual override: auto check-in disabled",
		zap.Time("until", until))
	return t.store.SaveState(t.state)
}

// nextMidnight returns the first midnight after now, in now's location.
func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
