package models

import (
	"time"
)

// Event types for attendance events
const (
	EventCheckIn  = "CHECK_IN"
	EventCheckOut = "CHECK_OUT"
)

// WorkLocation is a named circular geofence. The set is immutable once
// loaded and replaced wholesale on update.
type WorkLocation struct {
	ID           string  `json:"id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	RadiusMeters float64 `json:"radius" validate:"gt=0"`
}

// AttendanceEvent is one row of the append-only attendance log.
// Rows are never mutated except to flip Synced and set SyncedAt.
type AttendanceEvent struct {
	ID           string     `gorm:"primarykey" json:"id"`
	EventType    string     `gorm:"not null" json:"event_type"` // CHECK_IN or CHECK_OUT
	Timestamp    time.Time  `gorm:"index" json:"timestamp"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	LocationID   *string    `json:"location_id"`
	LocationName *string    `json:"location_name"`
	Notes        string     `json:"notes"`
	IsAuto       bool       `json:"is_auto"`
	Synced       bool       `gorm:"default:false;index" json:"synced"`
	SyncedAt     *time.Time `json:"synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PersistentState is the process-wide tracker snapshot. It is serialized as
// one value and written in a single transaction, so a crash can never leave
// half the fields updated.
//
// Invariant: CheckedIn implies CheckedInLocationID is non-empty.
type PersistentState struct {
	Enabled bool `json:"enabled"`

	IsInsideRegion  bool   `json:"is_inside_region"`
	CurrentRegionID string `json:"current_region_id,omitempty"`

	CheckedIn           bool       `json:"checked_in"`
	CheckedInLocationID string     `json:"checked_in_location_id,omitempty"`
	CheckInTime         *time.Time `json:"check_in_time,omitempty"`

	// Grace timers survive restarts through their start instants.
	EntryTimerStart      *time.Time `json:"entry_timer_start,omitempty"`
	EntryTimerLocationID string     `json:"entry_timer_location_id,omitempty"`
	ExitTimerStart       *time.Time `json:"exit_timer_start,omitempty"`

	LastLatitude  float64    `json:"last_latitude,omitempty"`
	LastLongitude float64    `json:"last_longitude,omitempty"`
	LastFixAt     *time.Time `json:"last_fix_at,omitempty"`

	WorkLocations []WorkLocation `json:"work_locations,omitempty"`

	AuthToken  string `json:"auth_token,omitempty"`
	APIBaseURL string `json:"api_base_url,omitempty"`

	// Manual override: auto check-in is suppressed until this instant
	// (local midnight after the manual check-out).
	OverrideUntil *time.Time `json:"override_until,omitempty"`
}

// HasFix reports whether a last known position is stored.
func (s *PersistentState) HasFix() bool {
	return s.LastFixAt != nil
}

// OverrideActive reports whether auto check-in is suppressed at now.
func (s *PersistentState) OverrideActive(now time.Time) bool {
	return s.OverrideUntil != nil && now.Before(*s.OverrideUntil)
}
