package store

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/muratovb/geowatch/internal/models"
)

// AppendEvent durably inserts an attendance event. An id collision replaces
// the existing row, so duplicate timer fires and restart re-fires collapse
// to at most one record per logical event. A write failure is returned to
// the caller rather than swallowed; the event must not be silently dropped.
func (s *Store) AppendEvent(event *models.AttendanceEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(event).Error
	if err != nil {
		return fmt.Errorf("failed to append event %s: %w", event.ID, err)
	}
	return nil
}

// UnsyncedEvents returns all events not yet confirmed by the server, oldest
// first. Read-only.
func (s *Store) UnsyncedEvents() ([]models.AttendanceEvent, error) {
	var events []models.AttendanceEvent
	err := s.db.Where("synced = ?", false).Order("timestamp ASC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// UnsyncedCount returns how many events are waiting for sync.
func (s *Store) UnsyncedCount() (int64, error) {
	var count int64
	err := s.db.Model(&models.AttendanceEvent{}).Where("synced = ?", false).Count(&count).Error
	return count, err
}

// MarkSynced flags an event as delivered. Calling it again for an
// already-synced event is a no-op and keeps the original sync time.
func (s *Store) MarkSynced(id string, syncedAt time.Time) error {
	return s.db.Model(&models.AttendanceEvent{}).
		Where("id = ? AND synced = ?", id, false).
		Updates(map[string]interface{}{"synced": true, "synced_at": syncedAt}).Error
}

// EventsInRange returns events with timestamps inside [start, end], oldest first.
func (s *Store) EventsInRange(start, end time.Time) ([]models.AttendanceEvent, error) {
	var events []models.AttendanceEvent
	err := s.db.Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// RecentEvents returns the latest events, newest first.
func (s *Store) RecentEvents(limit int) ([]models.AttendanceEvent, error) {
	var events []models.AttendanceEvent
	err := s.db.Order("timestamp DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteSyncedBefore removes synced events older than cutoff. Unsynced
// events are never deleted regardless of age.
func (s *Store) DeleteSyncedBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("synced = ? AND timestamp < ?", true, cutoff).
		Delete(&models.AttendanceEvent{})
	return res.RowsAffected, res.Error
}
