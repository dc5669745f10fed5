package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/muratovb/geowatch/internal/models"
)

// stateRecord is the single row carrying the serialized tracker snapshot.
// Keeping the whole snapshot in one row means one write transaction per
// save: a crash leaves either the old snapshot or the new one, never a mix
// of fields.
type stateRecord struct {
	ID        uint   `gorm:"primarykey"`
	Payload   []byte `gorm:"not null"`
	UpdatedAt time.Time
}

const stateRowID = 1

// SaveState atomically persists the tracker snapshot.
func (s *Store) SaveState(state *models.PersistentState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	rec := stateRecord{ID: stateRowID, Payload: payload}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// LoadState returns the persisted snapshot, or a zero-value snapshot when
// none has been saved yet. Only a missing row counts as first run; any
// other read failure is returned, a zero snapshot here would let the next
// SaveState overwrite the real one.
func (s *Store) LoadState() (*models.PersistentState, error) {
	var rec stateRecord
	err := s.db.First(&rec, stateRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First run: nothing persisted yet.
		return &models.PersistentState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var state models.PersistentState
	if err := json.Unmarshal(rec.Payload, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}
