package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timeclock/gateway/internal/store"
)

// AttendanceStore keeps clock events in PostgreSQL
type AttendanceStore struct {
	db *gorm.DB
}

// NewAttendanceStore creates an attendance store over db
func NewAttendanceStore(db *gorm.DB) *AttendanceStore {
	return &AttendanceStore{db: db}
}

// RecordAttendance inserts rec unless an identical event exists.
func (s *AttendanceStore) RecordAttendance(ctx context.Context, rec store.AttendanceRecord) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fromAttendance(rec))
	if res.Error != nil {
		return false, fmt.Errorf("record attendance: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
