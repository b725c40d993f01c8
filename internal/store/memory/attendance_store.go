package memory

import (
	"context"
	"sync"
	"time"

	"timeclock/gateway/internal/store"
)

type attendanceKey struct {
	deviceID  int64
	userID    string
	eventTime int64
	eventType string
}

// AttendanceStore is an in-memory, deduplicating attendance log.
type AttendanceStore struct {
	mu      sync.Mutex
	seen    map[attendanceKey]struct{}
	records []store.AttendanceRecord
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{seen: make(map[attendanceKey]struct{})}
}

func (s *AttendanceStore) RecordAttendance(_ context.Context, rec store.AttendanceRecord) (bool, error) {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	key := attendanceKey{
		deviceID:  rec.DeviceID,
		userID:    rec.DeviceUserID,
		eventTime: rec.EventTime.Unix(),
		eventType: rec.EventType,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[key]; dup {
		return false, nil
	}
	s.seen[key] = struct{}{}
	s.records = append(s.records, rec)
	return true, nil
}

// Records returns a copy of everything recorded. Test-only helper.
func (s *AttendanceStore) Records() []store.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AttendanceRecord, len(s.records))
	copy(out, s.records)
	return out
}
