package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"timeclock/gateway/internal/db"
	"timeclock/gateway/internal/store"
)

type AttendanceStore struct {
	db     *sql.DB
	writer *db.Worker
}

func NewAttendanceStore(conn *sql.DB, writer *db.Worker) *AttendanceStore {
	return &AttendanceStore{db: conn, writer: writer}
}

func (s *AttendanceStore) RecordAttendance(ctx context.Context, rec store.AttendanceRecord) (bool, error) {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}

	var workCode any
	if rec.WorkCode != nil {
		workCode = int64(*rec.WorkCode)
	}

	var metadata any
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return false, fmt.Errorf("RecordAttendance metadata: %w", err)
		}
		metadata = string(b)
	}

	var inserted bool
	err := s.writer.Do(ctx, "record_attendance", func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO attendance_events(
  device_id, device_user_id, event_type, event_time_ms,
  verify_method, work_code, metadata, received_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.DeviceID, rec.DeviceUserID, rec.EventType, rec.EventTime.UTC().UnixMilli(),
			rec.VerifyMethod, workCode, metadata, rec.ReceivedAt.UTC().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("RecordAttendance insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("RecordAttendance rows: %w", err)
		}
		inserted = n == 1
		return nil
	})
	return inserted, err
}
