package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"timeclock/gateway/internal/db"
	"timeclock/gateway/internal/store"
)

type DeviceStore struct {
	db     *sql.DB
	writer *db.Worker
}

func NewDeviceStore(conn *sql.DB, writer *db.Worker) *DeviceStore {
	return &DeviceStore{db: conn, writer: writer}
}

const deviceColumns = `id, serial, device_code, name, enabled, last_heartbeat_at_ms, last_sync_at_ms`

// FindDevice prefers an enabled device, then a device-code match over a
// serial match.
func (s *DeviceStore) FindDevice(ctx context.Context, code uint32, serial string) (*store.DeviceRecord, error) {
	serial = strings.TrimSpace(serial)

	row := s.db.QueryRowContext(ctx, `
SELECT `+deviceColumns+`
FROM devices
WHERE (device_code = ? AND device_code <> 0) OR (serial = ? AND serial <> '')
ORDER BY enabled DESC, CASE WHEN device_code = ? THEN 0 ELSE 1 END, id
LIMIT 1;
`, code, serial, code)

	rec, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindDevice query: %w", err)
	}
	return rec, nil
}

func (s *DeviceStore) UpsertDevice(ctx context.Context, rec store.DeviceRecord) (int64, error) {
	rec.Serial = strings.TrimSpace(rec.Serial)
	if rec.Serial == "" {
		return 0, fmt.Errorf("UpsertDevice: empty serial")
	}
	ms := time.Now().UTC().UnixMilli()

	var id int64
	err := s.writer.Do(ctx, "upsert_device", func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO devices(serial, device_code, name, enabled, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(serial) DO UPDATE SET
  device_code   = excluded.device_code,
  name          = excluded.name,
  enabled       = excluded.enabled,
  updated_at_ms = excluded.updated_at_ms;
`, rec.Serial, rec.Code, rec.Name, boolInt(rec.Enabled), ms, ms); err != nil {
			return fmt.Errorf("UpsertDevice: %w", err)
		}
		return tx.QueryRowContext(ctx, `SELECT id FROM devices WHERE serial = ?;`, rec.Serial).Scan(&id)
	})
	return id, err
}

func (s *DeviceStore) TouchHeartbeat(ctx context.Context, id int64, t time.Time) error {
	return s.touch(ctx, "last_heartbeat_at_ms", id, t)
}

func (s *DeviceStore) TouchSync(ctx context.Context, id int64, t time.Time) error {
	return s.touch(ctx, "last_sync_at_ms", id, t)
}

func (s *DeviceStore) touch(ctx context.Context, column string, id int64, t time.Time) error {
	if t.IsZero() {
		t = time.Now()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, "touch_"+column, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE devices SET `+column+` = ?, updated_at_ms = ? WHERE id = ?;`,
			ms, ms, id)
		if err != nil {
			return fmt.Errorf("touch %s: %w", column, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func scanDevice(row *sql.Row) (*store.DeviceRecord, error) {
	var (
		rec       store.DeviceRecord
		enabled   int
		heartbeat sql.NullInt64
		synced    sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.Serial, &rec.Code, &rec.Name, &enabled, &heartbeat, &synced); err != nil {
		return nil, err
	}
	rec.Enabled = enabled == 1
	rec.LastHeartbeat = fromMillis(heartbeat)
	rec.LastSync = fromMillis(synced)
	return &rec, nil
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
