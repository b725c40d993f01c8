package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"timeclock/gateway/internal/store"
)

func TestDeviceToRecordNormalisesZone(t *testing.T) {
	local := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	d := Device{ID: 3, Serial: "SN", DeviceCode: 9, Enabled: true, LastHeartbeat: &local}

	rec := d.toRecord()
	if rec.Code != 9 || rec.Serial != "SN" || !rec.Enabled {
		t.Fatalf("record = %+v", rec)
	}
	if rec.LastHeartbeat.Location() != time.UTC || !rec.LastHeartbeat.Equal(local) {
		t.Fatalf("LastHeartbeat = %v", rec.LastHeartbeat)
	}
	if rec.LastSync != nil {
		t.Fatalf("LastSync = %v", rec.LastSync)
	}
}

func TestFromAttendanceStampsReceivedAt(t *testing.T) {
	ev := fromAttendance(store.AttendanceRecord{DeviceID: 1, DeviceUserID: "7", EventType: "clock_in"})
	if ev.ReceivedAt.IsZero() || ev.ReceivedAt.Location() != time.UTC {
		t.Fatalf("ReceivedAt = %v", ev.ReceivedAt)
	}
}

// openTestDB needs a disposable database in ATTENDANCE_TEST_DATABASE_URL.
func openTestDB(t *testing.T) (*DeviceStore, *AttendanceStore) {
	t.Helper()
	dsn := os.Getenv("ATTENDANCE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ATTENDANCE_TEST_DATABASE_URL not set")
	}
	db, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Exec("TRUNCATE attendance_events, devices RESTART IDENTITY CASCADE")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewDeviceStore(db), NewAttendanceStore(db)
}

func TestPostgresStores(t *testing.T) {
	devices, attendance := openTestDB(t)
	ctx := context.Background()

	id, err := devices.UpsertDevice(ctx, store.DeviceRecord{Serial: "SN-1", Code: 1001, Enabled: true})
	if err != nil {
		t.Fatalf("UpsertDevice: %v", err)
	}
	again, err := devices.UpsertDevice(ctx, store.DeviceRecord{Serial: "SN-1", Code: 1002, Enabled: false})
	if err != nil || again != id {
		t.Fatalf("second upsert = %d, %v; want %d", again, err, id)
	}

	got, err := devices.FindDevice(ctx, 1002, "")
	if err != nil || got.ID != id || got.Enabled {
		t.Fatalf("FindDevice = %+v, %v", got, err)
	}
	if _, err := devices.FindDevice(ctx, 1, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindDevice(missing) = %v", err)
	}

	if err := devices.TouchSync(ctx, id, time.Now()); err != nil {
		t.Fatalf("TouchSync: %v", err)
	}
	if err := devices.TouchHeartbeat(ctx, id+1000, time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("TouchHeartbeat(unknown) = %v", err)
	}

	rec := store.AttendanceRecord{
		DeviceID:     id,
		DeviceUserID: "42",
		EventType:    "clock_in",
		EventTime:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Metadata:     map[string]any{"verify_method": "card"},
	}
	if ok, err := attendance.RecordAttendance(ctx, rec); err != nil || !ok {
		t.Fatalf("first RecordAttendance = %v, %v", ok, err)
	}
	if ok, err := attendance.RecordAttendance(ctx, rec); err != nil || ok {
		t.Fatalf("duplicate RecordAttendance = %v, %v", ok, err)
	}
}
