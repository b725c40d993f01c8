package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no device matches a lookup.
var ErrNotFound = errors.New("store: not found")

// DeviceRecord is a registered terminal.
type DeviceRecord struct {
	ID            int64
	Serial        string
	Code          uint32
	Name          string
	Enabled       bool
	LastHeartbeat *time.Time
	LastSync      *time.Time
}

// DeviceStore persists terminals and their liveness stamps.
type DeviceStore interface {
	// FindDevice matches by device code or serial. An enabled device wins
	// over a disabled one; among equals a code match wins over a serial
	// match. A disabled device is returned only when nothing enabled
	// matches.
	FindDevice(ctx context.Context, code uint32, serial string) (*DeviceRecord, error)
	// UpsertDevice inserts or updates the device with rec.Serial and returns
	// its id. Liveness stamps in rec are ignored.
	UpsertDevice(ctx context.Context, rec DeviceRecord) (int64, error)
	TouchHeartbeat(ctx context.Context, id int64, t time.Time) error
	TouchSync(ctx context.Context, id int64, t time.Time) error
}

// AttendanceRecord is one clock event as stored.
type AttendanceRecord struct {
	DeviceID     int64
	DeviceUserID string
	EventType    string
	EventTime    time.Time
	VerifyMethod string
	WorkCode     *uint32
	Metadata     map[string]any
	ReceivedAt   time.Time
}

// AttendanceStore persists clock events. Events are unique on
// (device, user, event time, event type).
type AttendanceStore interface {
	// RecordAttendance reports inserted=false when the event already exists.
	RecordAttendance(ctx context.Context, rec AttendanceRecord) (inserted bool, err error)
}
