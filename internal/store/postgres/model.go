package postgres

import (
	"time"

	"timeclock/gateway/internal/store"
)

// Device is a registered terminal
type Device struct {
	ID            int64      `gorm:"primaryKey"`
	Serial        string     `gorm:"uniqueIndex;size:64;not null"`
	DeviceCode    uint32     `gorm:"index;not null"`
	Name          string     `gorm:"size:100"`
	Enabled       bool       `gorm:"not null"`
	LastHeartbeat *time.Time
	LastSync      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AttendanceEvent is one stored clock event
type AttendanceEvent struct {
	ID           int64          `gorm:"primaryKey"`
	DeviceID     int64          `gorm:"uniqueIndex:idx_attendance_dedup;not null"`
	Device       *Device        `gorm:"constraint:OnDelete:CASCADE"`
	DeviceUserID string         `gorm:"uniqueIndex:idx_attendance_dedup;size:32;not null"`
	EventTime    time.Time      `gorm:"uniqueIndex:idx_attendance_dedup;not null"`
	EventType    string         `gorm:"uniqueIndex:idx_attendance_dedup;size:20;not null"`
	VerifyMethod string         `gorm:"size:20"`
	WorkCode     *uint32
	Metadata     map[string]any `gorm:"serializer:json;type:jsonb"`
	ReceivedAt   time.Time      `gorm:"not null"`
}

func (d *Device) toRecord() *store.DeviceRecord {
	return &store.DeviceRecord{
		ID:            d.ID,
		Serial:        d.Serial,
		Code:          d.DeviceCode,
		Name:          d.Name,
		Enabled:       d.Enabled,
		LastHeartbeat: utc(d.LastHeartbeat),
		LastSync:      utc(d.LastSync),
	}
}

func fromAttendance(rec store.AttendanceRecord) *AttendanceEvent {
	received := rec.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	return &AttendanceEvent{
		DeviceID:     rec.DeviceID,
		DeviceUserID: rec.DeviceUserID,
		EventTime:    rec.EventTime.UTC(),
		EventType:    rec.EventType,
		VerifyMethod: rec.VerifyMethod,
		WorkCode:     rec.WorkCode,
		Metadata:     rec.Metadata,
		ReceivedAt:   received.UTC(),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
