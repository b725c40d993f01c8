package protocol

import (
	"errors"
	"time"
)

// ErrDeviceNotFound is returned by a DeviceDirectory when neither the embedded
// device code nor the serial resolves to an enabled device.
var ErrDeviceNotFound = errors.New("device not found")

// CommandKind is the closed set of behaviours a command code can select.
type CommandKind int

const (
	KindUnknown CommandKind = iota
	KindConnect
	KindHeartbeat
	KindRealtimeRecord
	KindRecordUpload
)

func (k CommandKind) String() string {
	switch k {
	case KindConnect:
		return "CONNECT"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindRealtimeRecord:
		return "REALTIME_RECORD"
	case KindRecordUpload:
		return "RECORD_UPLOAD"
	default:
		return "UNKNOWN"
	}
}

// CarriesRecords reports whether frames of this kind have a length byte and
// a record payload.
func (k CommandKind) CarriesRecords() bool {
	return k == KindRealtimeRecord || k == KindRecordUpload
}

// Packet is one parsed frame.
type Packet struct {
	DeviceCode uint32
	Command    byte
	Kind       CommandKind
	Payload    []byte
	Checksum   uint16
}

// EventType is the attendance direction derived from the event-type byte.
type EventType string

const (
	EventClockIn  EventType = "clock_in"
	EventClockOut EventType = "clock_out"
)

// VerifyMethod is the modality the terminal used to authenticate the user.
type VerifyMethod string

const (
	VerifyPassword            VerifyMethod = "password"
	VerifyFingerprint         VerifyMethod = "fingerprint"
	VerifyCard                VerifyMethod = "card"
	VerifyPasswordFingerprint VerifyMethod = "password_fingerprint"
	VerifyPasswordCard        VerifyMethod = "password_card"
	VerifyFingerprintCard     VerifyMethod = "fingerprint_card"
	VerifyAll                 VerifyMethod = "all"
	VerifyFace                VerifyMethod = "face"
	VerifyUnknown             VerifyMethod = "unknown"
)

// AttendanceRecord is a single decoded clock event. It only lives for the
// duration of one payload.
type AttendanceRecord struct {
	UserID     uint64
	EventTime  time.Time
	VerifyCode byte
	Method     VerifyMethod
	TypeByte   byte
	Type       EventType
	Realtime   bool
	WorkCode   *uint32
}

// Device is the directory's view of a physical terminal.
type Device struct {
	ID     int64  `json:"id"`
	Serial string `json:"serial"`
	Code   uint32 `json:"code"`
	Name   string `json:"name"`
}

// IngestResult is what the attendance domain reports back for one event.
type IngestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AttendanceEvent is the message fanned out to subscribers once an event has
// been recorded.
type AttendanceEvent struct {
	DeviceID     int64                  `json:"device_id"`
	DeviceSerial string                 `json:"device_serial"`
	DeviceCode   uint32                 `json:"device_code"`
	DeviceUserID string                 `json:"device_user_id"`
	Type         EventType              `json:"type"`
	EventTime    time.Time              `json:"event_time"`
	ReceivedAt   time.Time              `json:"received_at"`
	Extras       map[string]interface{} `json:"extras"`
}
