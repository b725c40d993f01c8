package protocol

import (
	"context"
	"time"
)

//go:generate mockgen -destination=../mocks/mock_protocol.go -package=mocks timeclock/gateway/internal/protocol DeviceDirectory,AttendanceSink,Presence

// PacketScanner handles packet boundary detection from TCP stream
type PacketScanner interface {
	// Scan extracts one complete frame from buffer.
	// frame is nil when the buffer holds no complete frame yet; rest is the
	// unconsumed tail that must be kept for the next read.
	Scan(buffer []byte) (frame []byte, rest []byte)
}

// ProtocolAdapter translates between terminal frames and gateway types
type ProtocolAdapter interface {
	PacketScanner

	// Decode parses a complete frame into a packet
	Decode(frame []byte) (*Packet, error)

	// DecodeRecords decodes the attendance records a record-class packet carries
	DecodeRecords(pkt *Packet) ([]AttendanceRecord, error)

	// VerifyChecksum checks the trailing CRC of a complete frame
	VerifyChecksum(frame []byte) bool

	// EncodeAck builds the acknowledgement for a received command
	EncodeAck(deviceCode uint32, command byte, data []byte) []byte

	// Protocol returns protocol identifier
	Protocol() string
}

// DeviceDirectory resolves terminals and keeps their liveness bookkeeping.
type DeviceDirectory interface {
	Lookup(ctx context.Context, deviceCode uint32, serial string) (*Device, error)
	MarkHeartbeat(ctx context.Context, device *Device) error
	MarkSynced(ctx context.Context, device *Device) error
}

// AttendanceSink records attendance events in the attendance domain.
type AttendanceSink interface {
	Ingest(ctx context.Context, device *Device, eventType EventType, deviceUserID string, eventTime time.Time, metadata map[string]interface{}) (IngestResult, error)
}

// Presence advertises which gateway session currently holds a device.
type Presence interface {
	Register(ctx context.Context, deviceCode uint32, sessionID, remote string) error
	// Refresh extends the entry, recreating it when it has expired or was
	// never registered.
	Refresh(ctx context.Context, deviceCode uint32, sessionID, remote string) error
	// Unregister removes the entry only while it still names sessionID.
	Unregister(ctx context.Context, deviceCode uint32, sessionID string) error
}
