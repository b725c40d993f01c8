package adapter

import (
	"encoding/binary"
	"fmt"
	"time"

	"timeclock/gateway/internal/protocol"
)

const (
	// RecordLen is the size of one packed attendance record
	RecordLen = 14

	realtimeFlag  byte = 0x80
	eventTypeMask byte = 0x0F
)

var verifyMethods = map[byte]protocol.VerifyMethod{
	0:  protocol.VerifyPassword,
	1:  protocol.VerifyFingerprint,
	2:  protocol.VerifyCard,
	3:  protocol.VerifyPasswordFingerprint,
	4:  protocol.VerifyPasswordCard,
	5:  protocol.VerifyFingerprintCard,
	6:  protocol.VerifyAll,
	15: protocol.VerifyFace,
	16: protocol.VerifyFace,
	17: protocol.VerifyFace,
	18: protocol.VerifyFace,
}

// VerifyMethodFor maps a terminal verification code to its method.
func VerifyMethodFor(code byte) protocol.VerifyMethod {
	if m, ok := verifyMethods[code]; ok {
		return m
	}
	return protocol.VerifyUnknown
}

// EventTypeFor derives clock direction from the low nibble of the type byte.
func EventTypeFor(typeByte byte) protocol.EventType {
	if typeByte&eventTypeMask == 0 {
		return protocol.EventClockIn
	}
	return protocol.EventClockOut
}

// DecodeRecord decodes one packed record.
//
// Layout: user id (5) | seconds since epoch (4) | verify code (1) |
// type byte (1) | work code (3).
func (a *TerminalAdapter) DecodeRecord(data []byte) (protocol.AttendanceRecord, error) {
	if len(data) < RecordLen {
		return protocol.AttendanceRecord{}, fmt.Errorf("%w: %d bytes, need %d", ErrTruncatedRecord, len(data), RecordLen)
	}

	offset := binary.BigEndian.Uint32(data[5:9])
	rec := protocol.AttendanceRecord{
		UserID:     uint40(data[0:5]),
		EventTime:  a.epoch.Add(time.Duration(offset) * time.Second),
		VerifyCode: data[9],
		Method:     VerifyMethodFor(data[9]),
		TypeByte:   data[10],
		Type:       EventTypeFor(data[10]),
		Realtime:   data[10]&realtimeFlag != 0,
	}

	if wc := uint24(data[11:14]); wc != 0 {
		rec.WorkCode = &wc
	}
	return rec, nil
}

// DecodeBatch decodes an upload payload: a record count followed by that many
// packed records. When the payload holds fewer records than declared, the
// complete ones are returned together with ErrShortBatch.
func (a *TerminalAdapter) DecodeBatch(payload []byte) ([]protocol.AttendanceRecord, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("%w: missing record count", ErrTruncatedRecord)
	}

	declared := int(payload[0])
	body := payload[1:]
	records := make([]protocol.AttendanceRecord, 0, declared)
	for i := 0; i < declared; i++ {
		if len(body) < RecordLen {
			return records, fmt.Errorf("%w: declared %d, decoded %d", ErrShortBatch, declared, len(records))
		}
		rec, err := a.DecodeRecord(body[:RecordLen])
		if err != nil {
			return records, err
		}
		records = append(records, rec)
		body = body[RecordLen:]
	}
	return records, nil
}

// EncodeRecord packs a record into its 14-byte wire form. Timestamps before
// the epoch are clamped to it.
func (a *TerminalAdapter) EncodeRecord(rec protocol.AttendanceRecord) []byte {
	buf := make([]byte, RecordLen)
	putUint40(buf[0:5], rec.UserID)

	var secs uint32
	if d := rec.EventTime.Sub(a.epoch); d > 0 {
		secs = uint32(d / time.Second)
	}
	binary.BigEndian.PutUint32(buf[5:9], secs)
	buf[9] = rec.VerifyCode
	buf[10] = rec.TypeByte
	if rec.WorkCode != nil {
		putUint24(buf[11:14], *rec.WorkCode)
	}
	return buf
}

// Helper functions

func uint40(b []byte) uint64 {
	return uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
}

func putUint40(b []byte, v uint64) {
	b[0] = byte(v >> 32)
	b[1] = byte(v >> 24)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 8)
	b[4] = byte(v)
}

func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
