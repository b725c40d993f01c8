package adapter

import (
	"encoding/binary"
	"fmt"
	"time"

	"timeclock/gateway/internal/protocol"
)

const (
	// Terminal protocol constants
	StartMarker byte = 0xA5
	AckFlag     byte = 0x80

	OffsetDeviceCode = 1
	OffsetCommand    = 5
	OffsetLength     = 8

	// marker + device code + command + reserved
	HeaderLen   = 8
	ChecksumLen = 2
	MinFrameLen = HeaderLen + ChecksumLen

	// Command codes
	CmdConnectAlias  byte = 0x00
	CmdConnect       byte = 0x01
	CmdRecordUpload  byte = 0x40
	CmdHeartbeat     byte = 0x7F
	CmdRealtimeEvent byte = 0xDF

	// Alternate record codes seen on some firmware, opt-in through CommandSet
	CmdAltRecordUpload  byte = 0x42
	CmdAltRealtimeEvent byte = 0x7E

	ReturnSuccess byte = 0x00
)

// CommandSet lists which codes carry attendance records. Connect and
// heartbeat codes are fixed by the protocol.
type CommandSet struct {
	Realtime []byte
	Upload   []byte
}

// DefaultCommandSet returns the record codes every supported firmware uses.
func DefaultCommandSet() CommandSet {
	return CommandSet{
		Realtime: []byte{CmdRealtimeEvent},
		Upload:   []byte{CmdRecordUpload},
	}
}

// Validate rejects record codes that collide with connect/heartbeat or with
// each other.
func (s CommandSet) Validate() error {
	seen := make(map[byte]string)
	for _, c := range []byte{CmdConnectAlias, CmdConnect, CmdHeartbeat} {
		seen[c] = "control"
	}
	check := func(codes []byte, class string) error {
		for _, c := range codes {
			if prev, ok := seen[c]; ok {
				return fmt.Errorf("command 0x%02X listed as %s already used as %s", c, class, prev)
			}
			seen[c] = class
		}
		return nil
	}
	if err := check(s.Realtime, "realtime"); err != nil {
		return err
	}
	return check(s.Upload, "upload")
}

// TerminalAdapter implements ProtocolAdapter for the biometric terminal protocol
type TerminalAdapter struct {
	kinds    [256]protocol.CommandKind
	location *time.Location
	epoch    time.Time
}

// NewTerminalAdapter creates a new adapter. Record timestamps are read in loc.
func NewTerminalAdapter(set CommandSet, loc *time.Location) *TerminalAdapter {
	if loc == nil {
		loc = time.UTC
	}
	a := &TerminalAdapter{
		location: loc,
		epoch:    time.Date(2000, time.January, 2, 0, 0, 0, 0, loc),
	}
	a.kinds[CmdConnect] = protocol.KindConnect
	a.kinds[CmdConnectAlias] = protocol.KindConnect
	a.kinds[CmdHeartbeat] = protocol.KindHeartbeat
	for _, c := range set.Realtime {
		a.kinds[c] = protocol.KindRealtimeRecord
	}
	for _, c := range set.Upload {
		a.kinds[c] = protocol.KindRecordUpload
	}
	return a
}

// Protocol returns protocol identifier
func (a *TerminalAdapter) Protocol() string {
	return "TERMINAL_A5"
}

// Kind classifies a command code.
func (a *TerminalAdapter) Kind(command byte) protocol.CommandKind {
	return a.kinds[command]
}

// Location returns the zone record timestamps are interpreted in.
func (a *TerminalAdapter) Location() *time.Location {
	return a.location
}

// headerLen reports the header size for a command and whether it carries a
// length byte.
func (a *TerminalAdapter) headerLen(command byte) (int, bool) {
	if a.kinds[command].CarriesRecords() {
		return HeaderLen + 1, true
	}
	return HeaderLen, false
}

// Decode translates a complete frame into a packet
func (a *TerminalAdapter) Decode(frame []byte) (*protocol.Packet, error) {
	if len(frame) < MinFrameLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(frame), MinFrameLen)
	}
	if frame[0] != StartMarker {
		return nil, fmt.Errorf("%w: start byte 0x%02X", ErrMalformedFrame, frame[0])
	}

	command := frame[OffsetCommand]
	hdr, hasLength := a.headerLen(command)
	payloadLen := 0
	if hasLength {
		if len(frame) < hdr+ChecksumLen {
			return nil, fmt.Errorf("%w: missing length byte", ErrMalformedFrame)
		}
		payloadLen = int(frame[OffsetLength])
	}

	total := hdr + payloadLen + ChecksumLen
	if len(frame) < total {
		return nil, fmt.Errorf("%w: %d bytes, declared %d", ErrMalformedFrame, len(frame), total)
	}

	return &protocol.Packet{
		DeviceCode: binary.BigEndian.Uint32(frame[OffsetDeviceCode : OffsetDeviceCode+4]),
		Command:    command,
		Kind:       a.kinds[command],
		Payload:    frame[hdr : hdr+payloadLen],
		Checksum:   binary.BigEndian.Uint16(frame[total-ChecksumLen : total]),
	}, nil
}

// VerifyChecksum checks the CRC trailing a complete frame
func (a *TerminalAdapter) VerifyChecksum(frame []byte) bool {
	if len(frame) < MinFrameLen {
		return false
	}
	body := frame[:len(frame)-ChecksumLen]
	return Checksum(body) == binary.BigEndian.Uint16(frame[len(frame)-ChecksumLen:])
}

// DecodeRecords decodes the records carried by a record-class packet.
// Non-record packets yield no records.
func (a *TerminalAdapter) DecodeRecords(pkt *protocol.Packet) ([]protocol.AttendanceRecord, error) {
	switch pkt.Kind {
	case protocol.KindRealtimeRecord:
		rec, err := a.DecodeRecord(pkt.Payload)
		if err != nil {
			return nil, err
		}
		return []protocol.AttendanceRecord{rec}, nil
	case protocol.KindRecordUpload:
		return a.DecodeBatch(pkt.Payload)
	default:
		return nil, nil
	}
}
