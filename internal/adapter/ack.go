package adapter

import (
	"encoding/binary"
	"fmt"
)

// ackHeaderLen: marker + device code + command + return code + 2-byte length
const ackHeaderLen = 9

// Ack is a decoded acknowledgement frame.
type Ack struct {
	DeviceCode uint32
	Command    byte // wire byte: original command with the ack flag set
	ReturnCode byte
	Payload    []byte
}

// Acknowledges reports whether the ack answers command. The flag is or-ed
// into the command byte, so codes at or above 0x80 cannot be recovered from
// the ack alone.
func (a *Ack) Acknowledges(command byte) bool {
	return a.Command == command|AckFlag
}

// EncodeAck builds the success acknowledgement for command. data is optional
// and is sent after a 2-byte length.
func (a *TerminalAdapter) EncodeAck(deviceCode uint32, command byte, data []byte) []byte {
	packet := make([]byte, ackHeaderLen, ackHeaderLen+len(data)+ChecksumLen)
	packet[0] = StartMarker
	binary.BigEndian.PutUint32(packet[OffsetDeviceCode:OffsetDeviceCode+4], deviceCode)
	packet[5] = command | AckFlag
	packet[6] = ReturnSuccess
	binary.BigEndian.PutUint16(packet[7:9], uint16(len(data)))
	packet = append(packet, data...)
	return appendChecksum(packet)
}

// DecodeAck parses and checks an acknowledgement frame.
func DecodeAck(frame []byte) (*Ack, error) {
	if len(frame) < ackHeaderLen+ChecksumLen || frame[0] != StartMarker {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(frame))
	}
	if frame[5]&AckFlag == 0 {
		return nil, ErrNotAck
	}

	dataLen := int(binary.BigEndian.Uint16(frame[7:9]))
	total := ackHeaderLen + dataLen + ChecksumLen
	if len(frame) < total {
		return nil, fmt.Errorf("%w: %d bytes, declared %d", ErrMalformedFrame, len(frame), total)
	}
	want := binary.BigEndian.Uint16(frame[total-ChecksumLen : total])
	if got := Checksum(frame[:total-ChecksumLen]); got != want {
		return nil, fmt.Errorf("%w: got 0x%04X, frame carries 0x%04X", ErrChecksumMismatch, got, want)
	}

	return &Ack{
		DeviceCode: binary.BigEndian.Uint32(frame[OffsetDeviceCode : OffsetDeviceCode+4]),
		Command:    frame[5],
		ReturnCode: frame[6],
		Payload:    frame[ackHeaderLen : ackHeaderLen+dataLen],
	}, nil
}

// EncodeFrame builds a terminal-originated frame, the way a device would send
// it. Record-class commands get a length byte; payload is ignored otherwise.
func (a *TerminalAdapter) EncodeFrame(deviceCode uint32, command byte, payload []byte) ([]byte, error) {
	hdr, hasLength := a.headerLen(command)
	if !hasLength {
		payload = nil
	} else if len(payload) > 0xFF {
		return nil, fmt.Errorf("payload of %d bytes exceeds the 1-byte length field", len(payload))
	}

	packet := make([]byte, hdr, hdr+len(payload)+ChecksumLen)
	packet[0] = StartMarker
	binary.BigEndian.PutUint32(packet[OffsetDeviceCode:OffsetDeviceCode+4], deviceCode)
	packet[OffsetCommand] = command
	if hasLength {
		packet[OffsetLength] = byte(len(payload))
	}
	packet = append(packet, payload...)
	return appendChecksum(packet), nil
}

func appendChecksum(packet []byte) []byte {
	return binary.BigEndian.AppendUint16(packet, Checksum(packet))
}
