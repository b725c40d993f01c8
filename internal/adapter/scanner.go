package adapter

import "bytes"

// Scan extracts the first complete frame from buffer.
//
// Bytes before the first start marker are noise and are dropped. When the
// frame at the head of the buffer is still incomplete, frame is nil and rest
// holds everything from the marker on. A buffer without any marker yields
// (nil, nil).
func (a *TerminalAdapter) Scan(buffer []byte) (frame []byte, rest []byte) {
	start := bytes.IndexByte(buffer, StartMarker)
	if start == -1 {
		return nil, nil
	}
	buffer = buffer[start:]

	if len(buffer) < MinFrameLen {
		return nil, buffer
	}

	hdr, hasLength := a.headerLen(buffer[OffsetCommand])
	payloadLen := 0
	if hasLength {
		if len(buffer) < hdr+ChecksumLen {
			return nil, buffer
		}
		payloadLen = int(buffer[OffsetLength])
	}

	total := hdr + payloadLen + ChecksumLen
	if len(buffer) < total {
		return nil, buffer
	}
	return buffer[:total], buffer[total:]
}

// ScanAll extracts every complete frame in buffer, in order, and returns the
// incomplete tail.
func (a *TerminalAdapter) ScanAll(buffer []byte) ([][]byte, []byte) {
	var frames [][]byte
	for len(buffer) > 0 {
		frame, rest := a.Scan(buffer)
		buffer = rest
		if frame == nil {
			break
		}
		frames = append(frames, frame)
	}
	return frames, buffer
}
