package adapter

import "errors"

var (
	ErrMalformedFrame   = errors.New("adapter: malformed frame")
	ErrTruncatedRecord  = errors.New("adapter: truncated record")
	ErrShortBatch       = errors.New("adapter: batch shorter than declared count")
	ErrChecksumMismatch = errors.New("adapter: checksum mismatch")
	ErrNotAck           = errors.New("adapter: frame is not an acknowledgement")
)
