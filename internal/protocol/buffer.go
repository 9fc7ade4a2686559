package protocol

import (
	"encoding/binary"
	"errors"
)

// MaxFrameSize bounds the JSON payload of a single frame.
const MaxFrameSize = 1 << 20 // 1 MiB

// Framing errors surfaced by FrameBuffer.Next. Neither closes the
// connection: the session reports them and keeps reading.
var (
	// ErrFrameTooLarge is returned after the buffer has been cleared because
	// a length prefix exceeded MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	// ErrMalformedFrame is returned after a complete frame failed to parse
	// as JSON; the bad frame has been drained.
	ErrMalformedFrame = errors.New("frame payload is not valid JSON")
)

// FrameBuffer reassembles frames from an arbitrarily fragmented byte stream.
// A frame is decoded atomically or not at all.
type FrameBuffer struct {
	buf []byte
}

// Append adds received bytes to the buffer.
func (b *FrameBuffer) Append(data []byte) {
	b.buf = append(b.buf, data...)
}

// HasCompleteFrame reports whether a full, size-conforming frame is buffered.
func (b *FrameBuffer) HasCompleteFrame() bool {
	if len(b.buf) < 4 {
		return false
	}
	n := binary.BigEndian.Uint32(b.buf[:4])
	if n > MaxFrameSize {
		return false
	}
	return len(b.buf) >= 4+int(n)
}

// Next extracts the next complete frame. It returns (nil-message, nil) when
// more bytes are needed. An oversized length prefix clears the whole buffer
// and returns ErrFrameTooLarge; a complete frame with malformed JSON is
// drained and returns ErrMalformedFrame.
func (b *FrameBuffer) Next() (*Message, error) {
	if len(b.buf) < 4 {
		return nil, nil
	}
	n := binary.BigEndian.Uint32(b.buf[:4])
	if n > MaxFrameSize {
		b.Clear()
		return nil, ErrFrameTooLarge
	}
	total := 4 + int(n)
	if len(b.buf) < total {
		return nil, nil
	}

	payload := b.buf[4:total]
	msg, err := Decode(payload)
	b.buf = b.buf[total:]
	if err != nil {
		return nil, ErrMalformedFrame
	}
	return &msg, nil
}

// Clear drops all buffered bytes.
func (b *FrameBuffer) Clear() {
	b.buf = nil
}

// Len returns the number of buffered, unparsed bytes.
func (b *FrameBuffer) Len() int {
	return len(b.buf)
}
