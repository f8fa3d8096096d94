package capture

import (
	"bytes"
	"sync"
)

// JPEG frame delimiters inside a concatenated MJPEG byte stream.
var (
	soiMarker = []byte{0xFF, 0xD8}
	eoiMarker = []byte{0xFF, 0xD9}
)

// defaultMaxFrameBuffer bounds the accumulation buffer. A stream that
// produces this much data without a complete frame is assumed corrupt
// and the buffer is discarded.
const defaultMaxFrameBuffer = 8 << 20 // 8 MiB

// FrameParser extracts discrete JPEG frames from an unbounded byte
// stream. It implements io.Writer so a subprocess's stdout can be
// pointed straight at it; each Write may emit zero or more frames to
// the callback.
type FrameParser struct {
	mu      sync.Mutex
	buf     []byte
	maxSize int
	onFrame func(frame []byte)
}

// NewFrameParser creates a parser delivering complete frames to
// onFrame. The callback receives a copy it may retain.
func NewFrameParser(onFrame func(frame []byte)) *FrameParser {
	return &FrameParser{
		maxSize: defaultMaxFrameBuffer,
		onFrame: onFrame,
	}
}

// Write consumes a chunk of the stream. It never returns an error;
// malformed input is dropped rather than propagated, since a live
// preview can always resynchronise on the next frame boundary.
func (p *FrameParser) Write(chunk []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, chunk...)

	for {
		start := bytes.Index(p.buf, soiMarker)
		if start < 0 {
			// No frame start anywhere; keep only the last byte in
			// case a marker straddles the chunk boundary.
			if len(p.buf) > 1 {
				p.buf = p.buf[len(p.buf)-1:]
			}
			break
		}
		if start > 0 {
			p.buf = p.buf[start:]
		}

		end := bytes.Index(p.buf[len(soiMarker):], eoiMarker)
		if end < 0 {
			break
		}
		frameLen := len(soiMarker) + end + len(eoiMarker)

		frame := make([]byte, frameLen)
		copy(frame, p.buf[:frameLen])
		p.buf = p.buf[frameLen:]

		if p.onFrame != nil {
			p.onFrame(frame)
		}
	}

	if len(p.buf) > p.maxSize {
		p.buf = nil
	}

	return len(chunk), nil
}

// Reset discards any partially accumulated frame.
func (p *FrameParser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = nil
}
