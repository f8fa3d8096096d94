package capture

import (
	"bytes"
	"testing"
)

func jpegFrame(payload []byte) []byte {
	frame := append([]byte{}, soiMarker...)
	frame = append(frame, payload...)
	return append(frame, eoiMarker...)
}

func TestFrameParser_SingleFrame(t *testing.T) {
	var frames [][]byte
	p := NewFrameParser(func(f []byte) { frames = append(frames, f) })

	frame := jpegFrame([]byte{0x01, 0x02, 0x03})
	if _, err := p.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], frame) {
		t.Errorf("frame = %x, want %x", frames[0], frame)
	}
}

func TestFrameParser_FrameSplitAcrossChunks(t *testing.T) {
	var frames [][]byte
	p := NewFrameParser(func(f []byte) { frames = append(frames, f) })

	frame := jpegFrame([]byte{0x10, 0x20, 0x30, 0x40, 0x50})
	for i := 0; i < len(frame); i++ {
		p.Write(frame[i : i+1]) //nolint:errcheck // Write never fails
	}

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame from byte-at-a-time writes, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], frame) {
		t.Errorf("frame = %x, want %x", frames[0], frame)
	}
}

func TestFrameParser_MultipleFramesPerChunk(t *testing.T) {
	var frames [][]byte
	p := NewFrameParser(func(f []byte) { frames = append(frames, f) })

	chunk := append(jpegFrame([]byte{0x01}), jpegFrame([]byte{0x02})...)
	chunk = append(chunk, jpegFrame([]byte{0x03})...)

	p.Write(chunk) //nolint:errcheck // Write never fails

	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[1][2] != 0x02 {
		t.Errorf("second frame payload = %x, want 0x02", frames[1][2])
	}
}

func TestFrameParser_GarbageBeforeFrame(t *testing.T) {
	var frames [][]byte
	p := NewFrameParser(func(f []byte) { frames = append(frames, f) })

	chunk := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, jpegFrame([]byte{0x42})...)
	p.Write(chunk) //nolint:errcheck // Write never fails

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after garbage prefix, got %d", len(frames))
	}
	if !bytes.HasPrefix(frames[0], soiMarker) {
		t.Error("frame does not start with SOI marker")
	}
}

func TestFrameParser_NoFrameNoEmit(t *testing.T) {
	called := false
	p := NewFrameParser(func([]byte) { called = true })

	p.Write([]byte{0xFF, 0xD8, 0x00, 0x01, 0x02}) //nolint:errcheck // incomplete frame

	if called {
		t.Error("callback fired without a complete frame")
	}
}

func TestFrameParser_OversizedBufferDiscarded(t *testing.T) {
	var frames [][]byte
	p := NewFrameParser(func(f []byte) { frames = append(frames, f) })
	p.maxSize = 64

	// Frame start with no end, larger than the bound.
	chunk := append([]byte{}, soiMarker...)
	for i := 0; i < 128; i++ {
		chunk = append(chunk, 0x00)
	}
	p.Write(chunk) //nolint:errcheck // Write never fails

	// A subsequent well-formed frame still parses.
	frame := jpegFrame([]byte{0x07})
	p.Write(frame) //nolint:errcheck // Write never fails

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after buffer discard, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], frame) {
		t.Errorf("frame = %x, want %x", frames[0], frame)
	}
}

func TestFrameParser_Reset(t *testing.T) {
	var frames [][]byte
	p := NewFrameParser(func(f []byte) { frames = append(frames, f) })

	p.Write(soiMarker) //nolint:errcheck // partial frame
	p.Reset()
	p.Write(eoiMarker) //nolint:errcheck // orphan end marker

	if len(frames) != 0 {
		t.Errorf("expected no frames after reset, got %d", len(frames))
	}
}
