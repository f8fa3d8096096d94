package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	return newStream(func(*Stream) (func(), error) {
		return func() {}, nil
	}, 100*time.Millisecond)
}

func TestStream_StartStopLifecycle(t *testing.T) {
	stopped := 0
	s := newStream(func(*Stream) (func(), error) {
		return func() { stopped++ }, nil
	}, 100*time.Millisecond)

	if s.State() != StreamStopped {
		t.Fatalf("initial state = %q, want %q", s.State(), StreamStopped)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.State() != StreamStreaming {
		t.Errorf("state after Start = %q, want %q", s.State(), StreamStreaming)
	}

	// Second Start is a no-op, not a second producer.
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	s.Stop()
	if s.State() != StreamStopped {
		t.Errorf("state after Stop = %q, want %q", s.State(), StreamStopped)
	}
	if stopped != 1 {
		t.Errorf("stop function called %d times, want 1", stopped)
	}

	// Stop when already stopped is a no-op.
	s.Stop()
	if stopped != 1 {
		t.Errorf("stop function called %d times after double Stop, want 1", stopped)
	}
}

func TestStream_StartFailure(t *testing.T) {
	s := newStream(func(*Stream) (func(), error) {
		return nil, errors.New("spawn failed")
	}, 100*time.Millisecond)

	err := s.Start()
	if err == nil {
		t.Fatal("expected Start to fail")
	}
	if !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("err = %v, want ErrCaptureFailed", err)
	}
	if s.State() != StreamStopped {
		t.Errorf("state after failed Start = %q, want %q", s.State(), StreamStopped)
	}
}

func TestStream_GetFrameTimeout(t *testing.T) {
	s := newTestStream(t)

	_, err := s.GetFrame(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("GetFrame on idle stream = %v, want ErrTimeout", err)
	}
}

func TestStream_GetFrameReceivesDelivery(t *testing.T) {
	s := newTestStream(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	frame := jpegFrame([]byte{0x55})
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Deliver(frame)
	}()

	got, err := s.GetFrame(context.Background())
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if len(got) != len(frame) {
		t.Errorf("frame length = %d, want %d", len(got), len(frame))
	}
}

func TestStream_GetFrameContextCancel(t *testing.T) {
	s := newTestStream(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetFrame(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetFrame with cancelled context = %v, want context.Canceled", err)
	}
}

func TestStream_OnFrameSubscribers(t *testing.T) {
	s := newTestStream(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var a, b int
	s.OnFrame(func([]byte) { a++ })
	unsubscribe := s.OnFrame(func([]byte) { b++ })

	s.Deliver([]byte{0x01})
	s.Deliver([]byte{0x02})

	if a != 2 || b != 2 {
		t.Errorf("subscriber counts = %d/%d, want 2/2", a, b)
	}

	unsubscribe()
	s.Deliver([]byte{0x03})

	if a != 3 {
		t.Errorf("remaining subscriber count = %d, want 3", a)
	}
	if b != 2 {
		t.Errorf("unsubscribed count = %d, want 2", b)
	}
}

func TestStream_StopClearsSubscribers(t *testing.T) {
	s := newTestStream(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	count := 0
	s.OnFrame(func([]byte) { count++ })

	s.Stop()
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}

	s.Deliver([]byte{0x01})
	if count != 0 {
		t.Errorf("subscriber survived Stop, count = %d", count)
	}
}

func TestStream_ZeroSubscribersDiscardsFrames(t *testing.T) {
	s := newTestStream(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Must not panic or block.
	s.Deliver([]byte{0x01})
	s.Deliver([]byte{0x02})
}
