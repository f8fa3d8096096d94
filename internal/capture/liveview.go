package capture

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StreamState tracks the live-view lifecycle.
type StreamState string

const (
	StreamStopped   StreamState = "stopped"
	StreamStarting  StreamState = "starting"
	StreamStreaming StreamState = "streaming"
)

// defaultFrameTimeout bounds how long GetFrame waits for the next
// frame before failing.
const defaultFrameTimeout = 5 * time.Second

// streamSource starts the underlying frame producer (subprocess or
// generator) and returns a function that terminates it immediately.
// Produced frames must be delivered via the Stream's Deliver method.
type streamSource func(s *Stream) (stop func(), err error)

// Stream is a live-view frame feed with push and pull delivery.
// At most one Stream is Streaming per Controller at a time.
type Stream struct {
	mu           sync.Mutex
	state        StreamState
	source       streamSource
	stop         func()
	frameTimeout time.Duration

	nextID      int
	subscribers map[int]func(frame []byte)
	waiters     []chan []byte
}

// newStream creates a stopped stream over the given source.
// frameTimeout <= 0 selects the default.
func newStream(source streamSource, frameTimeout time.Duration) *Stream {
	if frameTimeout <= 0 {
		frameTimeout = defaultFrameTimeout
	}
	return &Stream{
		state:        StreamStopped,
		source:       source,
		frameTimeout: frameTimeout,
		subscribers:  make(map[int]func([]byte)),
	}
}

// Start launches the frame producer. No-op if already streaming.
func (s *Stream) Start() error {
	s.mu.Lock()
	if s.state == StreamStreaming || s.state == StreamStarting {
		s.mu.Unlock()
		return nil
	}
	s.state = StreamStarting
	s.mu.Unlock()

	stop, err := s.source(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StreamStopped
		return fmt.Errorf("%w: starting live view: %v", ErrCaptureFailed, err)
	}
	s.stop = stop
	s.state = StreamStreaming
	return nil
}

// Stop terminates the frame producer immediately (no grace period) and
// clears all subscribers. No-op if not streaming.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.state == StreamStopped {
		s.mu.Unlock()
		return
	}
	stop := s.stop
	s.stop = nil
	s.state = StreamStopped
	s.subscribers = make(map[int]func([]byte))
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	if stop != nil {
		stop()
	}
}

// State returns the current lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GetFrame returns the next frame delivered to the stream, or
// ErrTimeout if none arrives within the frame timeout.
func (s *Stream) GetFrame(ctx context.Context) ([]byte, error) {
	ch := make(chan []byte, 1)

	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	timer := time.NewTimer(s.frameTimeout)
	defer timer.Stop()

	select {
	case frame, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: stream stopped while waiting for frame", ErrTimeout)
		}
		return frame, nil
	case <-timer.C:
		s.removeWaiter(ch)
		return nil, fmt.Errorf("%w: no live-view frame within %v", ErrTimeout, s.frameTimeout)
	case <-ctx.Done():
		s.removeWaiter(ch)
		return nil, ctx.Err()
	}
}

// OnFrame registers a durable subscriber. Every subscriber receives
// every frame; zero subscribers is valid and frames are discarded.
// The returned function removes the subscription.
func (s *Stream) OnFrame(callback func(frame []byte)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers[id] = callback

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Deliver pushes one frame to all pull waiters and push subscribers.
// Called by the frame source.
func (s *Stream) Deliver(frame []byte) {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	subs := make([]func([]byte), 0, len(s.subscribers))
	for _, cb := range s.subscribers {
		subs = append(subs, cb)
	}
	s.mu.Unlock()

	for _, w := range waiters {
		w <- frame
	}
	for _, cb := range subs {
		cb(frame)
	}
}

func (s *Stream) removeWaiter(ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
