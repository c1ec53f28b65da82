package voice

import (
	"context"
	"sync"
)

// InputStream is an acquired microphone track.
type InputStream interface {
	// Frames delivers captured samples in capture order. It is closed when
	// the stream is released.
	Frames() <-chan []float32
	// Close releases the track. It is safe to call more than once.
	Close() error
}

// Microphone hands out input streams.
type Microphone interface {
	Acquire(ctx context.Context) (InputStream, error)
}

// PushMicrophone is a microphone fed from outside, one captured buffer at a
// time. The websocket client uses it to forward browser capture.
type PushMicrophone struct {
	mu      sync.Mutex
	denied  bool
	current *pushStream
	buffer  int
}

// NewPushMicrophone creates a microphone whose streams buffer up to buffer
// pending captures.
func NewPushMicrophone(buffer int) *PushMicrophone {
	if buffer < 1 {
		buffer = 64
	}
	return &PushMicrophone{buffer: buffer}
}

// SetDenied records the user's permission answer.
func (m *PushMicrophone) SetDenied(denied bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied = denied
}

// Acquire opens a new stream, or fails with ErrPermissionDenied.
func (m *PushMicrophone) Acquire(ctx context.Context) (InputStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied {
		return nil, ErrPermissionDenied
	}
	if m.current != nil {
		m.current.Close()
	}
	m.current = &pushStream{frames: make(chan []float32, m.buffer)}
	return m.current, nil
}

// Push forwards captured samples to the open stream. It reports false when
// the stream is full and the capture was dropped.
func (m *PushMicrophone) Push(samples []float32) (bool, error) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil {
		return false, ErrMicrophoneClosed
	}
	return s.push(samples)
}

// Active reports whether a stream is currently acquired.
func (m *PushMicrophone) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !m.current.isClosed()
}

type pushStream struct {
	mu     sync.Mutex
	closed bool
	frames chan []float32
}

func (s *pushStream) Frames() <-chan []float32 { return s.frames }

func (s *pushStream) push(samples []float32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrMicrophoneClosed
	}
	select {
	case s.frames <- samples:
		return true, nil
	default:
		return false, nil
	}
}

func (s *pushStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *pushStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}
