package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one playback from connection acquisition to release. It is
// driven by a single Manager goroutine; the exported methods are safe for
// concurrent use.
type Session struct {
	ID        string
	Request   Request
	CreatedAt time.Time

	mu      sync.Mutex
	state   State
	history []State
	err     error

	releaseOnce sync.Once
	done        chan struct{}
}

func newSession(req Request) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Request:   req,
		CreatedAt: time.Now().UTC(),
		state:     StateIdle,
		history:   []State{StateIdle},
		done:      make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every state the session has been in, in order.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}

// Err reports why the session failed; nil after a clean playback.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is closed or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectFailed reports whether the session never obtained a connection.
func (s *Session) ConnectFailed() bool {
	return errors.Is(s.Err(), ErrTransportAcquisition)
}

func (s *Session) setState(to State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.state
	s.state = to
	s.history = append(s.history, to)
	return from
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
