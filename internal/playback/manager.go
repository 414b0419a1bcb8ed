package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/antoniostano/tauntbot/internal/observability"
)

var errNoCompletion = errors.New("connection returned no completion channel")

// Observer is called on every state transition, from the session goroutine.
type Observer func(s *Session, from, to State)

type Option func(*Manager)

func WithMetrics(m *observability.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

func WithObserver(fn Observer) Option {
	return func(mgr *Manager) { mgr.observer = fn }
}

// Manager runs playback sessions. It keeps no registry of sessions: each
// session is owned by the goroutine started in Start.
type Manager struct {
	transport Transport
	logger    *zap.Logger
	metrics   *observability.Metrics
	observer  Observer
}

func NewManager(transport Transport, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{transport: transport, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches a session for req and returns without waiting for it.
func (m *Manager) Start(ctx context.Context, req Request) *Session {
	s := newSession(req)
	go m.run(ctx, s)
	return s
}

// run drives Idle -> Connecting -> Playing -> Closing -> Closed. Any error
// moves through Failed and then performs the same teardown as Closing.
func (m *Manager) run(ctx context.Context, s *Session) {
	log := m.logger.With(
		zap.String("session_id", s.ID),
		zap.String("guild_id", s.Request.Target.GuildID),
		zap.String("channel_id", s.Request.Target.VoiceChannelID),
		zap.Int("clip", s.Request.Clip),
	)
	var conn Connection
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			m.fail(s, log, fmt.Errorf("%w: panic: %v", ErrPlayback, r))
			m.teardown(s, log, conn)
		}
	}()

	m.transition(s, StateConnecting)
	started := time.Now()
	c, err := m.transport.Open(ctx, s.Request.Target)
	if err != nil {
		m.collaboratorError("open")
		m.fail(s, log, fmt.Errorf("%w: %w", ErrTransportAcquisition, err))
		m.teardown(s, log, nil)
		return
	}
	conn = c
	if m.metrics != nil {
		m.metrics.ObserveConnectLatency(time.Since(started))
		m.metrics.ActiveSessions.Inc()
	}

	m.transition(s, StatePlaying)
	done, err := conn.Play(ctx, s.Request.AssetPath)
	if err == nil && done == nil {
		err = errNoCompletion
	}
	if err != nil {
		m.collaboratorError("play")
		m.fail(s, log, fmt.Errorf("%w: %w", ErrPlayback, err))
		m.teardown(s, log, conn)
		return
	}

	if err := <-done; err != nil {
		m.collaboratorError("stream")
		m.fail(s, log, fmt.Errorf("%w: %w", ErrPlayback, err))
	} else {
		log.Debug("playback reached end of stream")
	}
	m.teardown(s, log, conn)
}

func (m *Manager) fail(s *Session, log *zap.Logger, err error) {
	s.setErr(err)
	log.Warn("playback session failed", zap.Error(err))
	m.transition(s, StateFailed)
}

// teardown releases conn at most once per session. A nil conn was never
// opened and needs no release.
func (m *Manager) teardown(s *Session, log *zap.Logger, conn Connection) {
	s.releaseOnce.Do(func() {
		m.transition(s, StateClosing)
		if conn != nil {
			m.release(log, conn)
			if m.metrics != nil {
				m.metrics.ActiveSessions.Dec()
			}
		}
		m.transition(s, StateClosed)
	})
}

// release never lets a failing Release keep the session from closing.
func (m *Manager) release(log *zap.Logger, conn Connection) {
	defer func() {
		if r := recover(); r != nil {
			m.collaboratorError("release")
			log.Error("voice connection release panicked", zap.Any("panic", r))
		}
	}()
	if err := conn.Release(); err != nil {
		m.collaboratorError("release")
		log.Warn("voice connection release failed", zap.Error(err))
	}
}

func (m *Manager) transition(s *Session, to State) {
	from := s.setState(to)
	if m.metrics != nil {
		m.metrics.SessionEvents.WithLabelValues(to.String()).Inc()
	}
	if m.observer != nil {
		m.observer(s, from, to)
	}
}

func (m *Manager) collaboratorError(op string) {
	if m.metrics != nil {
		m.metrics.CollaboratorErrors.WithLabelValues("voice", op).Inc()
	}
}
