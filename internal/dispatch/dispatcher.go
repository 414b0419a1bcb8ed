package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/antoniostano/tauntbot/internal/command"
	"github.com/antoniostano/tauntbot/internal/observability"
	"github.com/antoniostano/tauntbot/internal/playback"
	"github.com/antoniostano/tauntbot/internal/resolve"
)

// Message is an inbound chat message.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorID  string
	Content   string
	// ReferencedMessageID is set when the message is a reply.
	ReferencedMessageID string

	AuthorIsSelf bool
	AuthorIsBot  bool
}

// Replier answers a message in its channel.
type Replier interface {
	Reply(ctx context.Context, msg Message, text string) error
}

type TargetResolver interface {
	Resolve(ctx context.Context, inv resolve.Invocation, intent command.Intent) (resolve.Target, error)
}

type ClipValidator interface {
	Validate(clip int) (string, error)
	Max() int
}

type SessionStarter interface {
	Start(ctx context.Context, req playback.Request) *playback.Session
}

type Config struct {
	// Mentions enables the "<n> @user" command form.
	Mentions bool
}

// Dispatcher turns messages into playback sessions. Every failed command gets
// exactly one reply; messages that are not commands get none.
type Dispatcher struct {
	cfg       Config
	resolver  TargetResolver
	validator ClipValidator
	sessions  SessionStarter
	replier   Replier
	metrics   *observability.Metrics
	logger    *zap.Logger

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

func New(
	cfg Config,
	resolver TargetResolver,
	validator ClipValidator,
	sessions SessionStarter,
	replier Replier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:       cfg,
		resolver:  resolver,
		validator: validator,
		sessions:  sessions,
		replier:   replier,
		metrics:   metrics,
		logger:    logger,
	}
}

// Handle processes one message. It returns once the session, if any, has been
// started; playback continues in the background. Messages arriving after
// Shutdown are dropped.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	if msg.AuthorIsSelf || msg.AuthorIsBot || msg.GuildID == "" {
		return
	}
	if !d.enter() {
		d.logger.Debug("dispatcher closing, message dropped", zap.String("message_id", msg.ID))
		return
	}
	handedOff := false
	defer func() {
		if !handedOff {
			d.inflight.Done()
		}
	}()

	intent := command.Parse(msg.Content, msg.ReferencedMessageID != "", command.Options{Mentions: d.cfg.Mentions})
	clip, ok := command.ClipOf(intent)
	if !ok {
		return
	}
	if d.metrics != nil {
		d.metrics.Commands.WithLabelValues(intent.Form()).Inc()
	}
	log := d.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("guild_id", msg.GuildID),
		zap.String("author_id", msg.AuthorID),
		zap.String("form", intent.Form()),
		zap.Int("clip", clip),
	)

	target, err := d.resolver.Resolve(ctx, resolve.Invocation{
		GuildID:             msg.GuildID,
		ChannelID:           msg.ChannelID,
		AuthorID:            msg.AuthorID,
		ReferencedMessageID: msg.ReferencedMessageID,
	}, intent)
	if err != nil {
		d.reject(ctx, log, msg, err)
		return
	}

	path, err := d.validator.Validate(clip)
	if err != nil {
		d.reject(ctx, log, msg, err)
		return
	}

	// The session outlives this message's handling.
	sess := d.sessions.Start(context.WithoutCancel(ctx), playback.Request{
		Target:    target,
		Clip:      clip,
		AssetPath: path,
	})
	log.Info("taunt dispatched",
		zap.String("session_id", sess.ID),
		zap.String("target_user_id", target.UserID),
		zap.String("voice_channel_id", target.VoiceChannelID),
	)

	handedOff = true
	go d.watch(context.WithoutCancel(ctx), log, msg, sess)
}

// enter registers an in-flight message unless the dispatcher is closing.
func (d *Dispatcher) enter() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return false
	}
	d.inflight.Add(1)
	return true
}

// watch waits for the session and reports a failed connection attempt.
func (d *Dispatcher) watch(ctx context.Context, log *zap.Logger, msg Message, sess *playback.Session) {
	defer d.inflight.Done()
	<-sess.Done()
	if sess.ConnectFailed() {
		d.reject(ctx, log, msg, sess.Err())
	}
}

// Shutdown stops accepting messages and waits for every message being handled
// and every started session, bounded by ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	return d.Wait(ctx)
}

// Wait blocks until every message being handled and every started session
// has finished, or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) reject(ctx context.Context, log *zap.Logger, msg Message, cause error) {
	reason, text := describe(cause, d.validator.Max())
	if d.metrics != nil {
		d.metrics.Rejections.WithLabelValues(reason).Inc()
	}
	log.Info("taunt rejected", zap.String("reason", reason), zap.Error(cause))
	if err := d.replier.Reply(ctx, msg, text); err != nil {
		if d.metrics != nil {
			d.metrics.CollaboratorErrors.WithLabelValues("gateway", "reply").Inc()
		}
		log.Warn("reply failed", zap.String("reason", reason), zap.Error(err))
	}
}
