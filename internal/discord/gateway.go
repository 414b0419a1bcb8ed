package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/antoniostano/tauntbot/internal/dispatch"
	"github.com/antoniostano/tauntbot/internal/observability"
	"github.com/antoniostano/tauntbot/internal/reliability"
	"github.com/antoniostano/tauntbot/internal/resolve"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildVoiceStates

// Presence is shown once the gateway session is ready.
type Presence struct {
	Status   string
	Activity string
}

// restAPI is the subset of *discordgo.Session used for REST calls.
type restAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway adapts a discordgo session to the resolver and dispatcher. It
// implements resolve.Directory, resolve.MessageFetcher and dispatch.Replier.
type Gateway struct {
	session *discordgo.Session
	state   *discordgo.State
	rest    restAPI

	presence Presence
	metrics  *observability.Metrics
	logger   *zap.Logger

	ready atomic.Bool

	mu      sync.RWMutex
	baseCtx context.Context
}

func NewGateway(token string, presence Presence, metrics *observability.Metrics, logger *zap.Logger) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = intents
	s.LogLevel = discordgo.LogWarning

	g := newGateway(s.State, s, metrics, logger)
	g.session = s
	g.presence = presence
	s.AddHandler(g.onReady)
	s.AddHandler(g.onResumed)
	s.AddHandler(g.onDisconnect)
	return g, nil
}

func newGateway(state *discordgo.State, rest restAPI, metrics *observability.Metrics, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		state:   state,
		rest:    rest,
		metrics: metrics,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Session exposes the underlying session for the voice transport.
func (g *Gateway) Session() *discordgo.Session { return g.session }

// OnMessage registers handler for every created message and returns a func
// that unregisters it. Handlers run on discordgo's event goroutines.
func (g *Gateway) OnMessage(handler func(context.Context, dispatch.Message)) (remove func()) {
	return g.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		handler(g.context(), toMessage(m.Message, selfID))
	})
}

// Open connects to the gateway. ctx is handed to message handlers.
func (g *Gateway) Open(ctx context.Context) error {
	g.mu.Lock()
	g.baseCtx = ctx
	g.mu.Unlock()
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (g *Gateway) Close() error {
	g.ready.Store(false)
	return g.session.Close()
}

// Ready reports whether the gateway session is established.
func (g *Gateway) Ready() bool { return g.ready.Load() }

func (g *Gateway) context() context.Context {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.baseCtx
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.ready.Store(true)
	user := ""
	if r.User != nil {
		user = r.User.Username
	}
	g.logger.Info("discord gateway ready", zap.String("user", user), zap.Int("guilds", len(r.Guilds)))
	err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: g.presence.Status,
		Activities: []*discordgo.Activity{{
			Name: g.presence.Activity,
			Type: discordgo.ActivityTypeGame,
		}},
	})
	if err != nil {
		g.collaboratorError("update_status", err)
	}
}

func (g *Gateway) onResumed(*discordgo.Session, *discordgo.Resumed) {
	g.ready.Store(true)
	g.logger.Info("discord gateway resumed")
}

func (g *Gateway) onDisconnect(*discordgo.Session, *discordgo.Disconnect) {
	g.ready.Store(false)
	g.logger.Warn("discord gateway disconnected")
}

// Member looks the member up in the state cache first, then over REST.
func (g *Gateway) Member(ctx context.Context, guildID, userID string) (*resolve.Member, error) {
	m, err := g.state.Member(guildID, userID)
	if err != nil {
		m, err = g.rest.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			if isNotFound(err) {
				return nil, resolve.ErrMemberNotFound
			}
			g.collaboratorError("guild_member", err)
			return nil, fmt.Errorf("fetch member %s: %w", userID, err)
		}
	}

	out := &resolve.Member{UserID: userID, DisplayName: displayName(m)}
	if vs, err := g.state.VoiceState(guildID, userID); err == nil && vs != nil {
		out.VoiceChannelID = vs.ChannelID
	}
	return out, nil
}

func (g *Gateway) MessageAuthor(ctx context.Context, channelID, messageID string) (string, error) {
	msg, err := g.rest.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		if !isNotFound(err) {
			g.collaboratorError("channel_message", err)
		}
		return "", fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	if msg.Author == nil {
		return "", fmt.Errorf("message %s has no author", messageID)
	}
	return msg.Author.ID, nil
}

// Reply answers msg in its channel as a threaded reply.
func (g *Gateway) Reply(ctx context.Context, msg dispatch.Message, text string) error {
	ref := &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}
	if _, err := g.rest.ChannelMessageSendReply(msg.ChannelID, text, ref, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send reply to %s: %w", msg.ID, err)
	}
	return nil
}

func (g *Gateway) collaboratorError(op string, err error) {
	if g.metrics != nil {
		g.metrics.CollaboratorErrors.WithLabelValues("gateway", op).Inc()
	}
	if transient(err) {
		g.logger.Warn("discord request failed, transient", zap.String("op", op), zap.Error(err))
		return
	}
	g.logger.Error("discord request failed", zap.String("op", op), zap.Error(err))
}

func toMessage(m *discordgo.Message, selfID string) dispatch.Message {
	out := dispatch.Message{
		ID:        m.ID,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorIsBot = m.Author.Bot
		out.AuthorIsSelf = selfID != "" && m.Author.ID == selfID
	}
	if m.MessageReference != nil {
		out.ReferencedMessageID = m.MessageReference.MessageID
	}
	return out
}

// displayName prefers the guild nickname, then the global display name.
func displayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func restStatus(err error) (int, bool) {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) || rerr.Response == nil {
		return 0, false
	}
	return rerr.Response.StatusCode, true
}

func isNotFound(err error) bool {
	code, ok := restStatus(err)
	return ok && reliability.IsNotFoundHTTPStatus(code)
}

func transient(err error) bool {
	code, ok := restStatus(err)
	return ok && reliability.IsTransientHTTPStatus(code)
}
