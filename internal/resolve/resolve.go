package resolve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/antoniostano/tauntbot/internal/command"
)

// ErrMemberNotFound is returned by a Directory when the user is not a member
// of the guild.
var ErrMemberNotFound = errors.New("member not found")

// Member is the part of a guild member the resolver needs.
type Member struct {
	UserID      string
	DisplayName string
	// VoiceChannelID is empty when the member is not in a voice channel.
	VoiceChannelID string
}

// Directory looks up guild members together with their live voice state.
type Directory interface {
	Member(ctx context.Context, guildID, userID string) (*Member, error)
}

// MessageFetcher returns the author of a previously sent message.
type MessageFetcher interface {
	MessageAuthor(ctx context.Context, channelID, messageID string) (string, error)
}

// Invocation is the context of the message being handled.
type Invocation struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	// ReferencedMessageID is the message replied to; empty without reply context.
	ReferencedMessageID string
}

// Target is where a clip will be played.
type Target struct {
	GuildID        string
	VoiceChannelID string
	UserID         string
	DisplayName    string
}

// Resolver maps an intent to the voice channel that should receive the clip.
type Resolver struct {
	directory Directory
	messages  MessageFetcher
	logger    *zap.Logger
}

func New(directory Directory, messages MessageFetcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{directory: directory, messages: messages, logger: logger}
}

// Resolve returns the target for intent or a *Error describing why there is none.
func (r *Resolver) Resolve(ctx context.Context, inv Invocation, intent command.Intent) (Target, error) {
	switch v := intent.(type) {
	case command.SelfPlay:
		m := r.lookup(ctx, inv.GuildID, inv.AuthorID)
		if m == nil || m.VoiceChannelID == "" {
			return Target{}, &Error{Kind: KindNotInVoice, Self: true}
		}
		return targetOf(inv.GuildID, m), nil

	case command.MentionPlay:
		return r.resolveMember(ctx, inv.GuildID, v.UserID, SourceMention)

	case command.ReplyPlay:
		if inv.ReferencedMessageID == "" {
			return Target{}, &Error{Kind: KindReferenceUnresolvable, Source: SourceReply}
		}
		authorID, err := r.messages.MessageAuthor(ctx, inv.ChannelID, inv.ReferencedMessageID)
		if err != nil {
			r.logger.Warn("fetch referenced message failed",
				zap.String("channel_id", inv.ChannelID),
				zap.String("message_id", inv.ReferencedMessageID),
				zap.Error(err),
			)
			return Target{}, &Error{Kind: KindReferenceUnresolvable, Source: SourceReply, Err: err}
		}
		return r.resolveMember(ctx, inv.GuildID, authorID, SourceReply)

	default:
		return Target{}, fmt.Errorf("resolve: unsupported intent %T", intent)
	}
}

func (r *Resolver) resolveMember(ctx context.Context, guildID, userID string, source Source) (Target, error) {
	m := r.lookup(ctx, guildID, userID)
	if m == nil {
		return Target{}, &Error{Kind: KindUnknownParticipant, Source: source}
	}
	if m.VoiceChannelID == "" {
		return Target{}, &Error{Kind: KindNotInVoice, Source: source, Who: m.DisplayName}
	}
	return targetOf(guildID, m), nil
}

// lookup returns nil when the member cannot be found for any reason.
func (r *Resolver) lookup(ctx context.Context, guildID, userID string) *Member {
	m, err := r.directory.Member(ctx, guildID, userID)
	if err != nil {
		if !errors.Is(err, ErrMemberNotFound) {
			r.logger.Warn("member lookup failed",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return nil
	}
	return m
}

func targetOf(guildID string, m *Member) Target {
	return Target{
		GuildID:        guildID,
		VoiceChannelID: m.VoiceChannelID,
		UserID:         m.UserID,
		DisplayName:    m.DisplayName,
	}
}
