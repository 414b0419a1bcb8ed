package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/antoniostano/tauntbot/internal/audio"
	"github.com/antoniostano/tauntbot/internal/playback"
	"github.com/antoniostano/tauntbot/internal/resolve"
)

const silenceFrames = 5

var ErrFrameTimeout = errors.New("voice frame send timed out")

// voiceLink is the part of *discordgo.VoiceConnection a playback needs.
type voiceLink interface {
	Speaking(bool) error
	Disconnect() error
}

// joinFunc joins a voice channel. On failure it may still return a link for a
// join that was already sent; that link must be disconnected.
type joinFunc func(guildID, channelID string) (voiceLink, chan<- []byte, error)

// VoiceTransport joins voice channels through a discordgo session.
// discordgo keeps one voice connection per guild, so two sessions targeting
// the same guild share it and the last join decides the channel.
type VoiceTransport struct {
	join         joinFunc
	frameTimeout time.Duration
	logger       *zap.Logger
}

func NewVoiceTransport(session *discordgo.Session, frameTimeout time.Duration, logger *zap.Logger) *VoiceTransport {
	return newVoiceTransport(sessionJoin(session), frameTimeout, logger)
}

func newVoiceTransport(join joinFunc, frameTimeout time.Duration, logger *zap.Logger) *VoiceTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if frameTimeout <= 0 {
		frameTimeout = 2 * time.Second
	}
	return &VoiceTransport{join: join, frameTimeout: frameTimeout, logger: logger}
}

// Open joins the target's voice channel self-deafened. A join that fails
// after reaching Discord is left again before the error is returned.
func (t *VoiceTransport) Open(ctx context.Context, target resolve.Target) (playback.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := t.logger.With(
		zap.String("guild_id", target.GuildID),
		zap.String("voice_channel_id", target.VoiceChannelID),
	)
	link, send, err := t.join(target.GuildID, target.VoiceChannelID)
	if err != nil {
		if link != nil {
			if derr := link.Disconnect(); derr != nil {
				log.Warn("leave after failed join failed", zap.Error(derr))
			}
		}
		return nil, fmt.Errorf("join voice channel %s: %w", target.VoiceChannelID, err)
	}
	return newVoiceConn(link, send, t.frameTimeout, log), nil
}

func sessionJoin(s *discordgo.Session) joinFunc {
	return func(guildID, channelID string) (voiceLink, chan<- []byte, error) {
		vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
		if vc == nil {
			if err == nil {
				err = errors.New("no voice connection returned")
			}
			return nil, nil, err
		}
		return &sessionVoice{vc: vc, session: s}, vc.OpusSend, err
	}
}

// sessionVoice sends an explicit leave after Disconnect, since discordgo
// skips the leave op when the voice session id never arrived.
type sessionVoice struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
}

func (v *sessionVoice) Speaking(b bool) error { return v.vc.Speaking(b) }

func (v *sessionVoice) Disconnect() error {
	guildID := v.vc.GuildID
	err := v.vc.Disconnect()
	if lerr := v.session.ChannelVoiceJoinManual(guildID, "", false, true); lerr != nil && err == nil {
		err = lerr
	}
	return err
}

type voiceConn struct {
	link         voiceLink
	send         chan<- []byte
	frameTimeout time.Duration
	logger       *zap.Logger
}

func newVoiceConn(link voiceLink, send chan<- []byte, frameTimeout time.Duration, logger *zap.Logger) *voiceConn {
	return &voiceConn{link: link, send: send, frameTimeout: frameTimeout, logger: logger}
}

// Play streams the Ogg Opus file at assetPath. The returned channel yields
// the stream result once and is then closed.
func (c *voiceConn) Play(ctx context.Context, assetPath string) (<-chan error, error) {
	f, err := os.Open(assetPath)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	if err := c.link.Speaking(true); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("set speaking: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer f.Close()
		err := c.stream(ctx, audio.NewOpusReader(f))
		if serr := c.link.Speaking(false); serr != nil {
			c.logger.Debug("clear speaking failed", zap.Error(serr))
		}
		done <- err
	}()
	return done, nil
}

func (c *voiceConn) stream(ctx context.Context, r *audio.OpusReader) error {
	timer := time.NewTimer(c.frameTimeout)
	defer timer.Stop()

	frames := 0
	for {
		packet, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", frames, err)
		}
		if err := c.sendFrame(ctx, timer, packet); err != nil {
			return fmt.Errorf("send frame %d: %w", frames, err)
		}
		frames++
	}
	for i := 0; i < silenceFrames; i++ {
		if err := c.sendFrame(ctx, timer, audio.SilenceFrame); err != nil {
			return fmt.Errorf("send silence: %w", err)
		}
	}
	c.logger.Debug("clip streamed", zap.Int("frames", frames))
	return nil
}

func (c *voiceConn) sendFrame(ctx context.Context, timer *time.Timer, frame []byte) error {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(c.frameTimeout)
	select {
	case c.send <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrFrameTimeout
	}
}

func (c *voiceConn) Release() error {
	return c.link.Disconnect()
}
