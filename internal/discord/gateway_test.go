package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/tauntbot/internal/dispatch"
	"github.com/antoniostano/tauntbot/internal/observability"
	"github.com/antoniostano/tauntbot/internal/resolve"
)

type fakeREST struct {
	members   map[string]*discordgo.Member
	memberErr error
	messages  map[string]*discordgo.Message
	msgErr    error
	replyErr  error

	replies []sentReply
}

type sentReply struct {
	channelID string
	content   string
	ref       *discordgo.MessageReference
}

func (f *fakeREST) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return nil, restError(http.StatusNotFound)
}

func (f *fakeREST) ChannelMessage(_, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	if m, ok := f.messages[messageID]; ok {
		return m, nil
	}
	return nil, restError(http.StatusNotFound)
}

func (f *fakeREST) ChannelMessageSendReply(channelID, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	f.replies = append(f.replies, sentReply{channelID: channelID, content: content, ref: ref})
	return &discordgo.Message{ID: "reply"}, nil
}

func restError(code int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: code, Status: http.StatusText(code)}}
}

func newState(t *testing.T, guild *discordgo.Guild) *discordgo.State {
	t.Helper()
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(guild))
	return state
}

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID: "g1",
		Members: []*discordgo.Member{
			{GuildID: "g1", Nick: "Villager", User: &discordgo.User{ID: "u1", Username: "alice"}},
			{GuildID: "g1", User: &discordgo.User{ID: "u2", Username: "bob"}},
		},
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "g1", UserID: "u1", ChannelID: "v1"},
		},
	}
}

func TestMemberFromStateWithVoice(t *testing.T) {
	g := newGateway(newState(t, testGuild()), &fakeREST{}, nil, nil)

	m, err := g.Member(context.Background(), "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, &resolve.Member{UserID: "u1", DisplayName: "Villager", VoiceChannelID: "v1"}, m)
}

func TestMemberFromStateWithoutVoice(t *testing.T) {
	g := newGateway(newState(t, testGuild()), &fakeREST{}, nil, nil)

	m, err := g.Member(context.Background(), "g1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob", m.DisplayName)
	assert.Empty(t, m.VoiceChannelID)
}

func TestMemberFallsBackToREST(t *testing.T) {
	guild := testGuild()
	guild.VoiceStates = append(guild.VoiceStates, &discordgo.VoiceState{GuildID: "g1", UserID: "u3", ChannelID: "v2"})
	rest := &fakeREST{members: map[string]*discordgo.Member{
		"u3": {User: &discordgo.User{ID: "u3", Username: "carol", GlobalName: "Carol"}},
	}}
	g := newGateway(newState(t, guild), rest, nil, nil)

	m, err := g.Member(context.Background(), "g1", "u3")
	require.NoError(t, err)
	assert.Equal(t, &resolve.Member{UserID: "u3", DisplayName: "Carol", VoiceChannelID: "v2"}, m)
}

func TestMemberNotFound(t *testing.T) {
	g := newGateway(newState(t, testGuild()), &fakeREST{}, nil, nil)

	_, err := g.Member(context.Background(), "g1", "ghost")
	require.ErrorIs(t, err, resolve.ErrMemberNotFound)
}

func TestMemberTransportErrorIsCounted(t *testing.T) {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	rest := &fakeREST{memberErr: restError(http.StatusBadGateway)}
	g := newGateway(newState(t, testGuild()), rest, metrics, nil)

	_, err := g.Member(context.Background(), "g1", "ghost")
	require.Error(t, err)
	assert.NotErrorIs(t, err, resolve.ErrMemberNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CollaboratorErrors.WithLabelValues("gateway", "guild_member")))
}

func TestMessageAuthor(t *testing.T) {
	rest := &fakeREST{messages: map[string]*discordgo.Message{
		"m1": {ID: "m1", Author: &discordgo.User{ID: "u2"}},
		"m2": {ID: "m2"},
	}}
	g := newGateway(discordgo.NewState(), rest, nil, nil)

	author, err := g.MessageAuthor(context.Background(), "c1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "u2", author)

	_, err = g.MessageAuthor(context.Background(), "c1", "m2")
	require.Error(t, err)

	_, err = g.MessageAuthor(context.Background(), "c1", "deleted")
	require.Error(t, err)
	assert.True(t, isNotFound(err))
}

func TestReplyThreadsOnMessage(t *testing.T) {
	rest := &fakeREST{}
	g := newGateway(discordgo.NewState(), rest, nil, nil)

	err := g.Reply(context.Background(), dispatch.Message{ID: "m1", GuildID: "g1", ChannelID: "c1"}, "hello")
	require.NoError(t, err)
	require.Len(t, rest.replies, 1)
	assert.Equal(t, "c1", rest.replies[0].channelID)
	assert.Equal(t, "hello", rest.replies[0].content)
	assert.Equal(t, &discordgo.MessageReference{MessageID: "m1", ChannelID: "c1", GuildID: "g1"}, rest.replies[0].ref)
}

func TestReplyError(t *testing.T) {
	cause := errors.New("missing permissions")
	g := newGateway(discordgo.NewState(), &fakeREST{replyErr: cause}, nil, nil)

	err := g.Reply(context.Background(), dispatch.Message{ID: "m1", ChannelID: "c1"}, "hello")
	require.ErrorIs(t, err, cause)
}

func TestToMessage(t *testing.T) {
	m := &discordgo.Message{
		ID:               "m1",
		GuildID:          "g1",
		ChannelID:        "c1",
		Content:          "14",
		Author:           &discordgo.User{ID: "u1"},
		MessageReference: &discordgo.MessageReference{MessageID: "m0"},
	}
	assert.Equal(t, dispatch.Message{
		ID:                  "m1",
		GuildID:             "g1",
		ChannelID:           "c1",
		AuthorID:            "u1",
		Content:             "14",
		ReferencedMessageID: "m0",
	}, toMessage(m, "bot"))

	self := toMessage(&discordgo.Message{Author: &discordgo.User{ID: "bot", Bot: true}}, "bot")
	assert.True(t, self.AuthorIsSelf)
	assert.True(t, self.AuthorIsBot)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		member *discordgo.Member
		want   string
	}{
		{name: "nil", member: nil, want: ""},
		{name: "nick", member: &discordgo.Member{Nick: "N", User: &discordgo.User{Username: "u", GlobalName: "G"}}, want: "N"},
		{name: "global", member: &discordgo.Member{User: &discordgo.User{Username: "u", GlobalName: "G"}}, want: "G"},
		{name: "username", member: &discordgo.Member{User: &discordgo.User{Username: "u"}}, want: "u"},
		{name: "no user", member: &discordgo.Member{}, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, displayName(tc.member))
		})
	}
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isNotFound(restError(http.StatusNotFound)))
	assert.True(t, isNotFound(restError(http.StatusForbidden)))
	assert.False(t, isNotFound(restError(http.StatusServiceUnavailable)))
	assert.False(t, isNotFound(errors.New("dial tcp: timeout")))
	assert.True(t, transient(restError(http.StatusTooManyRequests)))
	assert.False(t, transient(restError(http.StatusNotFound)))
}
