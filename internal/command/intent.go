package command

// Intent is the parsed meaning of one inbound message. The set of
// implementations is closed: NoIntent, SelfPlay, MentionPlay and ReplyPlay.
type Intent interface {
	// Form names the command form for logs and metrics.
	Form() string
	isIntent()
}

// NoIntent means the message is not a command and must be ignored silently.
type NoIntent struct{}

// SelfPlay plays Clip in the invoker's voice channel.
type SelfPlay struct {
	Clip int
}

// MentionPlay plays Clip in the voice channel of the mentioned user.
type MentionPlay struct {
	Clip   int
	UserID string
}

// ReplyPlay plays Clip in the voice channel of the author of the message
// being replied to.
type ReplyPlay struct {
	Clip int
}

func (NoIntent) Form() string    { return "none" }
func (SelfPlay) Form() string    { return "self" }
func (MentionPlay) Form() string { return "mention" }
func (ReplyPlay) Form() string   { return "reply" }

func (NoIntent) isIntent()    {}
func (SelfPlay) isIntent()    {}
func (MentionPlay) isIntent() {}
func (ReplyPlay) isIntent()   {}

// ClipOf returns the clip number carried by intent and false for NoIntent.
func ClipOf(intent Intent) (int, bool) {
	switch v := intent.(type) {
	case SelfPlay:
		return v.Clip, true
	case MentionPlay:
		return v.Clip, true
	case ReplyPlay:
		return v.Clip, true
	default:
		return 0, false
	}
}
