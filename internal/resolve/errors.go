package resolve

import "fmt"

// Kind classifies resolution failures.
type Kind int

const (
	KindNotInVoice Kind = iota + 1
	KindUnknownParticipant
	KindReferenceUnresolvable
)

func (k Kind) String() string {
	switch k {
	case KindNotInVoice:
		return "not_in_voice"
	case KindUnknownParticipant:
		return "unknown_participant"
	case KindReferenceUnresolvable:
		return "reference_unresolvable"
	default:
		return "unknown"
	}
}

// Source records how the target participant was named.
type Source int

const (
	SourceSelf Source = iota
	SourceMention
	SourceReply
)

// Error is a resolution failure.
type Error struct {
	Kind   Kind
	Source Source
	// Self is set when the invoker is the missing participant.
	Self bool
	// Who is the display name of the participant, when known.
	Who string
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Self:
		return fmt.Sprintf("resolve: %s: invoker", e.Kind)
	case e.Who != "":
		return fmt.Sprintf("resolve: %s: %s", e.Kind, e.Who)
	case e.Err != nil:
		return fmt.Sprintf("resolve: %s: %v", e.Kind, e.Err)
	default:
		return "resolve: " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }
