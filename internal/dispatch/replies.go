package dispatch

import (
	"errors"
	"fmt"

	"github.com/antoniostano/tauntbot/internal/clips"
	"github.com/antoniostano/tauntbot/internal/playback"
	"github.com/antoniostano/tauntbot/internal/resolve"
)

const (
	replySelfNotInVoice      = "You need to be in a voice channel to play a taunt, or mention someone who is in a voice channel."
	replyMentionUnknown      = "Could not find the mentioned user."
	replyReplyAuthorUnknown  = "Could not find the user you replied to."
	replyReferenceUnresolved = "Could not find the message you replied to."
	replyConnectFailed       = "An error occurred while connecting to the voice channel."
)

// describe maps a failure to a metrics reason and the user-facing reply.
func describe(err error, maxClip int) (reason, text string) {
	var rerr *resolve.Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case resolve.KindNotInVoice:
			if rerr.Self {
				return "not_in_voice", replySelfNotInVoice
			}
			who := rerr.Who
			if who == "" {
				who = "That user"
			}
			return "not_in_voice", fmt.Sprintf("%s is not in a voice channel.", who)
		case resolve.KindUnknownParticipant:
			if rerr.Source == resolve.SourceReply {
				return "unknown_participant", replyReplyAuthorUnknown
			}
			return "unknown_participant", replyMentionUnknown
		case resolve.KindReferenceUnresolvable:
			return "reference_unresolvable", replyReferenceUnresolved
		}
	}

	var verr *clips.ValidationError
	if errors.As(err, &verr) {
		if errors.Is(verr, clips.ErrAssetMissing) {
			return "asset_missing", fmt.Sprintf("Taunt file not found: %s", verr.Path)
		}
		return "out_of_range", fmt.Sprintf("Taunt number must be between 1 and %d.", maxClip)
	}

	if errors.Is(err, playback.ErrTransportAcquisition) {
		return "transport_acquisition_failed", replyConnectFailed
	}
	return "internal", replyConnectFailed
}
