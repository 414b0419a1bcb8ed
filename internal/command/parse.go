package command

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	digitsPattern        = regexp.MustCompile(`^\d+$`)
	mentionAfterPattern  = regexp.MustCompile(`^(\d+)\s+<@!?(\d+)>$`)
	mentionBeforePattern = regexp.MustCompile(`^<@!?(\d+)>\s+(\d+)$`)
)

// Options tunes parsing.
type Options struct {
	// Mentions enables the "<n> @user" and "@user <n>" forms.
	Mentions bool
}

// Parse turns a message into an Intent. Forms are checked in order: mention,
// reply, self. The clip number is not range checked here.
func Parse(text string, hasReply bool, opts Options) Intent {
	text = strings.TrimSpace(text)

	if digits, userID, ok := matchMention(text); ok {
		if opts.Mentions {
			return MentionPlay{Clip: atoiSaturating(digits), UserID: userID}
		}
		// The mention is dropped; only the clip digits are routed.
		text = digits
	}

	if !digitsPattern.MatchString(text) {
		return NoIntent{}
	}
	clip := atoiSaturating(text)
	if hasReply {
		return ReplyPlay{Clip: clip}
	}
	return SelfPlay{Clip: clip}
}

func matchMention(text string) (digits, userID string, ok bool) {
	if m := mentionAfterPattern.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	if m := mentionBeforePattern.FindStringSubmatch(text); m != nil {
		return m[2], m[1], true
	}
	return "", "", false
}

// atoiSaturating converts a string of ASCII digits, clamping values that do
// not fit in an int to math.MaxInt.
func atoiSaturating(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return math.MaxInt
	}
	return n
}
