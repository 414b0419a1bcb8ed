package playback

import (
	"context"
	"errors"

	"github.com/antoniostano/tauntbot/internal/resolve"
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrTransportAcquisition wraps failures to obtain a voice connection.
	ErrTransportAcquisition = errors.New("voice transport acquisition failed")
	// ErrPlayback wraps failures after a connection was obtained.
	ErrPlayback = errors.New("playback failed")
)

// Transport opens voice connections.
type Transport interface {
	Open(ctx context.Context, target resolve.Target) (Connection, error)
}

// Connection is one acquired voice connection.
type Connection interface {
	// Play starts streaming the asset. The returned channel yields one value
	// (nil at end of stream) or is closed when the audio source goes idle.
	Play(ctx context.Context, assetPath string) (<-chan error, error)
	Release() error
}

// Request is a validated playback request.
type Request struct {
	Target    resolve.Target
	Clip      int
	AssetPath string
}
