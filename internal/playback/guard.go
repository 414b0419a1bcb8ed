package playback

import (
	"context"
	"errors"

	"github.com/antoniostano/tauntbot/internal/reliability"
	"github.com/antoniostano/tauntbot/internal/resolve"
)

// Guard wraps a Transport so that Open fails fast while the breaker is open.
func Guard(next Transport, breaker *reliability.Breaker) Transport {
	return &guardedTransport{next: next, breaker: breaker}
}

type guardedTransport struct {
	next    Transport
	breaker *reliability.Breaker
}

func (g *guardedTransport) Open(ctx context.Context, target resolve.Target) (Connection, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.next.Open(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	conn, ok := out.(Connection)
	if !ok || conn == nil {
		return nil, errors.New("transport returned no connection")
	}
	return conn, nil
}
