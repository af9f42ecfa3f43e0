package relay

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/websocket"

	"parrhesia/internal/domain"
)

// WSTransport is the ordered bidirectional frame stream to one room.
type WSTransport struct {
	ws *websocket.Conn
}

var _ domain.Transport = (*WSTransport)(nil)

// Dial connects to base's websocket endpoint for room. base is the
// relay's HTTP URL; the scheme is rewritten for the socket.
func Dial(ctx context.Context, base string, room domain.RoomID) (*WSTransport, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/" + url.PathEscape(room.String())

	cfg, err := websocket.NewConfig(u.String(), base)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		cfg.Dialer = &net.Dialer{Deadline: deadline}
	}
	ws, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}
	return &WSTransport{ws: ws}, nil
}

// Send writes one JSON frame.
func (t *WSTransport) Send(ctx context.Context, f domain.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		t.ws.SetWriteDeadline(deadline)
	} else {
		t.ws.SetWriteDeadline(time.Time{})
	}
	return websocket.JSON.Send(t.ws, f)
}

// Receive blocks for the next JSON frame.
func (t *WSTransport) Receive(ctx context.Context) (domain.Frame, error) {
	var f domain.Frame
	if err := ctx.Err(); err != nil {
		return f, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		t.ws.SetReadDeadline(deadline)
	} else {
		t.ws.SetReadDeadline(time.Time{})
	}
	if err := websocket.JSON.Receive(t.ws, &f); err != nil {
		return f, err
	}
	return f, nil
}

// Close tears the stream down.
func (t *WSTransport) Close() error { return t.ws.Close() }
