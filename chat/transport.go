package chat

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// Socket is a live realtime connection carrying JSON frames
type Socket interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a Socket authenticated with the given bearer token
type Dialer interface {
	Dial(ctx context.Context, socketURL, token string) (Socket, error)
}

// WebsocketDialer dials the chat namespace with gorilla/websocket, passing the
// token in the handshake query
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

// Dial implements Dialer
func (d WebsocketDialer) Dial(ctx context.Context, socketURL, token string) (Socket, error) {
	u, err := url.Parse(socketURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Host, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return conn, nil
}
