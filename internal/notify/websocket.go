package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// envelope is the frame written for every notification.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WebSocketDialer connects to the dashboard relay over WebSocket and
// authenticates with a shared secret.
type WebSocketDialer struct {
	// URL of the relay; http(s) and ws(s) schemes are accepted.
	URL    string
	Secret string
	// HTTPClient is used for the handshake; nil means http.DefaultClient.
	HTTPClient *http.Client
}

func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if d.Secret != "" {
		header.Set("Authorization", "Bearer "+d.Secret)
	}

	c, _, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial notification relay %s: %w", d.URL, err)
	}

	// Nothing is expected from the relay. CloseRead keeps control frames
	// flowing and cancels closed once the peer goes away.
	closed := c.CloseRead(context.Background())
	return &wsConn{conn: c, closed: closed}, nil
}

type wsConn struct {
	conn   *websocket.Conn
	closed context.Context
}

func (c *wsConn) Emit(ctx context.Context, channel string, payload []byte) error {
	if c.closed.Err() != nil {
		return ErrClosed
	}
	frame, err := json.Marshal(envelope{Event: channel, Data: payload})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write %s: %w", channel, err)
	}
	return nil
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
