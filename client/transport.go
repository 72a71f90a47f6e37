package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const transportWriteWait = 10 * time.Second

// Transport is one live connection to the gateway.
type Transport interface {
	Send(payload []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer establishes transports. The reconnection controller calls it
// once per attempt.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// WebsocketDialer dials the gateway over a gorilla websocket, passing
// the auth token as a query parameter.
type WebsocketDialer struct {
	URL   string
	Token string
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context) (Transport, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid gateway URL: %w", err)
	}
	if d.Token != "" {
		q := u.Query()
		q.Set("token", d.Token)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("client: dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("client: dial failed: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (t *wsTransport) Send(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(transportWriteWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
