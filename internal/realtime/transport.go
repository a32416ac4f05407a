package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opspulse/pulsefeed/internal/model"
)

// Conn is an open connection to the relay.
type Conn interface {
	// ReadMessage blocks until the next raw frame arrives.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one raw frame. Safe for concurrent use.
	WriteMessage(data []byte) error
	// Close tears the connection down; a blocked ReadMessage returns an error.
	Close() error
}

// Transport opens connections. The production implementation dials a
// websocket; tests substitute a scripted fake.
type Transport interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// WebsocketTransport dials the relay over a websocket, attaching the bearer
// token as an Authorization header.
type WebsocketTransport struct {
	// HandshakeTimeout bounds the dial. Zero means 10s.
	HandshakeTimeout time.Duration
}

// Dial opens a websocket connection to the given URL.
func (t *WebsocketTransport) Dial(ctx context.Context, url, token string) (Conn, error) {
	timeout := t.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("dial %s: %w", url, model.ErrUnauthorized)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newWSConn(conn), nil
}

// wsConn adapts a gorilla connection to the Conn interface. Gorilla permits
// only one concurrent writer, so writes are serialized with a mutex.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
