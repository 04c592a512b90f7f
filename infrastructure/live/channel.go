// Package live is the persistent WebSocket channel of a chat participant.
package live

import (
	"bkalan/contract"
	"bkalan/domain/event"
	"bkalan/errors"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPath = "/api/chat/ws/"
	// Used when no positive write timeout is configured.
	defaultWriteTimeout = 10 * time.Second
)

type Dialer struct {
	log          *slog.Logger
	baseURL      string
	dialer       *websocket.Dialer
	writeTimeout time.Duration
}

// NewDialer derives the WebSocket base from the HTTP base of the chat
// service: http becomes ws and https becomes wss. A writeTimeout <= 0 means
// defaultWriteTimeout.
func NewDialer(log *slog.Logger, serverURL string, writeTimeout time.Duration) (*Dialer, error) {
	base, err := WebSocketBase(serverURL)
	if err != nil {
		return nil, err
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Dialer{
		log:          log,
		baseURL:      base,
		dialer:       &websocket.Dialer{Proxy: websocket.DefaultDialer.Proxy, HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout},
		writeTimeout: writeTimeout,
	}, nil
}

func WebSocketBase(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported chat server scheme %q", u.Scheme)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// Endpoint is the live address of one participant, the display name is
// escaped as a single path segment.
func (d *Dialer) Endpoint(displayName string) string {
	return d.baseURL + wsPath + url.PathEscape(displayName)
}

// Dial completes the WebSocket handshake within ctx. Any failure before the
// channel is open is reported as ErrTransportUnavailable.
func (d *Dialer) Dial(ctx context.Context, displayName string) (contract.LiveChannel, error) {
	endpoint := d.Endpoint(displayName)
	conn, resp, err := d.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errors.ErrTransportUnavailable, endpoint, err)
	}
	d.log.Debug("Live channel open", "endpoint", endpoint)
	return newChannel(d.log, conn, d.writeTimeout), nil
}

// Channel wraps one open connection. Receive must be called from a single
// goroutine, Send and Close are safe for concurrent use.
type Channel struct {
	log          *slog.Logger
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
	closeOnce    sync.Once
}

func newChannel(log *slog.Logger, conn *websocket.Conn, writeTimeout time.Duration) *Channel {
	return &Channel{log: log, conn: conn, writeTimeout: writeTimeout}
}

// Receive returns the next decodable frame. Frames that are not JSON objects
// are skipped, unknown types are returned and left to the caller.
func (c *Channel) Receive() (event.Frame, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return event.Frame{}, err
		}
		frame, err := event.DecodeFrame(data)
		if err != nil {
			c.log.Debug("Ignoring undecodable frame", "error", err)
			continue
		}
		return frame, nil
	}
}

func (c *Channel) Send(body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event.OutboundFrame{Message: body})
}

// Close sends a close frame and releases the connection. Calling it again is
// a no-op.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(c.writeTimeout))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
