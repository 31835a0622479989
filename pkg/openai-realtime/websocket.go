package openairealtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketDialer carries the events channel over a WebSocket instead of a
// peer connection. There is no audio track; audio travels as events.
type WebSocketDialer struct {
	// Client provides the WebSocket URL and account headers. Required.
	Client *Client

	// Model is the model ID. Default: DefaultModel.
	Model string
}

// websocketConn is a WebSocket-based events channel.
type websocketConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, credential string, h Handlers) (Conn, error) {
	model := d.Model
	if model == "" {
		model = DefaultModel
	}
	cfg := d.Client.config

	// Build WebSocket URL with model query parameter
	endpoint := fmt.Sprintf("%s?model=%s", cfg.wsURL, url.QueryEscape(model))

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+credential)
	headers.Set("OpenAI-Beta", "realtime=v1")
	d.Client.setAccountHeaders(headers)

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.httpClient.Timeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("openai-realtime: failed to connect: %w", err)
	}

	c := &websocketConn{
		conn:   conn,
		closed: make(chan struct{}),
	}

	// The socket is usable right away; report it open from the reader so no
	// handler runs before Dial returns.
	go func() {
		h.open()
		c.readLoop(h)
	}()

	return c, nil
}

// readLoop delivers messages until the socket fails or is closed.
func (c *websocketConn) readLoop(h Handlers) {
	defer h.close()
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				slog.Debug("websocket read ended", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			slog.Debug("received message", "len", len(data), "content", truncate(string(data), 1000))
		}
		h.message(data)
	}
}

// Send implements Conn.
func (c *websocketConn) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("sending event", "content", truncate(string(data), 500))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close implements Conn.
func (c *websocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
