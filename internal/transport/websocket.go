package transport

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
)

// WebSocketSink sends every frame as one binary message
type WebSocketSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWebSocket connects to url
func DialWebSocket(ctx context.Context, url string) (*WebSocketSink, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrTransportDial, err)
	}

	return &WebSocketSink{conn: conn}, nil
}

func (s *WebSocketSink) Write(f frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.New().Wrap(errors.ErrTransportWrite, err)
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, f); err != nil {
		return errors.New().Wrap(errors.ErrTransportWrite, err)
	}

	return nil
}

// Close sends a close message and closes the connection
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))

	return s.conn.Close()
}
