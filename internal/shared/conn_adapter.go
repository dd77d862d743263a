package shared

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConnAdapter exposes a websocket connection as a byte stream.
// Every Write becomes one binary message; Read drains buffered message
// bytes before pulling the next message. A normal close from the peer is
// reported as io.EOF so callers see it as an orderly shutdown.
type WebSocketConnAdapter struct {
	*websocket.Conn
	readBuffer lockedBuffer
}

// NewWebSocketConnAdapter wraps an established websocket connection.
func NewWebSocketConnAdapter(ws *websocket.Conn) net.Conn {
	return &WebSocketConnAdapter{Conn: ws}
}

// Read implements io.Reader.
func (wsc *WebSocketConnAdapter) Read(b []byte) (int, error) {
	for wsc.readBuffer.Len() == 0 {
		msgType, msg, err := wsc.Conn.ReadMessage()
		if err != nil {
			return 0, mapCloseError(err)
		}
		if msgType != websocket.BinaryMessage {
			return 0, errors.New("received non-binary websocket message")
		}
		wsc.readBuffer.Write(msg)
	}
	return wsc.readBuffer.Read(b)
}

// Write implements io.Writer.
func (wsc *WebSocketConnAdapter) Write(b []byte) (int, error) {
	if err := wsc.Conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, mapCloseError(err)
	}
	return len(b), nil
}

func (wsc *WebSocketConnAdapter) Close() error         { return wsc.Conn.Close() }
func (wsc *WebSocketConnAdapter) LocalAddr() net.Addr  { return wsc.Conn.LocalAddr() }
func (wsc *WebSocketConnAdapter) RemoteAddr() net.Addr { return wsc.Conn.RemoteAddr() }
func (wsc *WebSocketConnAdapter) SetDeadline(t time.Time) error {
	if err := wsc.Conn.SetReadDeadline(t); err != nil {
		return err
	}
	return wsc.Conn.SetWriteDeadline(t)
}
func (wsc *WebSocketConnAdapter) SetReadDeadline(t time.Time) error {
	return wsc.Conn.SetReadDeadline(t)
}
func (wsc *WebSocketConnAdapter) SetWriteDeadline(t time.Time) error {
	return wsc.Conn.SetWriteDeadline(t)
}

func mapCloseError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent) {
		return io.EOF
	}
	return err
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Read(p)
}

func (l *lockedBuffer) Write(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.b.Write(p)
}

func (l *lockedBuffer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Len()
}
