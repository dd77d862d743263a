package shared

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func newWSPeer(t *testing.T, handle func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handle(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnAdapter_ReadSpansMessages(t *testing.T) {
	url := newWSPeer(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.BinaryMessage, []byte("hello "))
		ws.WriteMessage(websocket.BinaryMessage, []byte{})
		ws.WriteMessage(websocket.BinaryMessage, []byte("world"))
		ws.ReadMessage()
	})

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	conn := NewWebSocketConnAdapter(ws)
	defer conn.Close()

	buf := make([]byte, len("hello world"))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("ReadFull() returned an error: %v", err)
	}
	if string(buf) != "hello world" {
		t.Errorf("Expected 'hello world', got '%s'", buf)
	}
}

func TestWebSocketConnAdapter_NormalCloseIsEOF(t *testing.T) {
	url := newWSPeer(t, func(ws *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		ws.WriteMessage(websocket.CloseMessage, msg)
		ws.ReadMessage()
	})

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	conn := NewWebSocketConnAdapter(ws)
	defer conn.Close()

	n, err := conn.Read(make([]byte, 16))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("Expected (0, io.EOF), got (%d, %v)", n, err)
	}
}

func TestWebSocketConnAdapter_RejectsTextMessages(t *testing.T) {
	url := newWSPeer(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.TextMessage, []byte("text"))
		ws.ReadMessage()
	})

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	conn := NewWebSocketConnAdapter(ws)
	defer conn.Close()

	if _, err := conn.Read(make([]byte, 16)); err == nil {
		t.Fatal("Expected an error for a text message")
	}
}
