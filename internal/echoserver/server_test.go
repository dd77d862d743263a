package echoserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/smux"

	"echoprobe/internal/probe/transport"
)

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := Start(ctx, "127.0.0.1:0", opts)
	if err != nil {
		cancel()
		t.Fatalf("Start() returned an error: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeTCP, "tcp": ModeTCP, "ws": ModeWS, "mux": ModeMux} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("udp"); err == nil {
		t.Error("Expected an error for an unknown mode")
	}
}

func TestServer_TCPEcho(t *testing.T) {
	srv := startServer(t, Options{Mode: ModeTCP})

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	for _, msg := range []string{"ping", "a somewhat longer message"} {
		if _, err := conn.Write([]byte(msg)); err != nil {
			t.Fatalf("Write() returned an error: %v", err)
		}
		buf := make([]byte, len(msg))
		if _, err := io.ReadFull(conn, buf); err != nil {
			t.Fatalf("ReadFull() returned an error: %v", err)
		}
		if string(buf) != msg {
			t.Errorf("Expected echo '%s', got '%s'", msg, buf)
		}
	}
	if srv.Accepted() != 1 {
		t.Errorf("Expected 1 accepted connection, got %d", srv.Accepted())
	}
}

func TestServer_TCPCloseAfterHalfCloses(t *testing.T) {
	srv := startServer(t, Options{Mode: ModeTCP, CloseAfter: 1})

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	conn.Write([]byte("one"))
	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll() returned an error: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("Expected a single echo before EOF, got '%s'", got)
	}
	// The server still drains, so a late write must not fail.
	if _, err := conn.Write([]byte("two")); err != nil {
		t.Errorf("Write() after half-close returned an error: %v", err)
	}
}

func TestServer_WSEcho(t *testing.T) {
	srv := startServer(t, Options{Mode: ModeWS, WSPath: "/echo"})

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr().String()+"/echo", nil)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("ping")); err != nil {
		t.Fatalf("WriteMessage() returned an error: %v", err)
	}
	msgType, msg, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() returned an error: %v", err)
	}
	if msgType != websocket.BinaryMessage || string(msg) != "ping" {
		t.Errorf("Expected binary 'ping', got type %d '%s'", msgType, msg)
	}
}

func TestServer_MuxEcho(t *testing.T) {
	srv := startServer(t, Options{Mode: ModeMux})

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	session, err := smux.Client(conn, transport.DefaultMuxConfig())
	if err != nil {
		t.Fatalf("smux.Client() returned an error: %v", err)
	}
	defer session.Close()

	for i := 0; i < 2; i++ {
		stream, err := session.OpenStream()
		if err != nil {
			t.Fatalf("OpenStream() returned an error: %v", err)
		}
		stream.SetDeadline(time.Now().Add(2 * time.Second))
		payload := bytes.Repeat([]byte{byte('a' + i)}, 16)
		stream.Write(payload)
		buf := make([]byte, len(payload))
		if _, err := io.ReadFull(stream, buf); err != nil {
			t.Fatalf("ReadFull() on stream %d returned an error: %v", i, err)
		}
		if !bytes.Equal(buf, payload) {
			t.Errorf("Stream %d: expected '%s', got '%s'", i, payload, buf)
		}
		stream.Close()
	}
}

func TestServer_CloseStopsServeAndConnections(t *testing.T) {
	srv := New(Options{Mode: ModeTCP})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	defer conn.Close()
	conn.Write([]byte("x"))
	io.ReadFull(conn, make([]byte, 1))

	if err := srv.Close(); err != nil {
		t.Errorf("Close() returned an error: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Second Close() returned an error: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() returned an error after Close(): %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after Close()")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("Expected the live connection to be closed by the server")
	}
}

func TestServer_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(Options{Mode: ModeWS})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			t.Errorf("Serve() returned an error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after context cancellation")
	}
}
