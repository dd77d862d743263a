package echoserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/xtaci/smux"

	"echoprobe/internal/probe/transport"
	"echoprobe/internal/shared/logger"
)

// Mode selects how the server frames the echoed bytes.
type Mode string

const (
	ModeTCP Mode = "tcp"
	ModeWS  Mode = "ws"
	ModeMux Mode = "mux"
)

// ParseMode accepts the names used in configuration files.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTCP, "":
		return ModeTCP, nil
	case ModeWS:
		return ModeWS, nil
	case ModeMux:
		return ModeMux, nil
	default:
		return "", fmt.Errorf("unknown echo server mode '%s'", s)
	}
}

// Options configure a Server.
type Options struct {
	Mode   Mode
	WSPath string
	// CloseAfter shuts the connection down in order after that many echoes.
	// Zero means never.
	CloseAfter int
	BufferSize int
}

// Server echoes every byte it receives back to the sender.
type Server struct {
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	ln       net.Listener
	conns    map[io.Closer]struct{}
	httpSrv  *http.Server
	closed   bool
	wg       sync.WaitGroup
	accepted atomic.Int64
}

func New(opts Options) *Server {
	if opts.Mode == "" {
		opts.Mode = ModeTCP
	}
	if opts.WSPath == "" {
		opts.WSPath = "/echo"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 32 * 1024
	}
	return &Server{
		opts:   opts,
		logger: logger.WithComponent("EchoServer").With().Str("mode", string(opts.Mode)).Logger(),
		conns:  make(map[io.Closer]struct{}),
	}
}

// Start listens on addr and serves in the background until ctx is done or
// Close is called. The returned server is already accepting connections.
func Start(ctx context.Context, addr string, opts Options) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("echo server failed to listen on %s: %w", addr, err)
	}
	s := New(opts)
	s.setListener(ln)
	go func() {
		if err := s.Serve(ctx, ln); err != nil {
			s.logger.Error().Err(err).Msg("Echo server stopped with an error.")
		}
	}()
	return s, nil
}

// ListenAndServe blocks until ctx is done or Close is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("echo server failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.setListener(ln) {
		ln.Close()
		return net.ErrClosed
	}
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Echo server listening.")

	if s.opts.Mode == ModeWS {
		return s.serveWS(ln)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		s.accepted.Add(1)
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go func() {
			defer s.untrack(conn)
			if s.opts.Mode == ModeMux {
				s.handleMux(conn)
			} else {
				s.handleTCP(conn)
			}
		}()
	}
}

func (s *Server) setListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ln = ln
	return true
}

// Addr is the listening address, or nil before Serve/Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Accepted counts the TCP connections accepted so far.
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Close stops the listener, closes every live connection and waits for the
// handlers to return. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Close()
	} else if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Echo server stopped.")
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(c io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c io.Closer) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.Close()
	s.wg.Done()
}

// echo copies reads back to rw until EOF, an error, or CloseAfter echoes.
// It reports whether the CloseAfter limit was hit.
func (s *Server) echo(rw io.ReadWriter, l zerolog.Logger) bool {
	buf := make([]byte, s.opts.BufferSize)
	echoes := 0
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			if _, werr := rw.Write(buf[:n]); werr != nil {
				l.Debug().Err(werr).Msg("Echo write failed.")
				return false
			}
			echoes++
			if s.opts.CloseAfter > 0 && echoes >= s.opts.CloseAfter {
				l.Debug().Int("echoes", echoes).Msg("Echo limit reached, shutting the connection down.")
				return true
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				l.Debug().Err(err).Msg("Echo read failed.")
			}
			return false
		}
	}
}

func (s *Server) handleTCP(conn net.Conn) {
	l := s.logger.With().Str("conn_id", uuid.NewString()).Str("remote_addr", conn.RemoteAddr().String()).Logger()
	l.Debug().Msg("Connection accepted.")

	if s.echo(conn, l) {
		// Half-close so the client reads EOF, then drain until it hangs up.
		if tc, ok := conn.(interface{ CloseWrite() error }); ok {
			tc.CloseWrite()
			io.Copy(io.Discard, conn)
		}
	}
	l.Debug().Msg("Connection finished.")
}

func (s *Server) handleMux(conn net.Conn) {
	l := s.logger.With().Str("session_id", uuid.NewString()).Str("remote_addr", conn.RemoteAddr().String()).Logger()
	session, err := smux.Server(conn, transport.DefaultMuxConfig())
	if err != nil {
		l.Error().Err(err).Msg("smux server session creation failed.")
		return
	}
	var streams sync.WaitGroup
	defer streams.Wait()
	defer session.Close()
	for {
		stream, err := session.AcceptStream()
		if err != nil {
			if !session.IsClosed() {
				l.Debug().Err(err).Msg("smux accept stream failed.")
			}
			return
		}
		streams.Add(1)
		go func() {
			defer streams.Done()
			defer stream.Close()
			s.echo(stream, l.With().Uint32("stream_id", stream.ID()).Logger())
		}()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) serveWS(ln net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.WSPath, s.handleWS)
	srv := &http.Server{Handler: mux}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.httpSrv = srv
	s.mu.Unlock()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket echo server failed: %w", err)
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade websocket.")
		return
	}
	s.accepted.Add(1)
	if !s.track(ws) {
		ws.Close()
		return
	}
	defer s.untrack(ws)

	l := s.logger.With().Str("conn_id", uuid.NewString()).Str("remote_addr", ws.RemoteAddr().String()).Logger()
	l.Debug().Msg("WebSocket client connected.")

	echoes := 0
	for {
		msgType, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Debug().Err(err).Msg("Unexpected websocket close error.")
			}
			return
		}
		if s.opts.CloseAfter > 0 && echoes >= s.opts.CloseAfter {
			// Already sent our close frame; wait for the peer's reply.
			continue
		}
		if err := ws.WriteMessage(msgType, msg); err != nil {
			l.Debug().Err(err).Msg("Echo write failed.")
			return
		}
		echoes++
		if s.opts.CloseAfter > 0 && echoes >= s.opts.CloseAfter {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "echo limit reached")
			if err := ws.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
				return
			}
		}
	}
}
