package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/xtaci/smux"
)

// DefaultMuxConfig is shared by the mux carrier and the mux echo server.
func DefaultMuxConfig() *smux.Config {
	cfg := smux.DefaultConfig()
	cfg.Version = 2
	cfg.KeepAliveInterval = 10 * time.Second
	cfg.KeepAliveTimeout = 30 * time.Second
	return cfg
}

// MuxDialer opens one smux stream per dial, each on its own session.
type MuxDialer struct {
	base   *TCPDialer
	config *smux.Config
}

func NewMuxDialer(base *TCPDialer, config *smux.Config) *MuxDialer {
	if config == nil {
		config = DefaultMuxConfig()
	}
	return &MuxDialer{base: base, config: config}
}

func (d *MuxDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if err := smux.VerifyConfig(d.config); err != nil {
		return nil, fmt.Errorf("invalid smux config: %w", err)
	}
	conn, err := d.base.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	session, err := smux.Client(conn, d.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smux client session creation failed: %w", err)
	}
	stream, err := session.OpenStream()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("smux stream open failed: %w", err)
	}
	return &muxConn{Stream: stream, session: session}, nil
}

// muxConn closes its session together with the stream.
type muxConn struct {
	*smux.Stream
	session *smux.Session
}

func (c *muxConn) Close() error {
	err := c.Stream.Close()
	if serr := c.session.Close(); err == nil {
		err = serr
	}
	return err
}
