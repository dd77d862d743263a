package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"
)

// SocketOptions are applied to the socket before connect.
type SocketOptions struct {
	Mark        int           // SO_MARK, Linux only, needs CAP_NET_ADMIN
	UserTimeout time.Duration // TCP_USER_TIMEOUT, Linux only
}

// TCPDialer is the plain TCP carrier and the base of every other carrier.
type TCPDialer struct {
	net.Dialer
}

func NewTCPDialer(opts SocketOptions) *TCPDialer {
	d := &TCPDialer{}
	d.Control = func(network, address string, c syscall.RawConn) error {
		var sockErr error
		if err := c.Control(func(fd uintptr) {
			sockErr = applySocketOptions(fd, opts)
		}); err != nil {
			return err
		}
		return sockErr
	}
	return d
}

func (d *TCPDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("tcp dial failed: %w", err)
	}
	return conn, nil
}
