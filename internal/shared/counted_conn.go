package shared

import (
	"net"
	"sync/atomic"

	"echoprobe/internal/shared/types"
)

// CountedConn wraps a net.Conn and atomically counts uplink and downlink
// bytes. Close is forwarded to the underlying connection only once.
type CountedConn struct {
	net.Conn
	uplink   *atomic.Uint64
	downlink *atomic.Uint64
	closed   atomic.Bool
}

// NewCountedConn wraps conn. Nil counters are replaced with private ones so a
// caller that only wants Traffic() does not have to allocate them.
func NewCountedConn(conn net.Conn, uplink, downlink *atomic.Uint64) *CountedConn {
	if uplink == nil {
		uplink = new(atomic.Uint64)
	}
	if downlink == nil {
		downlink = new(atomic.Uint64)
	}
	return &CountedConn{
		Conn:     conn,
		uplink:   uplink,
		downlink: downlink,
	}
}

// Read reads from the underlying connection and adds to the downlink counter.
func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.downlink.Add(uint64(n))
	}
	return n, err
}

// Write writes to the underlying connection and adds to the uplink counter.
func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.uplink.Add(uint64(n))
	}
	return n, err
}

// Close closes the underlying connection. Later calls return net.ErrClosed.
func (c *CountedConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return net.ErrClosed
	}
	return c.Conn.Close()
}

// Closed reports whether Close has been called.
func (c *CountedConn) Closed() bool {
	return c.closed.Load()
}

// Traffic returns a snapshot of the counters.
func (c *CountedConn) Traffic() types.TrafficStats {
	return types.TrafficStats{
		Uplink:   c.uplink.Load(),
		Downlink: c.downlink.Load(),
	}
}
