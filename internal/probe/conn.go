package probe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"echoprobe/internal/shared"
	"echoprobe/internal/shared/types"
)

// aLongTimeAgo is a non-zero time in the past, used to unblock pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// Conn is the single connection owned by a probe session.
type Conn struct {
	id        string
	endpoint  Endpoint
	raw       *shared.CountedConn
	ioTimeout time.Duration
	logger    zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (c *Conn) ID() string                  { return c.id }
func (c *Conn) Endpoint() Endpoint          { return c.endpoint }
func (c *Conn) Traffic() types.TrafficStats { return c.raw.Traffic() }

// SendAndReceive writes payload in full and performs a single read of up to
// bufferSize bytes. An orderly shutdown by the peer yields an empty Data with
// Closed set and no error.
func (c *Conn) SendAndReceive(payload []byte, bufferSize int) Result {
	return c.roundTrip(context.Background(), payload, bufferSize)
}

func (c *Conn) roundTrip(ctx context.Context, payload []byte, bufferSize int) Result {
	res := Result{}
	if bufferSize <= 0 {
		bufferSize = types.DefaultBufferSize
	}
	addr := c.endpoint.String()

	var deadline time.Time
	if c.ioTimeout > 0 {
		deadline = time.Now().Add(c.ioTimeout)
	}
	if err := c.raw.SetDeadline(deadline); err != nil {
		res.Err = newError(ctx, KindSend, "set_deadline", addr, err)
		return res
	}
	// A cancellation that raced the SetDeadline above would otherwise be lost.
	if err := ctx.Err(); err != nil {
		res.Err = newError(ctx, KindCancelled, "write", addr, err)
		return res
	}

	start := time.Now()
	n, err := writeFull(c.raw, payload)
	res.Sent = n
	if err != nil {
		if errors.Is(err, io.EOF) {
			res.Closed = true
			res.RTT = time.Since(start)
			return res
		}
		res.Err = newError(ctx, KindSend, "write", addr, err)
		return res
	}

	buf := make([]byte, bufferSize)
	n, err = c.raw.Read(buf)
	res.RTT = time.Since(start)
	res.Data = buf[:n:n]
	if n > 0 {
		// Data that arrived together with EOF is still a valid echo;
		// the next read reports the shutdown.
		res.Match = bytes.Equal(res.Data, payload)
		return res
	}
	if err == nil || errors.Is(err, io.EOF) {
		res.Closed = true
		return res
	}
	res.Err = newError(ctx, KindReceive, "read", addr, err)
	return res
}

// interrupt unblocks any pending read or write.
func (c *Conn) interrupt() {
	_ = c.raw.SetDeadline(aLongTimeAgo)
}

// Close releases the socket. Only the first call reaches the transport.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
		traffic := c.raw.Traffic()
		c.logger.Info().
			Str("conn_id", c.id).
			Uint64("bytes_sent", traffic.Uplink).
			Uint64("bytes_received", traffic.Downlink).
			Msg("Probe connection closed.")
	})
	return c.closeErr
}

func writeFull(w io.Writer, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := w.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
