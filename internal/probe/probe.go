package probe

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"echoprobe/internal/shared"
	"echoprobe/internal/shared/logger"
	"echoprobe/internal/shared/types"
)

// Dialer opens the byte stream a probe runs over. *net.Dialer satisfies it,
// as do the carriers in the transport package.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Probe runs echo round-trips against a single endpoint. A Probe holds no
// connection itself; each Run owns exactly one Conn from Connect to Close.
type Probe struct {
	opts   Options
	dialer Dialer
	logger zerolog.Logger
}

// New validates opts and copies the payload. A nil dialer means plain TCP.
func New(opts Options, dialer Dialer) (*Probe, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.Payload = append([]byte(nil), opts.Payload...)
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &Probe{
		opts:   opts,
		dialer: dialer,
		logger: logger.WithComponent("EchoProbe"),
	}, nil
}

// Connect opens a stream to ep. On failure no connection is left open.
func (p *Probe) Connect(ctx context.Context, ep Endpoint) (*Conn, error) {
	addr := ep.String()
	dialCtx := ctx
	if p.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.opts.ConnectTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		perr := newError(ctx, KindConnect, "connect", addr, err)
		if perr.Kind == KindConnect && errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			perr.Kind = KindTimeout
		}
		p.logger.Error().Err(err).Str("endpoint", addr).Str("kind", perr.Kind.String()).Msg("Probe connect failed.")
		return nil, perr
	}

	conn := &Conn{
		id:        uuid.NewString(),
		endpoint:  ep,
		raw:       shared.NewCountedConn(raw, nil, nil),
		ioTimeout: p.opts.IOTimeout,
	}
	conn.logger = p.logger.With().Str("conn_id", conn.id).Str("endpoint", addr).Logger()
	conn.logger.Info().
		Str("transport", p.opts.Transport).
		Dur("connect_time", time.Since(start)).
		Msg("Probe connection established.")
	return conn, nil
}

// RunLoop repeats round-trips on conn and hands every Result to onResult.
// It stops when onResult returns Stop, the iteration limit is reached, the
// peer shuts down, a round-trip fails, or ctx is cancelled. Failures and
// cancellation are returned as *Error alongside the Summary. RunLoop does not
// close conn.
func (p *Probe) RunLoop(ctx context.Context, conn *Conn, onResult ResultHandler) (*Summary, error) {
	if conn == nil {
		return nil, errors.New("probe: RunLoop called with a nil connection")
	}
	if onResult == nil {
		onResult = func(Result) Decision { return Continue }
	}
	addr := conn.endpoint.String()
	rec := newRecorder(conn.id, addr, p.opts.Transport)

	stopWatch := context.AfterFunc(ctx, conn.interrupt)
	defer stopWatch()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for seq := 1; p.unlimited() || seq <= p.opts.IterationLimit; seq++ {
		if err := ctx.Err(); err != nil {
			perr := newError(ctx, KindCancelled, "loop", addr, err)
			return rec.finish(stopReasonFor(perr), conn.Traffic(), perr), perr
		}

		res := conn.roundTrip(ctx, p.opts.Payload, p.opts.BufferSize)
		res.Seq = seq
		rec.add(res)
		p.logResult(conn, res)
		decision := onResult(res)

		switch {
		case res.Err != nil:
			return rec.finish(stopReasonFor(res.Err), conn.Traffic(), res.Err), res.Err
		case res.Closed:
			return rec.finish(StopPeerClosed, conn.Traffic(), nil), nil
		case decision == Stop:
			return rec.finish(StopCallback, conn.Traffic(), nil), nil
		}

		if p.opts.Interval > 0 && (p.unlimited() || seq < p.opts.IterationLimit) {
			if timer == nil {
				timer = time.NewTimer(p.opts.Interval)
			} else {
				timer.Reset(p.opts.Interval)
			}
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
	}
	return rec.finish(StopLimit, conn.Traffic(), nil), nil
}

// Run is a complete probe session: Connect, RunLoop, Close. The connection
// is closed exactly once on every exit path.
func (p *Probe) Run(ctx context.Context, ep Endpoint, onResult ResultHandler) (summary *Summary, err error) {
	conn, err := p.Connect(ctx, ep)
	if err != nil {
		rec := newRecorder("", ep.String(), p.opts.Transport)
		return rec.finish(stopReasonFor(err), types.TrafficStats{}, err), err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			conn.logger.Warn().Err(cerr).Msg("Error closing probe connection.")
		}
	}()

	summary, err = p.RunLoop(ctx, conn, onResult)
	if summary != nil {
		conn.logger.Info().
			Str("stop_reason", string(summary.StopReason)).
			Int("attempts", summary.Attempts).
			Int("successes", summary.Successes).
			Int("mismatches", summary.Mismatches).
			Msg("Probe session finished.")
	}
	return summary, err
}

// unlimited reports whether the loop runs until stopped. Unbounded only
// applies when no iteration limit is set.
func (p *Probe) unlimited() bool {
	return p.opts.IterationLimit == 0
}

func stopReasonFor(err error) StopReason {
	if KindOf(err) == KindCancelled {
		return StopCancelled
	}
	return StopError
}

func (p *Probe) logResult(conn *Conn, res Result) {
	switch {
	case res.Err != nil:
		conn.logger.Error().Int("seq", res.Seq).Err(res.Err).Str("kind", KindOf(res.Err).String()).Msg("Round-trip failed.")
	case res.Closed:
		conn.logger.Info().Int("seq", res.Seq).Msg("Peer closed the connection.")
	default:
		conn.logger.Debug().
			Int("seq", res.Seq).
			Int("sent", res.Sent).
			Int("received", len(res.Data)).
			Bool("match", res.Match).
			Dur("rtt", res.RTT).
			Msg("Round-trip complete.")
	}
}
