package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Kind classifies a probe failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnect
	KindSend
	KindReceive
	KindTimeout
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect_error"
	case KindSend:
		return "send_error"
	case KindReceive:
		return "receive_error"
	case KindTimeout:
		return "timeout_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown_error"
	}
}

// Sentinels for errors.Is. A *Error matches the sentinel of its Kind.
var (
	ErrConnect   = errors.New("connect error")
	ErrSend      = errors.New("send error")
	ErrReceive   = errors.New("receive error")
	ErrTimeout   = errors.New("timeout error")
	ErrCancelled = errors.New("probe cancelled")
)

var sentinels = map[Kind]error{
	KindConnect:   ErrConnect,
	KindSend:      ErrSend,
	KindReceive:   ErrReceive,
	KindTimeout:   ErrTimeout,
	KindCancelled: ErrCancelled,
}

// Error is returned by every probe operation that fails.
type Error struct {
	Kind     Kind
	Op       string // connect, write, read, loop
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf extracts the Kind of err, or KindUnknown if err is not a *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// newError builds an *Error, promoting kind to KindCancelled when ctx was
// cancelled and to KindTimeout when the cause is a deadline.
func newError(ctx context.Context, kind Kind, op, endpoint string, err error) *Error {
	switch {
	case ctx != nil && errors.Is(ctx.Err(), context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case isTimeout(err):
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Endpoint: endpoint, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
