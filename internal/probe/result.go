package probe

import (
	"fmt"
	"time"
)

// Result is the outcome of one round-trip.
type Result struct {
	Seq  int
	Sent int
	Data []byte
	// Closed is set when the peer shut the stream down in order; Data is empty.
	Closed bool
	Match  bool
	RTT    time.Duration
	Err    error
}

// OK reports a completed echo that was neither a failure nor a peer shutdown.
func (r Result) OK() bool {
	return r.Err == nil && !r.Closed
}

func (r Result) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("#%d failed: %v", r.Seq, r.Err)
	case r.Closed:
		return fmt.Sprintf("#%d peer closed the connection", r.Seq)
	default:
		return fmt.Sprintf("#%d received %d bytes in %s (match=%t): %q", r.Seq, len(r.Data), r.RTT, r.Match, r.Data)
	}
}

// Decision is returned by a ResultHandler.
type Decision int

const (
	Continue Decision = iota
	Stop
)

// ResultHandler receives every Result produced by RunLoop, in order.
type ResultHandler func(Result) Decision

// StopReason tells why a probe session ended.
type StopReason string

const (
	StopLimit      StopReason = "limit"
	StopCallback   StopReason = "callback"
	StopCancelled  StopReason = "cancelled"
	StopPeerClosed StopReason = "peer_closed"
	StopError      StopReason = "error"
)
