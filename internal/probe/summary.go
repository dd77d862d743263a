package probe

import (
	"time"

	"github.com/montanaflynn/stats"

	"echoprobe/internal/shared/types"
)

// RTTStats aggregates round-trip times in milliseconds over successful echoes.
type RTTStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	StdDev float64 `json:"stddev"`
}

// Summary describes one probe session. It is also the JSON report format.
type Summary struct {
	SessionID     string     `json:"session_id"`
	Endpoint      string     `json:"endpoint"`
	Transport     string     `json:"transport"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
	Attempts      int        `json:"attempts"`
	Successes     int        `json:"successes"`
	Failures      int        `json:"failures"`
	Mismatches    int        `json:"mismatches"`
	PeerClosed    bool       `json:"peer_closed"`
	BytesSent     uint64     `json:"bytes_sent"`
	BytesReceived uint64     `json:"bytes_received"`
	RTT           RTTStats   `json:"rtt_ms"`
	StopReason    StopReason `json:"stop_reason"`
	Error         string     `json:"error,omitempty"`
}

// recorder accumulates results into a Summary.
type recorder struct {
	summary Summary
	rtts    stats.Float64Data
}

func newRecorder(sessionID, endpoint, transport string) *recorder {
	return &recorder{
		summary: Summary{
			SessionID: sessionID,
			Endpoint:  endpoint,
			Transport: transport,
			StartedAt: time.Now().UTC(),
		},
	}
}

func (r *recorder) add(res Result) {
	r.summary.Attempts++
	switch {
	case res.Err != nil:
		r.summary.Failures++
	case res.Closed:
		r.summary.PeerClosed = true
	default:
		r.summary.Successes++
		if !res.Match {
			r.summary.Mismatches++
		}
		r.rtts = append(r.rtts, float64(res.RTT)/float64(time.Millisecond))
	}
}

func (r *recorder) finish(reason StopReason, traffic types.TrafficStats, err error) *Summary {
	r.summary.FinishedAt = time.Now().UTC()
	r.summary.StopReason = reason
	r.summary.BytesSent = traffic.Uplink
	r.summary.BytesReceived = traffic.Downlink
	if err != nil {
		r.summary.Error = err.Error()
	}
	r.summary.RTT = aggregate(r.rtts)
	out := r.summary
	return &out
}

// aggregate ignores stats errors: they only occur for empty input, which
// leaves every field at zero.
func aggregate(data stats.Float64Data) RTTStats {
	if len(data) == 0 {
		return RTTStats{}
	}
	var s RTTStats
	s.Min, _ = stats.Min(data)
	s.Max, _ = stats.Max(data)
	s.Mean, _ = stats.Mean(data)
	s.Median, _ = stats.Median(data)
	s.P95, _ = stats.Percentile(data, 95)
	s.StdDev, _ = stats.StandardDeviation(data)
	return s
}
