package types

// TrafficStats reports the bytes moved over one probe connection.
type TrafficStats struct {
	Uplink   uint64 `json:"uplink"`
	Downlink uint64 `json:"downlink"`
}

// SessionState is the coarse lifecycle of a probe session as seen from outside.
type SessionState string

const (
	StateIdle     SessionState = "idle"
	StateRunning  SessionState = "running"
	StateFinished SessionState = "finished"
	StateFailed   SessionState = "failed"
)
