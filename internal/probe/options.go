package probe

import (
	"errors"
	"time"

	"echoprobe/internal/shared/types"
)

// Options configure a Probe. Use DefaultOptions and override fields.
type Options struct {
	Payload        []byte
	BufferSize     int
	IterationLimit int
	// Unbounded must be set explicitly to run without an iteration limit.
	// A non-zero IterationLimit always wins.
	Unbounded      bool
	Interval       time.Duration
	ConnectTimeout time.Duration
	IOTimeout      time.Duration
	// Transport is the carrier name, used in logs and the Summary only.
	Transport string
}

// DefaultOptions mirrors the defaults of types.DefaultConfig. IterationLimit
// is left at zero: the caller has to choose a limit or opt into Unbounded.
func DefaultOptions() Options {
	return Options{
		Payload:        []byte(types.DefaultPayload),
		BufferSize:     types.DefaultBufferSize,
		ConnectTimeout: types.DefaultConnectTimeoutMs * time.Millisecond,
		IOTimeout:      types.DefaultIOTimeoutMs * time.Millisecond,
		Transport:      types.DefaultTransport,
	}
}

// OptionsFromConfig converts the INI probe section.
func OptionsFromConfig(pc types.ProbeConf, tc types.TransportConf) Options {
	opts := DefaultOptions()
	if pc.Payload != "" {
		opts.Payload = []byte(pc.Payload)
	}
	if pc.BufferSize > 0 {
		opts.BufferSize = pc.BufferSize
	}
	opts.IterationLimit = pc.IterationLimit
	opts.Unbounded = pc.Unbounded
	opts.Interval = time.Duration(pc.IntervalMs) * time.Millisecond
	opts.ConnectTimeout = time.Duration(pc.ConnectTimeoutMs) * time.Millisecond
	opts.IOTimeout = time.Duration(pc.IOTimeoutMs) * time.Millisecond
	if tc.Type != "" {
		opts.Transport = tc.Type
	}
	return opts
}

func (o Options) validate() error {
	switch {
	case len(o.Payload) == 0:
		return errors.New("probe payload must not be empty")
	case o.BufferSize <= 0:
		return errors.New("probe buffer size must be positive")
	case o.IterationLimit < 0:
		return errors.New("probe iteration limit must not be negative")
	case o.IterationLimit == 0 && !o.Unbounded:
		return errors.New("probe iteration limit is 0 and Unbounded is not set")
	case o.Interval < 0 || o.ConnectTimeout < 0 || o.IOTimeout < 0:
		return errors.New("probe durations must not be negative")
	}
	return nil
}
