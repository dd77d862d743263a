package mobile

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"

	"echoprobe/internal/probe"
	"echoprobe/internal/probe/transport"
	"echoprobe/internal/shared/config"
	"echoprobe/internal/shared/globalstate"
	"echoprobe/internal/shared/logger"
	"echoprobe/internal/shared/types"
)

var (
	// cancel for the probe session currently running for the mobile client.
	activeCancel  context.CancelFunc
	instanceMutex sync.Mutex
)

// StatusData is returned to the mobile client by GetStatus.
type StatusData struct {
	State  types.SessionState `json:"state"`
	Detail string             `json:"detail"`
}

// RunProbe runs one probe session and blocks until it ends.
// iniContent: the content of an echoprobe.ini file.
// It returns the session Summary as JSON. A failed session still returns
// its Summary together with the error.
func RunProbe(iniContent string) (summaryJson string, err error) {
	// Convert panics into errors, which is safer for CGo boundaries.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("go core panic: %v\n\n%s", r, debug.Stack())
			summaryJson = ""
			globalstate.GlobalStatus.Set(types.StateFailed, err.Error())
		}
	}()

	// 1. Parse iniContent
	cfg := types.DefaultConfig()
	if err := config.Load(cfg, []byte(iniContent)); err != nil {
		return "", fmt.Errorf("failed to parse ini content: %w", err)
	}

	// 2. Claim the single mobile session slot before touching the logger
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	instanceMutex.Lock()
	if !globalstate.GlobalStatus.TryStart() {
		instanceMutex.Unlock()
		return "", fmt.Errorf("a probe session is already running")
	}
	activeCancel = cancel
	if err := logger.Init(cfg.LogConf); err != nil {
		activeCancel = nil
		instanceMutex.Unlock()
		globalstate.GlobalStatus.Set(types.StateFailed, err.Error())
		return "", fmt.Errorf("failed to initialize logger: %w", err)
	}
	instanceMutex.Unlock()

	defer func() {
		instanceMutex.Lock()
		activeCancel = nil
		instanceMutex.Unlock()
	}()

	// 3. Build the probe
	p, ep, err := newProbe(cfg)
	if err != nil {
		globalstate.GlobalStatus.Set(types.StateFailed, err.Error())
		return "", err
	}

	logger.Debug().Str("endpoint", ep.String()).Msg("Starting probe session for mobile...")
	summary, runErr := p.Run(ctx, ep, nil)

	if runErr != nil {
		globalstate.GlobalStatus.Set(types.StateFailed, probe.KindOf(runErr).String())
	} else {
		globalstate.GlobalStatus.Set(types.StateFinished, string(summary.StopReason))
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}
	return string(data), runErr
}

// StopProbe cancels the running session, if any. RunProbe still returns
// its Summary.
func StopProbe() {
	instanceMutex.Lock()
	defer instanceMutex.Unlock()

	if activeCancel != nil {
		logger.Debug().Msg("Stopping probe session for mobile...")
		activeCancel()
	}
}

// GetStatus returns a JSON StatusData for the latest session.
func GetStatus() (statusJson string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("go core panic in GetStatus: %v", r)
			statusJson = "{}"
		}
	}()

	state, detail := globalstate.GlobalStatus.Get()
	data, err := json.Marshal(StatusData{State: state, Detail: detail})
	if err != nil {
		return "{}", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

func newProbe(cfg *types.Config) (*probe.Probe, probe.Endpoint, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, probe.Endpoint{}, fmt.Errorf("invalid configuration: %w", err)
	}
	ep, err := probe.NewEndpoint(cfg.ProbeConf.Host, uint16(cfg.ProbeConf.Port))
	if err != nil {
		return nil, probe.Endpoint{}, err
	}
	opts := probe.OptionsFromConfig(cfg.ProbeConf, cfg.TransportConf)
	dialer, err := transport.New(cfg.TransportConf, opts.IOTimeout)
	if err != nil {
		return nil, probe.Endpoint{}, err
	}
	p, err := probe.New(opts, dialer)
	if err != nil {
		return nil, probe.Endpoint{}, err
	}
	return p, ep, nil
}
