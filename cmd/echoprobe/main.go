package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echoprobe/internal/probe"
	"echoprobe/internal/probe/transport"
	"echoprobe/internal/shared/config"
	"echoprobe/internal/shared/logger"
	"echoprobe/internal/shared/types"
)

// Process exit codes.
const (
	exitOK        = 0
	exitUsage     = 2
	exitConnect   = 3
	exitSend      = 4
	exitReceive   = 5
	exitTimeout   = 6
	exitMismatch  = 7
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("echoprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "Path to echoprobe.ini (optional)")
	host := fs.String("host", "", "Echo server host")
	port := fs.Int("port", 0, "Echo server TCP port")
	count := fs.Int("count", 0, "Number of round-trips (0 requires -unbounded)")
	unbounded := fs.Bool("unbounded", false, "Probe until interrupted")
	payload := fs.String("payload", types.DefaultPayload, "Bytes sent on every round-trip")
	buffer := fs.Int("buffer", types.DefaultBufferSize, "Maximum bytes read per round-trip")
	transportType := fs.String("transport", types.DefaultTransport, "Carrier: tcp, ws, mux, tls or socks5")
	timeout := fs.Duration("timeout", types.DefaultIOTimeoutMs*time.Millisecond, "Connect and I/O timeout (0 disables)")
	interval := fs.Duration("interval", 0, "Pause between round-trips")
	report := fs.String("report", "", "Write the session summary as JSON to this file")
	strict := fs.Bool("strict", false, "Exit non-zero if any echo differs from the payload")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	// 1. Defaults, then INI file (or just the environment), then flags.
	cfg := types.DefaultConfig()
	if *configFile != "" {
		if err := config.LoadIni(cfg, *configFile); err != nil {
			fmt.Fprintf(stderr, "Fatal: Failed to load config file '%s': %v\n", *configFile, err)
			return exitUsage
		}
	} else {
		config.ApplyEnv(cfg)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.ProbeConf.Host = *host
		case "port":
			cfg.ProbeConf.Port = *port
		case "count":
			cfg.ProbeConf.IterationLimit = *count
		case "unbounded":
			cfg.ProbeConf.Unbounded = *unbounded
		case "payload":
			cfg.ProbeConf.Payload = *payload
		case "buffer":
			cfg.ProbeConf.BufferSize = *buffer
		case "transport":
			cfg.TransportConf.Type = *transportType
		case "timeout":
			cfg.ProbeConf.ConnectTimeoutMs = int(timeout.Milliseconds())
			cfg.ProbeConf.IOTimeoutMs = int(timeout.Milliseconds())
		case "interval":
			cfg.ProbeConf.IntervalMs = int(interval.Milliseconds())
		case "report":
			cfg.ProbeConf.ReportFile = *report
		case "strict":
			cfg.ProbeConf.Strict = *strict
		}
	})

	// 2. Logger
	if err := logger.InitWithWriter(cfg.LogConf, stderr); err != nil {
		fmt.Fprintf(stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return exitUsage
	}

	// 3. Validate and build the probe
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration:\n%v\n", err)
		fs.Usage()
		return exitUsage
	}
	ep, err := probe.NewEndpoint(cfg.ProbeConf.Host, uint16(cfg.ProbeConf.Port))
	if err != nil {
		fmt.Fprintf(stderr, "Invalid endpoint: %v\n", err)
		return exitUsage
	}
	opts := probe.OptionsFromConfig(cfg.ProbeConf, cfg.TransportConf)
	dialer, err := transport.New(cfg.TransportConf, opts.IOTimeout)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid transport: %v\n", err)
		return exitUsage
	}
	p, err := probe.New(opts, dialer)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid probe options: %v\n", err)
		return exitUsage
	}

	// 4. Run the session
	summary, runErr := p.Run(ctx, ep, func(r probe.Result) probe.Decision {
		printResult(stdout, r)
		return probe.Continue
	})
	if summary != nil {
		fmt.Fprintf(stdout, "%d round-trips, %d ok, %d mismatched, %d failed, stopped: %s\n",
			summary.Attempts, summary.Successes, summary.Mismatches, summary.Failures, summary.StopReason)
		if cfg.ProbeConf.ReportFile != "" {
			if err := config.SaveReport(cfg.ProbeConf.ReportFile, summary); err != nil {
				logger.Error().Err(err).Str("file", cfg.ProbeConf.ReportFile).Msg("Failed to write report")
			}
		}
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "echoprobe: %v\n", runErr)
	}
	return exitCodeFor(runErr, summary, cfg.ProbeConf.Strict)
}

func printResult(w io.Writer, r probe.Result) {
	switch {
	case r.Err != nil:
		fmt.Fprintf(w, "[%d] error: %v\n", r.Seq, r.Err)
	case r.Closed:
		fmt.Fprintf(w, "[%d] peer closed the connection\n", r.Seq)
	default:
		fmt.Fprintf(w, "[%d] received data: %q (%s)\n", r.Seq, r.Data, r.RTT.Round(time.Microsecond))
	}
}

func exitCodeFor(err error, summary *probe.Summary, strict bool) int {
	if err != nil {
		switch probe.KindOf(err) {
		case probe.KindConnect:
			return exitConnect
		case probe.KindSend:
			return exitSend
		case probe.KindReceive:
			return exitReceive
		case probe.KindTimeout:
			return exitTimeout
		case probe.KindCancelled:
			return exitCancelled
		default:
			return 1
		}
	}
	if strict && summary != nil && summary.Mismatches > 0 {
		return exitMismatch
	}
	return exitOK
}
