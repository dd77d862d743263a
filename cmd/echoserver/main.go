package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"echoprobe/internal/echoserver"
	"echoprobe/internal/shared/config"
	"echoprobe/internal/shared/logger"
	"echoprobe/internal/shared/types"
)

func main() {
	configFile := flag.String("config", "", "Path to echoprobe.ini; only [server] and [log] are used")
	listen := flag.String("listen", types.DefaultListen, "Address to listen on")
	mode := flag.String("mode", "tcp", "Echo framing: tcp, ws or mux")
	wsPath := flag.String("ws-path", types.DefaultWSPath, "HTTP path of the websocket endpoint")
	closeAfter := flag.Int("close-after", 0, "Shut each connection down after this many echoes (0 = never)")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	// 1. Configuration: defaults, optional INI file, flags.
	cfg := types.DefaultConfig()
	if *configFile != "" {
		if err := config.LoadIni(cfg, *configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", *configFile, err)
			os.Exit(2)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ServerConf.Listen = *listen
		case "mode":
			cfg.ServerConf.Mode = *mode
		case "ws-path":
			cfg.ServerConf.Path = *wsPath
		case "close-after":
			cfg.ServerConf.CloseAfter = *closeAfter
		case "log-level":
			cfg.LogConf.Level = *logLevel
		}
	})

	// 2. Logger
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	m, err := echoserver.ParseMode(cfg.ServerConf.Mode)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid server mode")
	}

	// 3. Serve until SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := echoserver.New(echoserver.Options{
		Mode:       m,
		WSPath:     cfg.ServerConf.Path,
		CloseAfter: cfg.ServerConf.CloseAfter,
	})
	if err := srv.ListenAndServe(ctx, cfg.ServerConf.Listen); err != nil {
		logger.Fatal().Err(err).Msg("Echo server failed")
	}
}
