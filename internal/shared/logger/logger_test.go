package logger

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"echoprobe/internal/shared/types"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	} {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	var out bytes.Buffer
	if err := InitWithWriter(types.LogConf{Level: "info"}, &out); err != nil {
		t.Fatalf("InitWithWriter() returned an error: %v", err)
	}

	l := WithComponent("EchoProbe")
	l.Debug().Msg("hidden")
	l.Info().Str("endpoint", "127.0.0.1:7778").Msg("visible")

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("Debug message written at info level:\n%s", got)
	}
	for _, want := range []string{"visible", "EchoProbe", "127.0.0.1:7778"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain '%s', got:\n%s", want, got)
		}
	}
}

func TestInitWithWriter_WhileLogging(t *testing.T) {
	if err := InitWithWriter(types.LogConf{Level: "debug"}, io.Discard); err != nil {
		t.Fatal(err)
	}
	server := WithComponent("EchoServer")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				server.Info().Msg("still serving")
				Debug().Str("loop", "global").Msg("tick")
				l := WithComponent("EchoProbe")
				l.Debug().Msg("tick")
			}
		}()
	}

	for i := 0; i < 50; i++ {
		level := "info"
		if i%2 == 0 {
			level = "debug"
		}
		if err := InitWithWriter(types.LogConf{Level: level}, io.Discard); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}
