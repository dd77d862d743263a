package mobile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"echoprobe/internal/echoserver"
	"echoprobe/internal/probe"
	"echoprobe/internal/shared/types"
)

func echoAddr(t *testing.T) *net.TCPAddr {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := echoserver.Start(ctx, "127.0.0.1:0", echoserver.Options{Mode: echoserver.ModeTCP})
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv.Addr().(*net.TCPAddr)
}

func status(t *testing.T) StatusData {
	t.Helper()
	raw, err := GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() returned an error: %v", err)
	}
	var s StatusData
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("GetStatus() returned invalid JSON: %v", err)
	}
	return s
}

func TestRunProbe(t *testing.T) {
	addr := echoAddr(t)
	ini := fmt.Sprintf("[probe]\nhost = 127.0.0.1\nport = %d\npayload = ping\niteration_limit = 2\n", addr.Port)

	raw, err := RunProbe(ini)
	if err != nil {
		t.Fatalf("RunProbe() returned an error: %v", err)
	}
	var summary probe.Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		t.Fatalf("RunProbe() returned invalid JSON: %v", err)
	}
	if summary.Successes != 2 || summary.BytesSent != 8 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if s := status(t); s.State != types.StateFinished || s.Detail != string(probe.StopLimit) {
		t.Errorf("Unexpected status: %+v", s)
	}
}

func TestRunProbe_InvalidConfig(t *testing.T) {
	if _, err := RunProbe("[probe]\nport = 7778\niteration_limit = 1\n"); err == nil {
		t.Error("Expected an error for a missing host")
	}
	if s := status(t); s.State != types.StateFailed {
		t.Errorf("Expected a failed status after an invalid config, got %+v", s)
	}
	if _, err := RunProbe("not an ini [file"); err == nil {
		t.Error("Expected an error for malformed ini content")
	}
}

func TestStopProbe(t *testing.T) {
	addr := echoAddr(t)
	ini := fmt.Sprintf("[probe]\nhost = 127.0.0.1\nport = %d\nunbounded = true\ninterval_ms = 10\n", addr.Port)

	done := make(chan error, 1)
	go func() {
		_, err := RunProbe(ini)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for status(t).State != types.StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("Probe session never reached the running state")
		}
		time.Sleep(5 * time.Millisecond)
	}
	StopProbe()

	select {
	case err := <-done:
		if !errors.Is(err, probe.ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("RunProbe() did not return after StopProbe()")
	}
	if s := status(t); s.State != types.StateFailed || s.Detail != probe.KindCancelled.String() {
		t.Errorf("Unexpected status after stop: %+v", s)
	}
}

func TestRunProbe_SecondSessionRejectedWhileRunning(t *testing.T) {
	addr := echoAddr(t)
	ini := fmt.Sprintf("[probe]\nhost = 127.0.0.1\nport = %d\nunbounded = true\ninterval_ms = 5\n\n[log]\nlevel = debug\n", addr.Port)

	done := make(chan error, 1)
	go func() {
		_, err := RunProbe(ini)
		done <- err
	}()
	defer func() {
		StopProbe()
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for status(t).State != types.StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("Probe session never reached the running state")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The rejected call must not reconfigure logging under the live session.
	for i := 0; i < 20; i++ {
		if _, err := RunProbe(ini); err == nil {
			t.Fatal("Expected a second session to be rejected")
		}
	}
	if s := status(t); s.State != types.StateRunning {
		t.Errorf("The rejected call changed the status: %+v", s)
	}
}
