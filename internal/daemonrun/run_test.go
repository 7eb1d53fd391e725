package daemonrun_test

import (
	"context"
	"os"
	"testing"
	"time"

	"vodpipe/internal/daemonrun"
	"vodpipe/internal/testsupport"
)

func TestRunStopsWhenContextCancelled(t *testing.T) {
	backend := testsupport.NewFakeBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(backend.URL()))
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var addr string
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{
			LogLevel: "debug",
			Ready: func(apiAddr string) {
				addr = apiAddr
				cancel()
			},
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
	if addr == "" {
		t.Fatal("expected Ready to receive the api address")
	}
	if _, err := os.Stat(cfg.DaemonLogPath()); err != nil {
		t.Fatalf("expected daemon log file: %v", err)
	}
	if _, err := os.Stat(cfg.QueueDBPath()); err != nil {
		t.Fatalf("expected queue database: %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}
