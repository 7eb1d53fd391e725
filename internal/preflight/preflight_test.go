package preflight

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vodpipe/internal/queue"
	"vodpipe/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", ""); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckBackend(t *testing.T) {
	ok := CheckBackend(context.Background(), "Backend", pingerFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}

	failed := CheckBackend(context.Background(), "Backend", pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))
	if failed.Passed || failed.Detail != "connection refused" {
		t.Fatalf("unexpected result: %+v", failed)
	}

	timedOut := CheckBackend(context.Background(), "Backend", pingerFunc(func(context.Context) error {
		return context.DeadlineExceeded
	}))
	if !strings.Contains(timedOut.Detail, "timed out") {
		t.Fatalf("expected timeout detail, got %q", timedOut.Detail)
	}

	if CheckBackend(context.Background(), "Backend", nil).Passed {
		t.Fatal("expected failure for nil client")
	}
}

func TestCheckBackendFromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(srv.URL))
	result := CheckBackendFromConfig(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("any HTTP status should count as reachable, got %s", result.Detail)
	}

	cfg.Backend.BaseURL = ""
	if CheckBackendFromConfig(context.Background(), cfg).Passed {
		t.Fatal("expected failure without base url")
	}
}

func TestCheckEventsEndpoint(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()

	result := CheckEventsEndpoint(context.Background(), "http://"+addr)
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}

	_ = listener.Close()
	if CheckEventsEndpoint(context.Background(), "http://"+addr).Passed {
		t.Fatal("expected failure once the listener is closed")
	}
	if CheckEventsEndpoint(context.Background(), "not a url").Passed {
		t.Fatal("expected failure for invalid url")
	}
}

func TestCheckEventsFromConfigDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Events.Enabled = false
	result := CheckEventsFromConfig(context.Background(), cfg)
	if !result.Passed || result.Detail != "Disabled" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCheckQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewVOD(t, store, "https://www.twitch.tv/videos/1", queue.ModeAuto)

	result := CheckQueue(context.Background(), store)
	if !result.Passed {
		t.Fatalf("expected healthy queue, got %s", result.Detail)
	}
	if result.Detail != "1 items" {
		t.Fatalf("unexpected detail: %q", result.Detail)
	}
	if CheckQueue(context.Background(), nil).Passed {
		t.Fatal("expected failure for nil store")
	}
}

func TestRunAllAndFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(srv.URL))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	cfg.Events.Enabled = true

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if err := Failures(results); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}

	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "missing")
	err := Failures(RunAll(context.Background(), cfg))
	if err == nil || !strings.Contains(err.Error(), "Log directory") {
		t.Fatalf("expected log directory failure, got %v", err)
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
