package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vodpipe/internal/api"
	"vodpipe/internal/daemon"
	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
	"vodpipe/internal/stage"
	"vodpipe/internal/testsupport"
	"vodpipe/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Item) error { return nil }
func (noopStage) Execute(context.Context, *queue.Item) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

type daemonTestEnv struct {
	store      *queue.Store
	logger     *slog.Logger
	configPath string
}

// setupDaemonTestEnv starts a daemon on an ephemeral port and writes a config
// pointing the CLI at it.
func setupDaemonTestEnv(t *testing.T) *daemonTestEnv {
	t.Helper()

	fake := testsupport.NewFakeBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(fake.URL()))
	store := testsupport.MustOpenStore(t, cfg)

	hub := logging.NewStreamHub(64)
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: io.Discard, Stream: hub})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{queue.StageIngest: noopStage{}})

	d, err := daemon.New(cfg, store, logger, mgr, daemon.WithLogStream(hub))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	cliCfg := *cfg
	cliCfg.Paths.APIBind = d.APIAddr()
	configPath := filepath.Join(testsupport.BaseDir(cfg), "vodpipe.toml")
	writeTestConfig(t, configPath, &cliCfg)

	return &daemonTestEnv{store: store, logger: logger, configPath: configPath}
}

func TestCommandsAgainstRunningDaemon(t *testing.T) {
	env := setupDaemonTestEnv(t)
	testsupport.NewVOD(t, env.store, "https://www.twitch.tv/videos/77", queue.ModeManual)

	run := func(args ...string) string {
		t.Helper()
		stdout, stderr, err := runCLI(t, args, env.configPath)
		if err != nil {
			t.Fatalf("vodpipe %v: %v\nstderr: %s", args, err, stderr)
		}
		return stdout
	}

	stdout := run("status")
	requireContains(t, stdout, "Running (pid")
	requireContains(t, stdout, "Backend events")
	requireContains(t, stdout, "== Preflight ==")

	stdout = run("status", "--json")
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, stdout)
	}
	if !status.Running {
		t.Fatalf("expected running daemon in status: %+v", status)
	}

	stdout = run("vod", "add", "--manual", "https://www.twitch.tv/videos/78")
	requireContains(t, stdout, "Queued item 2 (manual, manual)")

	stdout = run("queue", "list", "--json")
	var items []api.QueueItem
	if err := json.Unmarshal([]byte(stdout), &items); err != nil {
		t.Fatalf("decode list json: %v\n%s", err, stdout)
	}
	if len(items) != 2 || items[0].ID != 2 {
		t.Fatalf("expected newest first with two items, got %+v", items)
	}

	stdout = run("queue", "retry", "1")
	requireContains(t, stdout, "Item 1 is not failed")

	stdout = run("queue", "remove", "2")
	requireContains(t, stdout, "Removed 1 item(s)")

	env.logger.Info("marker line for cli", logging.String(logging.FieldEventType, "test_marker"))
	stdout = run("logs", "-n", "50")
	requireContains(t, stdout, "marker line for cli")
	requireContains(t, stdout, "event_type=test_marker")
}

func TestStatusWithoutDaemonRunsLocalPreflight(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewVOD(t, env.store, "https://www.twitch.tv/videos/5", queue.ModeAuto)

	stdout := mustRunCLI(t, env, "status")
	requireContains(t, stdout, "Not running")
	requireContains(t, stdout, "== Preflight ==")
	requireContains(t, stdout, "== Queue ==")
	requireContains(t, stdout, "pending")
	requireContains(t, stdout, env.cfg.QueueDBPath())
}

func TestLogsWithoutDaemonTailsFile(t *testing.T) {
	env := setupCLITestEnv(t)
	lines := strings.Join([]string{
		`{"ts":"2026-03-04T05:06:07Z","level":"info","msg":"stage completed","component":"workflow","item_id":12,"stage":"scoring"}`,
		`{"ts":"2026-03-04T05:06:08Z","level":"warn","msg":"backend slow","component":"backend"}`,
		"plain console line",
	}, "\n") + "\n"
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(env.cfg.DaemonLogPath(), []byte(lines), 0o644); err != nil {
		t.Fatalf("write daemon log: %v", err)
	}

	stdout, stderr, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, stderr, "daemon is not running")
	requireContains(t, stdout, "[workflow] item=12 stage=scoring stage completed")
	requireContains(t, stdout, "WARN  [backend]")
	requireContains(t, stdout, "plain console line")

	stdout = mustRunCLI(t, env, "logs", "--item", "12")
	requireContains(t, stdout, "stage completed")
	requireNotContains(t, stdout, "backend slow")
	requireNotContains(t, stdout, "plain console line")

	stdout = mustRunCLI(t, env, "logs", "-n", "1")
	requireContains(t, stdout, "plain console line")
	requireNotContains(t, stdout, "stage completed")
}

func TestEventsWithoutDaemonReadsStore(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout := mustRunCLI(t, env, "events")
	requireContains(t, stdout, "No backend events recorded")

	ctx := context.Background()
	now := time.Now()
	if _, err := env.store.AppendEvent(ctx, "log", `{"level":"info","msg":"hello backend"}`, now); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if _, err := env.store.AppendEvent(ctx, "clip_done", `{"url":"https://cdn/clip.mp4","duration":30,"source":"manual"}`, now); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	stdout = mustRunCLI(t, env, "events", "-n", "10")
	requireContains(t, stdout, "hello backend")
	requireContains(t, stdout, "clip done (manual, 30.0s): https://cdn/clip.mp4")
}

func TestStreamCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Reply("POST /api/manual-clip", http.StatusOK, `{"path":"/clips/manual_1.mp4"}`)
	env.backend.Reply("POST /api/stop-stream", http.StatusOK, `{"message":"stopped"}`)
	env.backend.Reply("GET /api/extract-frames", http.StatusOK, `{}`)

	stdout := mustRunCLI(t, env, "stream", "clip", "--duration", "45")
	requireContains(t, stdout, "Clip saved: /clips/manual_1.mp4")
	req, ok := env.backend.Last("POST /api/manual-clip")
	if !ok {
		t.Fatal("expected manual clip request")
	}
	if req.Body["duration"] != float64(45) {
		t.Fatalf("expected duration 45, got %v", req.Body["duration"])
	}

	stdout = mustRunCLI(t, env, "stream", "stop")
	requireContains(t, stdout, "Stream capture stopped")

	stdout = mustRunCLI(t, env, "stream", "frames")
	requireContains(t, stdout, "Frame extraction started")

	if _, _, err := runCLI(t, []string{"stream", "clip", "--duration", "0"}, env.configPath); err == nil {
		t.Fatal("expected non-positive duration to fail")
	}
}

func TestTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout := mustRunCLI(t, env, "test-notify")
	requireContains(t, stdout, "Notifications are not configured")

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	configured := setupCLITestEnv(t, testsupport.WithNtfyTopic(srv.URL))
	stdout = mustRunCLI(t, configured, "test-notify")
	requireContains(t, stdout, "Test notification sent")
	if hits.Load() != 1 {
		t.Fatalf("expected one ntfy post, got %d", hits.Load())
	}
}
