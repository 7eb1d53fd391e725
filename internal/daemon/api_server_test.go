package daemon

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"vodpipe/internal/api"
	"vodpipe/internal/backend"
	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
	"vodpipe/internal/testsupport"
	"vodpipe/internal/workflow"
)

type apiFixture struct {
	cfg     *config.Config
	store   *queue.Store
	backend *testsupport.FakeBackend
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler
}

func newAPIFixture(t *testing.T, opts ...testsupport.ConfigOption) *apiFixture {
	t.Helper()
	fake := testsupport.NewFakeBackend(t)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithBackendURL(fake.URL())}, opts...)...)
	store := testsupport.MustOpenStore(t, cfg)

	hub := logging.NewStreamHub(64)
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Writer: io.Discard, Stream: hub})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	runner := pipeline.NewRunner(cfg, store, backend.NewFromConfig(cfg, logger), logger)
	mgr := workflow.NewManager(cfg, store, logger)
	d, err := New(cfg, store, logger, mgr, WithRunner(runner), WithLogStream(hub))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil || srv == nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	t.Cleanup(d.wg.Wait)
	return &apiFixture{cfg: cfg, store: store, backend: fake, logger: logger, daemon: d, handler: srv.server.Handler}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestAPIQueueLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/queue", `{"vod_url":"https://www.twitch.tv/videos/2301"}`)
	expectStatus(t, rec, http.StatusCreated)
	created := decode[api.QueueItemResponse](t, rec).Item
	if created.Status != "pending" || created.VODID != "2301" {
		t.Fatalf("unexpected created item: %+v", created)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/queue", `{"mode":"sometimes","vod_url":"x"}`), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/queue", `not json`), http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/queue", "")
	expectStatus(t, rec, http.StatusOK)
	if items := decode[api.QueueListResponse](t, rec).Items; len(items) != 1 {
		t.Fatalf("expected one item, got %+v", items)
	}
	rec = f.do(t, http.MethodGet, "/api/queue?status=manual,failed", "")
	expectStatus(t, rec, http.StatusOK)
	if items := decode[api.QueueListResponse](t, rec).Items; len(items) != 0 {
		t.Fatalf("expected filter to exclude pending item, got %+v", items)
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/queue?status=bogus", ""), http.StatusBadRequest)

	rec = f.do(t, http.MethodGet, "/api/queue/1", "")
	expectStatus(t, rec, http.StatusOK)
	desc := decode[api.QueueItemResponse](t, rec)
	if len(desc.Stages) != len(queue.StageKeys()) {
		t.Fatalf("expected every stage run, got %d", len(desc.Stages))
	}
	expectStatus(t, f.do(t, http.MethodGet, "/api/queue/99", ""), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodGet, "/api/queue/abc", ""), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPut, "/api/queue", ""), http.StatusMethodNotAllowed)

	expectStatus(t, f.do(t, http.MethodDelete, "/api/queue/1", ""), http.StatusOK)
	expectStatus(t, f.do(t, http.MethodDelete, "/api/queue/1", ""), http.StatusNotFound)
}

func TestAPIRetry(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	failed := testsupport.NewVOD(t, f.store, "https://www.twitch.tv/videos/1", queue.ModeAuto)
	failed.SetFailed(queue.StagePolish, "render failed")
	if err := f.store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	pending := testsupport.NewVOD(t, f.store, "https://www.twitch.tv/videos/2", queue.ModeAuto)

	rec := f.do(t, http.MethodPost, "/api/queue/1/retry", "")
	expectStatus(t, rec, http.StatusOK)
	result := decode[api.RetryItemsResult](t, rec)
	if result.Items[0].NewStatus != string(queue.StatusPushed) {
		t.Fatalf("expected retry to resume at polish, got %+v", result.Items[0])
	}
	expectStatus(t, f.do(t, http.MethodPost, "/api/queue/"+strconv.FormatInt(pending.ID, 10)+"/retry", ""), http.StatusConflict)
	expectStatus(t, f.do(t, http.MethodPost, "/api/queue/42/retry", ""), http.StatusNotFound)
}

func TestAPIStageRunRecordsOutcome(t *testing.T) {
	f := newAPIFixture(t)
	f.backend.Reply("POST /api/vod-clipper", http.StatusOK, `{"success":true,"vodId":"2301","segments":12}`)
	item := testsupport.NewVOD(t, f.store, "https://www.twitch.tv/videos/2301", queue.ModeManual)

	rec := f.do(t, http.MethodPost, "/api/queue/1/stages/ffmpeg", "")
	expectStatus(t, rec, http.StatusAccepted)
	accepted := decode[api.StageRunAccepted](t, rec)
	if accepted.Stage != queue.StageIngest || accepted.ItemID != item.ID {
		t.Fatalf("unexpected acknowledgement: %+v", accepted)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		run, err := f.store.StageRun(context.Background(), item.ID, queue.StageIngest)
		if err != nil {
			t.Fatalf("StageRun: %v", err)
		}
		if run.Status == queue.StageSuccess {
			if !strings.Contains(run.Output, "Segments: 12") {
				t.Fatalf("unexpected output %q", run.Output)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stage run did not finish, last status %s", run.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	expectStatus(t, f.do(t, http.MethodPost, "/api/queue/1/stages/nope", ""), http.StatusBadRequest)
	expectStatus(t, f.do(t, http.MethodPost, "/api/queue/9/stages/ingest", ""), http.StatusNotFound)
	expectStatus(t, f.do(t, http.MethodPost, "/api/queue/1/stages/polish", "{bad"), http.StatusBadRequest)

	started := time.Now()
	if err := f.store.SetStageRun(context.Background(), queue.StageRun{ItemID: item.ID, Stage: queue.StageTranscribe, Status: queue.StageRunning, StartedAt: &started}); err != nil {
		t.Fatalf("SetStageRun: %v", err)
	}
	expectStatus(t, f.do(t, http.MethodPost, "/api/queue/1/stages/transcribe", ""), http.StatusConflict)
}

func TestAPIStageRunRejectsWorkflowOwnedItem(t *testing.T) {
	f := newAPIFixture(t)
	f.backend.Reply("POST /api/transcribe-vod", http.StatusOK, `{"success":true}`)
	item := testsupport.NewVOD(t, f.store, "https://www.twitch.tv/videos/77", queue.ModeAuto)
	testsupport.MustSetStatus(t, f.store, item, queue.StatusExtracted)
	path := "/api/queue/" + strconv.FormatInt(item.ID, 10) + "/stages/transcribe"

	expectStatus(t, f.do(t, http.MethodPost, path, ""), http.StatusConflict)
	if hits := f.backend.Hits("POST /api/transcribe-vod"); hits != 0 {
		t.Fatalf("expected no backend call, got %d", hits)
	}
	stored, err := f.store.GetByID(context.Background(), item.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusExtracted {
		t.Fatalf("status changed to %s", stored.Status)
	}

	testsupport.MustSetStatus(t, f.store, item, queue.StatusFailed)
	expectStatus(t, f.do(t, http.MethodPost, path, ""), http.StatusAccepted)
}

func TestAPIBearerAuth(t *testing.T) {
	f := newAPIFixture(t, testsupport.WithAPIToken("s3cret"))

	expectStatus(t, f.do(t, http.MethodGet, "/api/queue", ""), http.StatusUnauthorized)
	expectStatus(t, f.do(t, http.MethodGet, "/api/queue", "", "Authorization", "Bearer wrong"), http.StatusUnauthorized)
	expectStatus(t, f.do(t, http.MethodGet, "/api/queue", "", "Authorization", "s3cret"), http.StatusUnauthorized)
	expectStatus(t, f.do(t, http.MethodGet, "/api/queue", "", "Authorization", "Bearer s3cret"), http.StatusOK)
}

func TestAPIStatusIncludesPreflightAndLanes(t *testing.T) {
	f := newAPIFixture(t)
	f.backend.Reply("GET /", http.StatusOK, `{}`)

	rec := f.do(t, http.MethodGet, "/api/status", "")
	expectStatus(t, rec, http.StatusOK)
	status := decode[api.DaemonStatus](t, rec)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if len(status.Workflow.Lanes["analysis"]) != 7 || len(status.Workflow.Lanes["delivery"]) != 2 {
		t.Fatalf("unexpected lanes: %+v", status.Workflow.Lanes)
	}
	var backendCheck *api.CheckResult
	for i := range status.Preflight {
		if status.Preflight[i].Name == "Backend" {
			backendCheck = &status.Preflight[i]
		}
	}
	if backendCheck == nil || !backendCheck.Passed {
		t.Fatalf("expected passing backend check, got %+v", status.Preflight)
	}
}

func TestAPILogsFilterAndTail(t *testing.T) {
	f := newAPIFixture(t)
	f.logger.Info("first", logging.Int64(logging.FieldItemID, 5))
	f.logger.Info("second", logging.Int64(logging.FieldItemID, 6))
	f.logger.Info("third", logging.Int64(logging.FieldItemID, 5))

	rec := f.do(t, http.MethodGet, "/api/logs?item=5", "")
	expectStatus(t, rec, http.StatusOK)
	page := decode[api.LogStreamResponse](t, rec)
	var messages []string
	for _, evt := range page.Events {
		messages = append(messages, evt.Message)
	}
	if strings.Join(messages, ",") != "first,third" {
		t.Fatalf("unexpected filtered messages: %v", messages)
	}
	if page.Next == 0 {
		t.Fatal("expected a cursor")
	}

	rec = f.do(t, http.MethodGet, "/api/logs?tail=1&limit=1", "")
	expectStatus(t, rec, http.StatusOK)
	tail := decode[api.LogStreamResponse](t, rec)
	if len(tail.Events) != 1 || tail.Events[0].Message != "third" {
		t.Fatalf("unexpected tail: %+v", tail.Events)
	}

	rec = f.do(t, http.MethodGet, "/api/logs?since="+strconv.FormatUint(page.Next, 10), "")
	expectStatus(t, rec, http.StatusOK)
	if rest := decode[api.LogStreamResponse](t, rec); len(rest.Events) != 0 {
		t.Fatalf("expected no events past the cursor, got %+v", rest.Events)
	}
}

func TestAPIEvents(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	now := time.Now()
	for _, name := range []string{"log", "clip_done", "log"} {
		if _, err := f.store.AppendEvent(ctx, name, `{}`, now); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/api/events?limit=2", "")
	expectStatus(t, rec, http.StatusOK)
	evts := decode[api.EventsResponse](t, rec).Events
	if len(evts) != 2 || evts[0].Name != "clip_done" || evts[1].Name != "log" {
		t.Fatalf("unexpected events: %+v", evts)
	}
}
