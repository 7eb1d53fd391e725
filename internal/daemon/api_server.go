package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vodpipe/internal/api"
	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
)

const (
	defaultLogLimit    = 200
	defaultEventsLimit = 50
	followWindow       = 20 * time.Second
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService
	runCtx   context.Context

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:     bind,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
		runCtx:   context.Background(),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      followWindow + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(bearerAuth(token))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/logs", s.handleLogs)
		r.Get("/events", s.handleEvents)
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleQueueList)
			r.Post("/", s.handleQueueAdd)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleQueueItem)
				r.Delete("/", s.handleQueueRemove)
				r.Post("/retry", s.handleQueueRetry)
				r.Post("/stages/{stage}", s.handleStageRun)
			})
		})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.runCtx = ctx

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address.
func (s *apiServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LogPath:      status.LogPath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Events: api.EventsStatus{
			Enabled:   status.Events.Enabled,
			Connected: status.Events.Connected,
			Sessions:  status.Events.Sessions,
			Received:  status.Events.Received,
		},
		Preflight: api.FromPreflight(status.Preflight),
	})
}

func (s *apiServer) handleQueueList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		for part := range strings.SplitSeq(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			status, ok := queue.ParseStatus(trimmed)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
				return
			}
			statuses = append(statuses, status)
		}
	}

	items, err := s.queueSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var req api.AddVODRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := s.queueSvc.Add(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("vod queued",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("mode", item.Mode),
		logging.String(logging.FieldEventType, "vod_queued"),
	)
	s.writeJSON(w, http.StatusCreated, api.QueueItemResponse{Item: item})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	desc, err := s.queueSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if desc == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, desc)
}

func (s *apiServer) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	result, err := api.RetryFailedItemsByID(r.Context(), s.queueSvc, []int64{id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch result.Items[0].Outcome {
	case api.RetryItemNotFound:
		s.writeError(w, http.StatusNotFound, "queue item not found")
	case api.RetryItemNotFailed:
		s.writeError(w, http.StatusConflict, "queue item is not failed")
	default:
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *apiServer) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	result, err := api.RemoveItemsByID(r.Context(), s.queueSvc, []int64{id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.RemovedCount == 0 {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleStageRun starts one stage in the background and answers 202. The
// outcome is recorded as the item's stage run.
func (s *apiServer) handleStageRun(w http.ResponseWriter, r *http.Request) {
	runner := s.daemon.runner
	if runner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "stage runner not configured")
		return
	}
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	stageKey, err := pipeline.ParseStage(chi.URLParam(r, "stage"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req api.StageRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if err := pipeline.CheckManualRun(item); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	current, err := s.daemon.store.StageRun(r.Context(), id, stageKey)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if current.Status == queue.StageRunning {
		s.writeError(w, http.StatusConflict, "stage is already running")
		return
	}

	var opts []pipeline.RunOption
	if req.Force != nil {
		opts = append(opts, pipeline.WithForce(*req.Force))
	}
	logger := s.logger.With(logging.Int64(logging.FieldItemID, id), logging.String(logging.FieldStage, stageKey))
	s.daemon.wg.Add(1)
	go func() {
		defer s.daemon.wg.Done()
		if _, err := runner.Run(s.runCtx, item, stageKey, opts...); err != nil {
			logger.Warn("manual stage run failed", logging.Error(err))
		}
	}()
	s.writeJSON(w, http.StatusAccepted, api.StageRunAccepted{ItemID: id, Stage: stageKey})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := flagValue(query.Get("follow"))
	tail := flagValue(query.Get("tail"))
	itemID, _ := strconv.ParseInt(strings.TrimSpace(query.Get("item")), 10, 64)
	component := query.Get("component")

	var (
		raw  []logging.LogEvent
		next uint64
	)
	if tail && since == 0 && !follow {
		raw, next = hub.Tail(limit)
	} else {
		ctx := r.Context()
		if follow {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, followWindow)
			defer cancel()
		}
		var err error
		raw, next, err = hub.Fetch(ctx, since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Events: api.FromLogEvents(logging.FilterEvents(raw, itemID, component)),
		Next:   next,
	})
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	evts, err := s.daemon.store.RecentEvents(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: api.FromBackendEvents(evts)})
}

func (s *apiServer) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return 0, false
	}
	return id, true
}

func flagValue(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
