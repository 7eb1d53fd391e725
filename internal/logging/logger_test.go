package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/services"
)

func TestNewFromConfigWritesDaemonLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	hub := logging.NewStreamHub(16)

	logger, err := logging.NewFromConfig(&cfg, hub)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started", logging.String(logging.FieldComponent, "daemon"))

	content, err := os.ReadFile(cfg.DaemonLogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon: daemon started") {
		t.Fatalf("unexpected console output: %q", content)
	}
	events, _ := hub.Tail(10)
	if len(events) != 1 || events[0].Component != "daemon" {
		t.Fatalf("expected stream hub to receive the record, got %+v", events)
	}
}

func TestConsoleLoggerCallerOnlyAtDebug(t *testing.T) {
	for _, level := range []string{"info", "debug"} {
		logPath := filepath.Join(t.TempDir(), "console.log")
		logger, err := logging.New(logging.Options{Format: "console", Level: level, OutputPaths: []string{logPath}})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Info("message")

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		hasCaller := strings.Contains(string(content), ".go:")
		if hasCaller != (level == "debug") {
			t.Fatalf("level %s: caller presence %v in %q", level, hasCaller, content)
		}
	}
}

func TestConsoleLoggerFormatsSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With(
		logging.String(logging.FieldLane, "analysis"),
		logging.Int64(logging.FieldItemID, 7),
		logging.String(logging.FieldComponent, "workflow"),
	).Info("stage started", logging.String(logging.FieldStage, "transcribe"), logging.String("vod_id", "2468"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "Analysis · VOD #7 (transcribe) [workflow]: stage started") {
		t.Fatalf("unexpected subject: %q", line)
	}
	if !strings.Contains(line, "vod_id=2468") {
		t.Fatalf("expected trailing key/value, got %q", line)
	}
}

func TestJSONLoggerShape(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("clip failed", logging.String("segment_id", "1_segment_0002"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload["level"] != "warn" || payload["msg"] != "clip failed" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %+v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestStageLoggerOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "override.log")
	overrides := map[string]string{"polish": "debug", "upload": "error"}
	logger, err := logging.New(logging.Options{
		Format:         "console",
		Level:          "info",
		OutputPaths:    []string{logPath},
		StageOverrides: overrides,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("root debug hidden")
	logging.StageLogger(logger, "polish", overrides).Debug("polish debug shown")
	logging.StageLogger(logger, "upload", overrides).Warn("upload warn hidden")
	logging.StageLogger(logger, "ingest", overrides).Info("ingest info shown")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{"polish debug shown", "ingest info shown"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	for _, unwanted := range []string{"root debug hidden", "upload warn hidden"} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("unexpected %q in %q", unwanted, out)
		}
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, 123)
	ctx = services.WithStage(ctx, "scoring")
	ctx = services.WithRequestID(ctx, "req-xyz")

	hub := logging.NewStreamHub(4)
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}, Stream: hub})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WithContext(ctx, logger).Info("contextual log")

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.ItemID != 123 || evt.Stage != "scoring" || evt.CorrelationID != "req-xyz" {
		t.Fatalf("unexpected context fields: %+v", evt)
	}
}
