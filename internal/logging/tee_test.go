package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := TeeHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsMemberLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := TeeHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled through the debug handler")
	}

	logger := slog.New(h).With("vod_id", "123").WithGroup("clip")
	logger.Debug("sample record", "score", 0.9)
	logger.Info("polished", "segment", "0001")

	if strings.Contains(infoBuf.String(), "sample record") {
		t.Fatalf("info handler received debug record: %s", infoBuf.String())
	}
	for _, out := range []string{infoBuf.String(), debugBuf.String()} {
		if !strings.Contains(out, `"vod_id":"123"`) || !strings.Contains(out, `"clip":{"segment":"0001"}`) {
			t.Fatalf("attrs or group missing: %s", out)
		}
	}
	if !strings.Contains(debugBuf.String(), "sample record") {
		t.Fatalf("debug handler missed debug record: %s", debugBuf.String())
	}
}

func TestTeeLogger(t *testing.T) {
	var baseBuf, extraBuf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))
	logger := TeeLogger(base, slog.NewTextHandler(&extraBuf, nil))
	logger.Info("clip done")
	if !strings.Contains(baseBuf.String(), "clip done") || !strings.Contains(extraBuf.String(), "clip done") {
		t.Fatalf("expected both outputs, got base=%q extra=%q", baseBuf.String(), extraBuf.String())
	}

	var onlyBuf bytes.Buffer
	TeeLogger(nil, slog.NewTextHandler(&onlyBuf, nil)).Info("solo")
	if !strings.Contains(onlyBuf.String(), "solo") {
		t.Fatalf("expected nil base to fall back to extra handlers, got %q", onlyBuf.String())
	}
}
