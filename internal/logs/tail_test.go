package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vodpipe/internal/logs"
)

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vodpipe.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail missing file: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result for missing file: %+v", result)
	}
}

func TestTailFromOffsetResetsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vodpipe.log")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 500})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 2 {
		t.Fatalf("expected clamp to end of file, got %+v", result)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vodpipe.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected initial line, got %#v", result.Lines)
	}

	type followResult struct {
		res logs.TailResult
		err error
	}
	done := make(chan followResult, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		done <- followResult{res: res, err: err}
	}(result.Offset)

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("follow tail error: %v", got.err)
		}
		if len(got.res.Lines) != 1 || got.res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", got.res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFollowTimesOutQuietly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vodpipe.log")
	if err := os.WriteFile(path, []byte("only\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 5, Follow: true, Wait: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseLine(t *testing.T) {
	line := `{"ts":"2026-03-04T05:06:07Z","level":"warn","msg":"stage failed","component":"workflow","item_id":12,"stage":"scoring","attempt":2,"ok":false}`
	evt, ok := logs.ParseLine(line)
	if !ok {
		t.Fatal("expected json line to parse")
	}
	if evt.Level != "WARN" || evt.Message != "stage failed" || evt.Component != "workflow" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.ItemID != 12 || evt.Stage != "scoring" {
		t.Fatalf("unexpected item context: %+v", evt)
	}
	if !evt.Timestamp.Equal(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", evt.Timestamp)
	}
	if evt.Fields["attempt"] != "2" || evt.Fields["ok"] != "false" {
		t.Fatalf("unexpected fields: %+v", evt.Fields)
	}

	if _, ok := logs.ParseLine("2026-03-04 05:06:07 INFO console line"); ok {
		t.Fatal("console lines must not parse")
	}
}
