package main

import (
	"io"
	"strings"
	"testing"
	"time"

	"vodpipe/internal/api"
	"vodpipe/internal/queue"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Queue DB", statusInfo, "/tmp/queue.db", false)
	if line != "  Queue DB:            [INFO] /tmp/queue.db" {
		t.Fatalf("unexpected line %q", line)
	}
	if got := renderStatusLine("vodpipe", statusError, "", false); !strings.HasSuffix(got, "[ERROR]") {
		t.Fatalf("expected bare error badge, got %q", got)
	}
	colored := renderStatusLine("vodpipe", statusOK, "Running", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected green line, got %q", colored)
	}
}

func TestStageBadge(t *testing.T) {
	cases := []struct {
		status queue.StageStatus
		plain  string
		color  string
	}{
		{queue.StageSuccess, "[SUCCESS]", ansiGreen},
		{queue.StageError, "[ERROR]", ansiRed},
		{queue.StageRunning, "[RUNNING]", ansiYellow},
		{queue.StageIdle, "[IDLE]", ansiDim},
		{"", "[IDLE]", ansiDim},
	}
	for _, tc := range cases {
		if got := stageBadge(tc.status, false); got != tc.plain {
			t.Fatalf("stageBadge(%q) = %q, want %q", tc.status, got, tc.plain)
		}
		if got := stageBadge(tc.status, true); !strings.HasPrefix(got, tc.color+"● ") {
			t.Fatalf("stageBadge(%q) colored = %q", tc.status, got)
		}
	}
}

func TestShouldColorizeNonTerminal(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected no colour for non-file writers")
	}
}

func TestBuildQueueStatusRowsOrder(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"failed":    2,
		"zzz":       1,
		"pending":   3,
		"completed": 0,
		"scoring":   1,
	})
	var got []string
	for _, row := range rows {
		got = append(got, row[0]+"="+row[1])
	}
	want := "pending=3,scoring=1,failed=2,zzz=1"
	if strings.Join(got, ",") != want {
		t.Fatalf("rows = %v, want %s", got, want)
	}
}

func TestFormatClipRange(t *testing.T) {
	if got := formatClipRange(0, 30000); got != "0:00:00-0:00:30" {
		t.Fatalf("unexpected range %q", got)
	}
	if got := formatClipRange(3_725_000, 3_755_500); got != "1:02:05-1:02:35" {
		t.Fatalf("unexpected range %q", got)
	}
}

func TestFormatLogEvent(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)
	line := formatLogEvent(api.LogEvent{
		Timestamp: ts,
		Level:     "info",
		Message:   "stage completed",
		Component: "workflow",
		Stage:     "scoring",
		ItemID:    12,
		Fields:    map[string]string{"elapsed": "2s", "attempt": "1"},
	})
	want := "2026-03-04 05:06:07 INFO  [workflow] item=12 stage=scoring stage completed attempt=1 elapsed=2s"
	if line != want {
		t.Fatalf("formatLogEvent = %q, want %q", line, want)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("one\ntwo"); got != "one …" {
		t.Fatalf("unexpected first line %q", got)
	}
	if got := firstLine("  single  "); got != "single" {
		t.Fatalf("unexpected first line %q", got)
	}
}
