package api

import (
	"slices"
	"time"

	"vodpipe/internal/backend"
	"vodpipe/internal/logging"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/preflight"
	"vodpipe/internal/queue"
	"vodpipe/internal/stage"
	"vodpipe/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation. A clip
// cache that fails to decode is omitted rather than failing the whole item.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:                item.ID,
		VODURL:            item.VODURL,
		VODID:             pipeline.ResolvedVODID(item),
		Mode:              string(item.Mode),
		Status:            string(item.Status),
		ProcessingLane:    string(queue.LaneForItem(item)),
		SegmentIndex:      item.SegmentIndex,
		SelectedSegmentID: item.SelectedSegmentID,
		PolishedPath:      item.PolishedPath,
		Progress: QueueProgress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		ErrorMessage: item.ErrorMessage,
		CreatedAt:    FormatTime(item.CreatedAt),
		UpdatedAt:    FormatTime(item.UpdatedAt),
	}
	if item.LastHeartbeat != nil {
		dto.LastHeartbeat = FormatTime(*item.LastHeartbeat)
	}
	if clips, err := item.Clips(); err == nil {
		dto.Clips = FromClips(clips)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromClips converts backend clips into API DTOs.
func FromClips(clips []backend.Clip) []Clip {
	if len(clips) == 0 {
		return nil
	}
	out := make([]Clip, 0, len(clips))
	for _, c := range clips {
		out = append(out, Clip{
			SegmentID:  c.SegmentID,
			ClipID:     c.ClipID,
			Label:      c.Label,
			StartMS:    c.StartMS,
			EndMS:      c.EndMS,
			FinalScore: c.FinalScore,
			Polished:   c.Polished(),
			PreviewURL: c.SilencePreviewURL,
		})
	}
	return out
}

// FromStageRuns converts stage runs, keeping the catalogue order.
func FromStageRuns(runs []queue.StageRun) []StageRun {
	out := make([]StageRun, 0, len(runs))
	for _, run := range runs {
		dto := StageRun{
			Stage:    run.Stage,
			Label:    pipeline.Label(run.Stage),
			Status:   string(run.Status),
			Output:   run.Output,
			Attempts: run.Attempts,
		}
		if entry, ok := pipeline.Lookup(run.Stage); ok {
			dto.Lane = string(entry.Lane)
		}
		if run.StartedAt != nil {
			dto.StartedAt = FormatTime(*run.StartedAt)
		}
		if run.FinishedAt != nil {
			dto.FinishedAt = FormatTime(*run.FinishedAt)
		}
		out = append(out, dto)
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
		LastError:   summary.LastError,
	}
	if len(summary.Lanes) > 0 {
		wf.Lanes = make(map[string][]string, len(summary.Lanes))
		for lane, stages := range summary.Lanes {
			wf.Lanes[string(lane)] = slices.Clone(stages)
		}
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem)
		wf.LastItem = &last
	}
	return wf
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a slice in pipeline order.
// Names outside the catalogue sort last, alphabetically.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	order := make(map[string]int)
	for i, key := range queue.StageKeys() {
		order[key] = i
	}
	slices.SortFunc(names, func(a, b string) int {
		ia, okA := order[a]
		ib, okB := order[b]
		switch {
		case okA && okB:
			return ia - ib
		case okA:
			return -1
		case okB:
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromLogEvents converts streamed log events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: evt.Timestamp,
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Stage:     evt.Stage,
			ItemID:    evt.ItemID,
			Lane:      evt.Lane,
			Fields:    evt.Fields,
		})
	}
	return out
}

// FromBackendEvents converts persisted backend events.
func FromBackendEvents(events []queue.BackendEvent) []BackendEvent {
	out := make([]BackendEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, BackendEvent{
			ID:         evt.ID,
			Name:       evt.Name,
			Payload:    evt.Payload,
			ReceivedAt: FormatTime(evt.ReceivedAt),
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
