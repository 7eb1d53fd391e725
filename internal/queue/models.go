package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vodpipe/internal/backend"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusManual       Status = "manual"
	StatusPending      Status = "pending"
	StatusIngesting    Status = "ingesting"
	StatusIngested     Status = "ingested"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusExtracting   Status = "extracting"
	StatusExtracted    Status = "extracted"
	StatusScoring      Status = "scoring"
	StatusScored       Status = "scored"
	StatusWriting      Status = "writing"
	StatusWritten      Status = "written"
	StatusFiltering    Status = "filtering"
	StatusFiltered     Status = "filtered"
	StatusPushing      Status = "pushing"
	StatusPushed       Status = "pushed"
	StatusPolishing    Status = "polishing"
	StatusPolished     Status = "polished"
	StatusUploading    Status = "uploading"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Mode selects who drives an item through the stages.
type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

// ParseMode converts a string into a Mode. Empty input selects automatic mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want manual or auto)", value)
	}
}

// Stage keys, in pipeline order.
const (
	StageIngest        = "ingest"
	StageTranscribe    = "transcribe"
	StageExtractFrames = "extract_frames"
	StageScoring       = "scoring"
	StageWriteResults  = "write_results"
	StageSecondFilter  = "second_filter"
	StagePushSegments  = "push_segments"
	StagePolish        = "polish"
	StageUpload        = "upload"
)

// Step ties a stage to the statuses it moves an automatic item through.
type Step struct {
	Stage      string
	Ready      Status
	Processing Status
	Done       Status
	Lane       Lane
}

var steps = []Step{
	{Stage: StageIngest, Ready: StatusPending, Processing: StatusIngesting, Done: StatusIngested, Lane: LaneAnalysis},
	{Stage: StageTranscribe, Ready: StatusIngested, Processing: StatusTranscribing, Done: StatusTranscribed, Lane: LaneAnalysis},
	{Stage: StageExtractFrames, Ready: StatusTranscribed, Processing: StatusExtracting, Done: StatusExtracted, Lane: LaneAnalysis},
	{Stage: StageScoring, Ready: StatusExtracted, Processing: StatusScoring, Done: StatusScored, Lane: LaneAnalysis},
	{Stage: StageWriteResults, Ready: StatusScored, Processing: StatusWriting, Done: StatusWritten, Lane: LaneAnalysis},
	{Stage: StageSecondFilter, Ready: StatusWritten, Processing: StatusFiltering, Done: StatusFiltered, Lane: LaneAnalysis},
	{Stage: StagePushSegments, Ready: StatusFiltered, Processing: StatusPushing, Done: StatusPushed, Lane: LaneAnalysis},
	{Stage: StagePolish, Ready: StatusPushed, Processing: StatusPolishing, Done: StatusPolished, Lane: LaneDelivery},
	{Stage: StageUpload, Ready: StatusPolished, Processing: StatusUploading, Done: StatusCompleted, Lane: LaneDelivery},
}

var allStatuses = []Status{
	StatusManual,
	StatusPending,
	StatusIngesting,
	StatusIngested,
	StatusTranscribing,
	StatusTranscribed,
	StatusExtracting,
	StatusExtracted,
	StatusScoring,
	StatusScored,
	StatusWriting,
	StatusWritten,
	StatusFiltering,
	StatusFiltered,
	StatusPushing,
	StatusPushed,
	StatusPolishing,
	StatusPolished,
	StatusUploading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = func() map[Status]Step {
	set := make(map[Status]Step, len(steps))
	for _, step := range steps {
		set[step.Processing] = step
	}
	return set
}()

// Steps returns the ordered stage lifecycle of automatic mode.
func Steps() []Step {
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return cp
}

// StageKeys returns every stage key in pipeline order.
func StageKeys() []string {
	keys := make([]string, 0, len(steps))
	for _, step := range steps {
		keys = append(keys, step.Stage)
	}
	return keys
}

// StepForStage looks up the lifecycle entry of a stage key.
func StepForStage(stage string) (Step, bool) {
	for _, step := range steps {
		if step.Stage == stage {
			return step, true
		}
	}
	return Step{}, false
}

// StepForStatus returns the step whose ready or processing status matches.
func StepForStatus(status Status) (Step, bool) {
	for _, step := range steps {
		if step.Ready == status || step.Processing == status {
			return step, true
		}
	}
	return Step{}, false
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Manual     int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Item is one VOD job.
type Item struct {
	ID                int64
	VODURL            string
	VODID             string
	Mode              Mode
	Status            Status
	SegmentIndex      string
	SelectedSegmentID string
	PolishedPath      string
	ClipsJSON         string
	ErrorMessage      string
	ProgressStage     string
	ProgressPercent   float64
	ProgressMessage   string
	LastHeartbeat     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsManual reports whether the operator drives the item.
func (i Item) IsManual() bool {
	return i.Mode == ModeManual
}

// Clips decodes the cached clip listing. An empty cache yields an empty list.
func (i Item) Clips() ([]backend.Clip, error) {
	if strings.TrimSpace(i.ClipsJSON) == "" {
		return []backend.Clip{}, nil
	}
	var clips []backend.Clip
	if err := json.Unmarshal([]byte(i.ClipsJSON), &clips); err != nil {
		return nil, fmt.Errorf("decode clips: %w", err)
	}
	if clips == nil {
		clips = []backend.Clip{}
	}
	return clips, nil
}

// SetClips replaces the cached clip listing.
func (i *Item) SetClips(clips []backend.Clip) error {
	if len(clips) == 0 {
		i.ClipsJSON = ""
		return nil
	}
	data, err := json.Marshal(clips)
	if err != nil {
		return fmt.Errorf("encode clips: %w", err)
	}
	i.ClipsJSON = string(data)
	return nil
}

// InitProgress resets progress fields for a new stage.
func (i *Item) InitProgress(stage, message string) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed in stage. The stage key is kept in
// ProgressStage so RetryFailed can resume from it.
func (i *Item) SetFailed(stage, message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressStage = stage
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
}

// Lane partitions automatic mode into analysis and delivery work.
type Lane string

const (
	LaneAnalysis Lane = "analysis"
	LaneDelivery Lane = "delivery"
)

// LaneForItem maps a queue item to its processing lane for observability purposes.
func LaneForItem(item *Item) Lane {
	if item == nil {
		return LaneAnalysis
	}
	switch item.Status {
	case StatusCompleted:
		return LaneDelivery
	case StatusFailed:
		if step, ok := StepForStage(item.ProgressStage); ok {
			return step.Lane
		}
		return LaneAnalysis
	}
	if step, ok := StepForStatus(item.Status); ok {
		return step.Lane
	}
	return LaneAnalysis
}

// StageStatus is the state of one stage for one item.
type StageStatus string

const (
	StageIdle    StageStatus = "idle"
	StageRunning StageStatus = "running"
	StageSuccess StageStatus = "success"
	StageError   StageStatus = "error"
)

// StageRun records the last execution of a stage for an item.
type StageRun struct {
	ItemID     int64
	Stage      string
	Status     StageStatus
	Output     string
	Attempts   int
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// BackendEvent is a persisted event received from the backend socket.
type BackendEvent struct {
	ID         int64
	Name       string
	Payload    string
	ReceivedAt time.Time
}
