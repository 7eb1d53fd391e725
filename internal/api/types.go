package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a VOD job in a transport-friendly format.
type QueueItem struct {
	ID                int64         `json:"id"`
	VODURL            string        `json:"vodUrl"`
	VODID             string        `json:"vodId,omitempty"`
	Mode              string        `json:"mode"`
	Status            string        `json:"status"`
	ProcessingLane    string        `json:"processingLane"`
	SegmentIndex      string        `json:"segmentIndex,omitempty"`
	SelectedSegmentID string        `json:"selectedSegmentId,omitempty"`
	PolishedPath      string        `json:"polishedPath,omitempty"`
	Clips             []Clip        `json:"clips,omitempty"`
	Progress          QueueProgress `json:"progress"`
	ErrorMessage      string        `json:"errorMessage,omitempty"`
	LastHeartbeat     string        `json:"lastHeartbeat,omitempty"`
	CreatedAt         string        `json:"createdAt,omitempty"`
	UpdatedAt         string        `json:"updatedAt,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Clip is one approved clip known for a VOD.
type Clip struct {
	SegmentID  string   `json:"segmentId"`
	ClipID     string   `json:"clipId,omitempty"`
	Label      string   `json:"label,omitempty"`
	StartMS    int64    `json:"startMs"`
	EndMS      int64    `json:"endMs"`
	FinalScore *float64 `json:"finalScore,omitempty"`
	Polished   bool     `json:"polished"`
	PreviewURL string   `json:"previewUrl,omitempty"`
}

// StageRun reports the last execution of one stage.
type StageRun struct {
	Stage      string `json:"stage"`
	Label      string `json:"label"`
	Lane       string `json:"lane"`
	Status     string `json:"status"`
	Output     string `json:"output,omitempty"`
	Attempts   int    `json:"attempts"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool                `json:"running"`
	QueueStats  map[string]int      `json:"queueStats"`
	LastError   string              `json:"lastError,omitempty"`
	LastItem    *QueueItem          `json:"lastItem,omitempty"`
	StageHealth []StageHealth       `json:"stageHealth"`
	Lanes       map[string][]string `json:"lanes,omitempty"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// CheckResult is one preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// EventsStatus describes the backend socket subscription.
type EventsStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Sessions  uint64 `json:"sessions"`
	Received  uint64 `json:"received"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	LogPath      string         `json:"logPath,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
	Events       EventsStatus   `json:"events"`
	Preflight    []CheckResult  `json:"preflight"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item and its stage runs.
type QueueItemResponse struct {
	Item   QueueItem  `json:"item"`
	Stages []StageRun `json:"stages"`
}

// AddVODRequest is the body of POST /api/queue.
type AddVODRequest struct {
	VODURL string `json:"vod_url"`
	Mode   string `json:"mode,omitempty"`
}

// StageRunRequest is the optional body of POST /api/queue/{id}/stages/{stage}.
type StageRunRequest struct {
	Force *bool `json:"force,omitempty"`
}

// StageRunAccepted acknowledges a stage run started in the background.
type StageRunAccepted struct {
	ItemID int64  `json:"itemId"`
	Stage  string `json:"stage"`
}

// LogEvent is one structured daemon log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	ItemID    int64             `json:"itemId,omitempty"`
	Lane      string            `json:"lane,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse is a page of log events plus the cursor for the next fetch.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// BackendEvent is a persisted event received from the backend socket.
type BackendEvent struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Payload    string `json:"payload"`
	ReceivedAt string `json:"receivedAt"`
}

// EventsResponse wraps the most recent backend events, oldest first.
type EventsResponse struct {
	Events []BackendEvent `json:"events"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
