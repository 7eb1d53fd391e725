package backend

// IngestRequest starts the VOD clipper.
type IngestRequest struct {
	VODURL          string `json:"vod_url"`
	SegmentDuration int    `json:"segment_duration"`
	Overlap         int    `json:"overlap"`
}

// IngestResponse reports the segmented VOD.
type IngestResponse struct {
	Success   *bool  `json:"success,omitempty"`
	VODID     string `json:"vodId,omitempty"`
	OutputDir string `json:"outputDir,omitempty"`
	Segments  *int   `json:"segments,omitempty"`
	Manifest  string `json:"manifest,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TranscribeResponse reports the transcription result.
type TranscribeResponse struct {
	Success        *bool  `json:"success,omitempty"`
	Message        string `json:"message,omitempty"`
	TranscriptPath string `json:"transcriptPath,omitempty"`
}

// ExtractFramesRequest asks for frame sampling. Exactly one of VODID and
// VODURL is sent.
type ExtractFramesRequest struct {
	SegmentDuration int    `json:"segment_duration"`
	Overlap         int    `json:"overlap"`
	FPS             int    `json:"fps"`
	VODID           string `json:"vod_id,omitempty"`
	VODURL          string `json:"vod_url,omitempty"`
}

// ExtractFramesResponse reports frame extraction artifacts.
type ExtractFramesResponse struct {
	Success       *bool  `json:"success,omitempty"`
	VODID         string `json:"vodId,omitempty"`
	FramesDir     string `json:"framesDir,omitempty"`
	CSVPath       string `json:"csvPath,omitempty"`
	TopFramesJSON string `json:"topFramesJson,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ScoreRequest triggers scoring. The optional fields are persisted by the
// backend when present.
type ScoreRequest struct {
	VODID        string `json:"vod_id"`
	StreamerName string `json:"streamer_name,omitempty"`
	StreamID     string `json:"stream_id,omitempty"`
	Category     string `json:"category,omitempty"`
}

// ScoreResponse reports scoring ingestion counts.
type ScoreResponse struct {
	Success       *bool  `json:"success,omitempty"`
	VODID         string `json:"vodId,omitempty"`
	SegmentsFound *int   `json:"segmentsFound,omitempty"`
	Ingested      *int   `json:"ingested,omitempty"`
	Error         string `json:"error,omitempty"`
}

// WriteResultsResponse reports the persisted results row.
type WriteResultsResponse struct {
	Success *bool  `json:"success,omitempty"`
	VODID   string `json:"vodId,omitempty"`
	RowID   string `json:"rowId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Filter decisions returned by the adaptive filter.
const (
	DecisionAccept     = "accept"
	DecisionFlagReview = "flag_review"
	DecisionReject     = "reject"
)

// FilterResult is one scored segment of the adaptive filter.
type FilterResult struct {
	SegmentID      string `json:"segment_id,omitempty"`
	FilterDecision string `json:"filter_decision"`
}

// FilterResponse lists adaptive filter decisions.
type FilterResponse struct {
	Count   int            `json:"count"`
	Results []FilterResult `json:"results"`
}

// Tally counts decisions by kind.
func (r FilterResponse) Tally() (accept, flagged, rejected int) {
	for _, result := range r.Results {
		switch result.FilterDecision {
		case DecisionAccept:
			accept++
		case DecisionFlagReview:
			flagged++
		case DecisionReject:
			rejected++
		}
	}
	return accept, flagged, rejected
}

// PushRequest pushes approved segments. From and To bound the optional window.
type PushRequest struct {
	StreamID string `json:"stream_id"`
	From     *int64 `json:"from,omitempty"`
	To       *int64 `json:"to,omitempty"`
}

// PushResponse reports how many segments became clips.
type PushResponse struct {
	Selected int              `json:"selected"`
	Clips    []map[string]any `json:"clips"`
}

// Clip is an approved segment listed for a VOD.
type Clip struct {
	ClipID            string   `json:"clip_id"`
	SegmentID         string   `json:"segment_id"`
	StartMS           int64    `json:"start_ms"`
	EndMS             int64    `json:"end_ms"`
	FinalScore        *float64 `json:"final_score"`
	SilencePreviewURL string   `json:"silence_preview_url,omitempty"`
	MediaStatus       string   `json:"media_status,omitempty"`
	Label             string   `json:"label"`
}

// Polished reports whether the clip has a polished rendition.
func (c Clip) Polished() bool {
	return c.SilencePreviewURL != ""
}

// PolishRequest runs silence removal and polish on a segment.
type PolishRequest struct {
	Force bool `json:"force"`
}

// PolishResponse reports the polished output.
type PolishResponse struct {
	Status      string `json:"status,omitempty"`
	SegmentID   string `json:"segment_id,omitempty"`
	Output      string `json:"output,omitempty"`
	UsedOverlay *bool  `json:"used_overlay,omitempty"`
	EnsuredEDL  *bool  `json:"ensured_edl,omitempty"`
	Error       string `json:"error,omitempty"`
}

// UploadRequest uploads a polished clip. FilePath is preferred; VODID and
// SegmentFile let the backend resolve the file itself.
type UploadRequest struct {
	ClipID      string `json:"clip_id"`
	UserID      string `json:"user_id"`
	FilePath    string `json:"file_path,omitempty"`
	VODID       string `json:"vod_id,omitempty"`
	SegmentFile string `json:"segment_file,omitempty"`
}

// UploadResponse reports the hosted media.
type UploadResponse struct {
	PublicID  string `json:"cloudinary_public_id,omitempty"`
	URL       string `json:"cloudinary_url,omitempty"`
	ExpiresAt string `json:"media_expires_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StartStreamResponse reports live capture start. Fallback means the stream is
// offline and the server switched to the latest VOD.
type StartStreamResponse struct {
	Fallback bool   `json:"fallback,omitempty"`
	VODURL   string `json:"vod_url,omitempty"`
	URL      string `json:"url,omitempty"`
	Path     string `json:"path,omitempty"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ManualClipResponse reports a manually cut clip.
type ManualClipResponse struct {
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// Location returns the clip URL, falling back to the server path.
func (r ManualClipResponse) Location() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Path
}
