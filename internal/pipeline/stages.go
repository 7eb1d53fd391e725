package pipeline

import (
	"context"
	"errors"

	"vodpipe/internal/backend"
	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
	"vodpipe/internal/vodid"
)

// Operator-facing precondition messages.
const (
	msgMissingURL       = "Please enter a VOD URL"
	msgMissingVODID     = "Missing vod_id"
	msgMissingVODOrURL  = "Missing vod_id / vod_url"
	msgFramesFirst      = "Extract frames must succeed before scoring"
	msgMissingSegmentID = "Missing segment_id"
	msgMissingPolished  = "Missing polishedPath"
)

type definition struct {
	// check returns the precondition message, or "" when the stage may run.
	check func(r *Runner, item *queue.Item, runs map[string]queue.StageRun) string
	exec  func(ctx context.Context, r *Runner, item *queue.Item, opts runOptions) (string, error)
}

var definitions = map[string]definition{
	queue.StageIngest:        {check: checkURL, exec: execIngest},
	queue.StageTranscribe:    {check: checkVODID, exec: execTranscribe},
	queue.StageExtractFrames: {check: checkVODOrURL, exec: execExtract},
	queue.StageScoring:       {check: checkScoring, exec: execScoring},
	queue.StageWriteResults:  {check: checkVODID, exec: execWriteResults},
	queue.StageSecondFilter:  {check: checkVODID, exec: execSecondFilter},
	queue.StagePushSegments:  {check: checkVODID, exec: execPush},
	queue.StagePolish:        {check: checkSegment, exec: execPolish},
	queue.StageUpload:        {check: checkUpload, exec: execUpload},
}

// ResolvedVODID returns the stored VOD id, or the one parsed from the URL.
func ResolvedVODID(item *queue.Item) string {
	return vodid.Resolve(item.VODID, item.VODURL)
}

func checkURL(_ *Runner, item *queue.Item, _ map[string]queue.StageRun) string {
	if item.VODURL == "" {
		return msgMissingURL
	}
	return ""
}

func checkVODID(_ *Runner, item *queue.Item, _ map[string]queue.StageRun) string {
	if ResolvedVODID(item) == "" {
		return msgMissingVODID
	}
	return ""
}

func checkVODOrURL(_ *Runner, item *queue.Item, _ map[string]queue.StageRun) string {
	if ResolvedVODID(item) == "" && item.VODURL == "" {
		return msgMissingVODOrURL
	}
	return ""
}

func checkScoring(r *Runner, item *queue.Item, runs map[string]queue.StageRun) string {
	if msg := checkVODID(r, item, runs); msg != "" {
		return msg
	}
	if runs[queue.StageExtractFrames].Status != queue.StageSuccess {
		return msgFramesFirst
	}
	return ""
}

func checkSegment(_ *Runner, item *queue.Item, _ map[string]queue.StageRun) string {
	if item.SelectedSegmentID == "" {
		return msgMissingSegmentID
	}
	return ""
}

func checkUpload(_ *Runner, item *queue.Item, _ map[string]queue.StageRun) string {
	if item.PolishedPath == "" {
		return msgMissingPolished
	}
	if ResolvedVODID(item) == "" {
		return msgMissingVODID
	}
	return ""
}

func execIngest(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	resp, err := r.client.IngestVOD(ctx, backend.IngestRequest{
		VODURL:          item.VODURL,
		SegmentDuration: r.cfg.Segmenting.SegmentDuration,
		Overlap:         r.cfg.Segmenting.Overlap,
	})
	if err != nil {
		return "", err
	}
	item.VODID = resp.VODID
	if item.VODID == "" {
		item.VODID = vodid.FromURL(item.VODURL)
	}
	return formatIngest(resp), nil
}

func execTranscribe(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	resp, err := r.client.TranscribeVOD(ctx, ResolvedVODID(item))
	if err != nil {
		return "", err
	}
	return formatTranscribe(resp), nil
}

func execExtract(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	req := backend.ExtractFramesRequest{
		SegmentDuration: r.cfg.Segmenting.SegmentDuration,
		Overlap:         r.cfg.Segmenting.Overlap,
		FPS:             r.cfg.Segmenting.FPS,
	}
	if id := ResolvedVODID(item); id != "" {
		req.VODID = id
	} else {
		req.VODURL = item.VODURL
	}
	resp, err := r.client.ExtractFrames(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.VODID != "" {
		item.VODID = resp.VODID
	}
	return formatExtract(resp), nil
}

func execScoring(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	resp, err := r.client.ScoreVOD(ctx, backend.ScoreRequest{VODID: ResolvedVODID(item)})
	if err != nil {
		return "", err
	}
	return formatScore(resp), nil
}

func execWriteResults(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	resp, err := r.client.WriteResults(ctx, ResolvedVODID(item))
	if err != nil {
		return "", err
	}
	return formatWrite(resp), nil
}

func execSecondFilter(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	id := ResolvedVODID(item)
	resp, err := r.client.FilterSegments(ctx, id)
	if err != nil {
		return "", err
	}
	return formatFilter(id, r.cfg.Backend.ShadowMode, resp), nil
}

func execPush(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	resp, err := r.client.PushGoodSegments(ctx, backend.PushRequest{StreamID: vodid.StreamID(ResolvedVODID(item))})
	if err != nil {
		return "", err
	}
	return formatPush(resp), nil
}

func execPolish(ctx context.Context, r *Runner, item *queue.Item, opts runOptions) (string, error) {
	segmentID := item.SelectedSegmentID
	resp, err := r.client.PolishWithSilence(ctx, segmentID, opts.force)
	if err != nil {
		return "", err
	}

	outPath := resp.Output
	if outPath == "" {
		outPath = vodid.PolishedFilename(ResolvedVODID(item), item.SegmentIndex)
	}
	item.PolishedPath = outPath
	if err := markPolished(item, map[string]string{segmentID: outPath}); err != nil {
		return "", err
	}

	if ResolvedVODID(item) != "" {
		if _, err := r.refreshClips(ctx, item); err != nil && !errors.Is(err, backend.ErrNotModified) {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "clip refresh after polish failed", "clip_refresh",
				logging.String(logging.FieldSegmentID, segmentID),
				logging.String(logging.FieldErrorHint, "run 'vodpipe clips list' to reload"),
				logging.Error(err),
			)
		}
	}
	return formatPolish(resp), nil
}

func execUpload(ctx context.Context, r *Runner, item *queue.Item, _ runOptions) (string, error) {
	resp, err := r.client.UploadMedia(ctx, uploadRequest(r.cfg.Backend.UserID, ResolvedVODID(item), item.SegmentIndex, item.PolishedPath))
	if err != nil {
		return "", err
	}
	return formatUpload(resp), nil
}

// uploadRequest prefers the polished file path and falls back to letting the
// backend resolve the default polished filename.
func uploadRequest(userID, vodID, segmentIndex, polishedPath string) backend.UploadRequest {
	req := backend.UploadRequest{
		ClipID: vodid.ClipID(vodID, segmentIndex),
		UserID: userID,
	}
	if path := vodid.NormalizeFilePath(polishedPath); path != "" {
		req.FilePath = path
		return req
	}
	req.VODID = vodID
	req.SegmentFile = vodid.PolishedFilename(vodID, segmentIndex)
	return req
}

// markPolished sets the preview URL of the listed clips in the cached list.
func markPolished(item *queue.Item, outputs map[string]string) error {
	clips, err := item.Clips()
	if err != nil {
		return err
	}
	changed := false
	for i := range clips {
		if out, ok := outputs[clips[i].SegmentID]; ok {
			clips[i].SilencePreviewURL = out
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return item.SetClips(clips)
}
