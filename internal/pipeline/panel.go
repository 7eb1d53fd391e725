package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vodpipe/internal/backend"
	"vodpipe/internal/logging"
	"vodpipe/internal/queue"
	"vodpipe/internal/services"
	"vodpipe/internal/vodid"
)

// ClipsResult reports the outcome of LoadClips.
type ClipsResult struct {
	Clips     []backend.Clip
	Selected  string
	Unchanged bool
}

// StageView pairs a catalogue entry with its recorded run.
type StageView struct {
	Stage
	Run queue.StageRun
}

// Snapshot is the panel view of one item.
type Snapshot struct {
	Item   *queue.Item
	VODID  string
	Stages []StageView
	Clips  []backend.Clip
}

// SetVODURL points item at a new URL and forgets everything derived from the old one.
func (r *Runner) SetVODURL(ctx context.Context, item *queue.Item, vodURL string) error {
	if strings.TrimSpace(vodURL) == "" {
		return services.Wrap(services.ErrValidation, "panel", "set url", msgMissingURL, nil)
	}
	return r.store.SetVODURL(ctx, item, vodURL)
}

// LoadClips fetches the approved clips of item's VOD. A 304 keeps the cached
// list and reports Unchanged. The current selection survives when still
// listed; otherwise the first clip is selected.
func (r *Runner) LoadClips(ctx context.Context, item *queue.Item) (ClipsResult, error) {
	if ResolvedVODID(item) == "" {
		return ClipsResult{}, services.Wrap(services.ErrValidation, "panel", "load clips", "Run ingest or enter a valid VOD URL first.", nil)
	}
	before := *item
	clips, err := r.refreshClips(ctx, item)
	if errors.Is(err, backend.ErrNotModified) {
		cached, cacheErr := item.Clips()
		if cacheErr != nil {
			return ClipsResult{}, cacheErr
		}
		return ClipsResult{Clips: cached, Selected: item.SelectedSegmentID, Unchanged: true}, nil
	}
	if err != nil {
		return ClipsResult{}, err
	}
	if err := r.saveDerived(ctx, &before, item); err != nil {
		return ClipsResult{}, err
	}
	logging.WithContext(services.WithItemID(ctx, item.ID), r.logger).Info("clips loaded",
		logging.String(logging.FieldEventType, "clips_loaded"),
		logging.Int("count", len(clips)),
		logging.String(logging.FieldSegmentID, item.SelectedSegmentID),
	)
	return ClipsResult{Clips: clips, Selected: item.SelectedSegmentID}, nil
}

// refreshClips lists clips and applies them to item without persisting.
func (r *Runner) refreshClips(ctx context.Context, item *queue.Item) ([]backend.Clip, error) {
	clips, err := r.client.ListClips(ctx, ResolvedVODID(item))
	if err != nil {
		return nil, err
	}
	if err := item.SetClips(clips); err != nil {
		return nil, err
	}
	item.SelectedSegmentID = keepSelection(item.SelectedSegmentID, clips)
	return clips, nil
}

func keepSelection(current string, clips []backend.Clip) string {
	if current != "" {
		for _, clip := range clips {
			if clip.SegmentID == current {
				return current
			}
		}
	}
	if len(clips) > 0 {
		return clips[0].SegmentID
	}
	return ""
}

// SelectSegment picks the polish target. The segment index follows the id
// suffix and any previous polished path is dropped.
func (r *Runner) SelectSegment(ctx context.Context, item *queue.Item, segmentID string) error {
	segmentID = strings.TrimSpace(segmentID)
	if segmentID == "" {
		return services.Wrap(services.ErrValidation, "panel", "select segment", msgMissingSegmentID, nil)
	}
	before := *item
	item.SelectedSegmentID = segmentID
	item.PolishedPath = ""
	if idx := vodid.IndexFromSegmentID(segmentID); idx != "" {
		item.SegmentIndex = idx
	}
	return r.saveDerived(ctx, &before, item)
}

// SelectPolished picks the upload source among clips that have a polished
// rendition and points polished_path at it.
func (r *Runner) SelectPolished(ctx context.Context, item *queue.Item, segmentID string) error {
	clips, err := item.Clips()
	if err != nil {
		return err
	}
	segmentID = strings.TrimSpace(segmentID)
	for _, clip := range clips {
		if clip.SegmentID != segmentID {
			continue
		}
		if !clip.Polished() {
			break
		}
		before := *item
		item.SelectedSegmentID = segmentID
		if idx := vodid.IndexFromSegmentID(segmentID); idx != "" {
			item.SegmentIndex = idx
		}
		item.PolishedPath = clip.SilencePreviewURL
		return r.saveDerived(ctx, &before, item)
	}
	return services.Wrap(services.ErrValidation, "panel", "select polished",
		fmt.Sprintf("no polished clip %q; polish it first", segmentID), nil)
}

// SetSegmentIndex sets the zero-padded segment index used by polish and upload naming.
func (r *Runner) SetSegmentIndex(ctx context.Context, item *queue.Item, index string) error {
	index = strings.TrimSpace(index)
	if index == "" {
		return services.Wrap(services.ErrValidation, "panel", "set segment index", "segment index is required", nil)
	}
	before := *item
	item.SegmentIndex = vodid.PadIndex(index)
	return r.saveDerived(ctx, &before, item)
}

// Snapshot returns item with every stage's recorded run.
func (r *Runner) Snapshot(ctx context.Context, item *queue.Item) (Snapshot, error) {
	runs, err := r.stageRunMap(ctx, item.ID)
	if err != nil {
		return Snapshot{}, err
	}
	clips, err := item.Clips()
	if err != nil {
		return Snapshot{}, err
	}
	stages := Stages()
	views := make([]StageView, 0, len(stages))
	for _, stg := range stages {
		views = append(views, StageView{Stage: stg, Run: runs[stg.Key]})
	}
	return Snapshot{Item: item, VODID: ResolvedVODID(item), Stages: views, Clips: clips}, nil
}
