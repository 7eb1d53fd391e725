package api

import (
	"context"
	"strings"

	"vodpipe/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Item, error)
	StageRuns(ctx context.Context, itemID int64) ([]queue.StageRun, error)
}

// QueueWriter covers the mutations exposed over the API.
type QueueWriter interface {
	NewVOD(ctx context.Context, vodURL string, mode queue.Mode) (*queue.Item, error)
	RetryFailed(ctx context.Context, ids ...int64) (int64, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

// QueueStore is satisfied by *queue.Store.
type QueueStore interface {
	QueueReader
	QueueWriter
}

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	store QueueStore
}

// NewQueueService constructs a QueueService around the provided store.
func NewQueueService(store QueueStore) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue items filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	items, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single queue item with its stage runs. A missing item
// yields nil, nil.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueItemResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	runs, err := s.store.StageRuns(ctx, id)
	if err != nil {
		return nil, err
	}
	return &QueueItemResponse{Item: FromQueueItem(item), Stages: FromStageRuns(runs)}, nil
}

// Add creates a job from an API request.
func (s *QueueService) Add(ctx context.Context, req AddVODRequest) (QueueItem, error) {
	mode, err := queue.ParseMode(req.Mode)
	if err != nil {
		return QueueItem{}, err
	}
	item, err := s.store.NewVOD(ctx, strings.TrimSpace(req.VODURL), mode)
	if err != nil {
		return QueueItem{}, err
	}
	return FromQueueItem(item), nil
}

// Retry resets the given failed items.
func (s *QueueService) Retry(ctx context.Context, ids []int64) (int64, error) {
	return s.store.RetryFailed(ctx, ids...)
}

// Remove deletes the given items and reports how many existed.
func (s *QueueService) Remove(ctx context.Context, ids []int64) (int64, error) {
	var removed int64
	for _, id := range ids {
		ok, err := s.store.Remove(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
