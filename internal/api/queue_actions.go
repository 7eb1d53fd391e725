package api

import (
	"context"

	"vodpipe/internal/queue"
)

// QueueActionService captures queue operations needed by per-item retry workflows.
type QueueActionService interface {
	Describe(ctx context.Context, id int64) (*QueueItemResponse, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
}

type RetryItemOutcome string

const (
	RetryItemUpdated   RetryItemOutcome = "retried"
	RetryItemNotFound  RetryItemOutcome = "not_found"
	RetryItemNotFailed RetryItemOutcome = "not_failed"
)

type RetryItemResult struct {
	ID        int64            `json:"id"`
	Outcome   RetryItemOutcome `json:"outcome"`
	NewStatus string           `json:"newStatus,omitempty"`
}

type RetryItemsResult struct {
	UpdatedCount int64             `json:"updatedCount"`
	Items        []RetryItemResult `json:"items"`
}

// RetryFailedItemsByID validates IDs and retries only failed items. The new
// status is the ready status of the stage that failed.
func RetryFailedItemsByID(ctx context.Context, service QueueActionService, ids []int64) (RetryItemsResult, error) {
	result := RetryItemsResult{Items: make([]RetryItemResult, 0, len(ids))}
	for _, id := range ids {
		desc, err := service.Describe(ctx, id)
		if err != nil {
			return RetryItemsResult{}, err
		}
		if desc == nil {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFound})
			continue
		}
		status, ok := queue.ParseStatus(desc.Item.Status)
		if !ok || status != queue.StatusFailed {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFailed})
			continue
		}
		updated, err := service.Retry(ctx, []int64{id})
		if err != nil {
			return RetryItemsResult{}, err
		}
		if updated == 0 {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFailed})
			continue
		}
		result.UpdatedCount += updated
		entry := RetryItemResult{ID: id, Outcome: RetryItemUpdated}
		if after, err := service.Describe(ctx, id); err == nil && after != nil {
			entry.NewStatus = after.Item.Status
		}
		result.Items = append(result.Items, entry)
	}
	return result, nil
}

// QueueRemoveService captures queue operations needed by per-item remove workflows.
type QueueRemoveService interface {
	Remove(ctx context.Context, ids []int64) (int64, error)
}

type RemoveItemOutcome string

const (
	RemoveItemRemoved  RemoveItemOutcome = "removed"
	RemoveItemNotFound RemoveItemOutcome = "not_found"
)

type RemoveItemResult struct {
	ID      int64             `json:"id"`
	Outcome RemoveItemOutcome `json:"outcome"`
}

type RemoveItemsResult struct {
	RemovedCount int64              `json:"removedCount"`
	Items        []RemoveItemResult `json:"items"`
}

// RemoveItemsByID removes items one at a time so each ID reports its own outcome.
func RemoveItemsByID(ctx context.Context, service QueueRemoveService, ids []int64) (RemoveItemsResult, error) {
	result := RemoveItemsResult{Items: make([]RemoveItemResult, 0, len(ids))}
	for _, id := range ids {
		removed, err := service.Remove(ctx, []int64{id})
		if err != nil {
			return RemoveItemsResult{}, err
		}
		outcome := RemoveItemNotFound
		if removed > 0 {
			result.RemovedCount += removed
			outcome = RemoveItemRemoved
		}
		result.Items = append(result.Items, RemoveItemResult{ID: id, Outcome: outcome})
	}
	return result, nil
}
