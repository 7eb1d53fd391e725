package queueaccess

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"vodpipe/internal/api"
	"vodpipe/internal/apiclient"
	"vodpipe/internal/queue"
)

// Access provides queue operations whether or not the daemon is running.
type Access interface {
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id int64) (*api.QueueItemResponse, error)
	Add(ctx context.Context, vodURL, mode string) (api.QueueItem, error)
	Retry(ctx context.Context, ids []int64) (api.RetryItemsResult, error)
	Remove(ctx context.Context, ids []int64) (api.RemoveItemsResult, error)
	// Remote reports whether calls go through the daemon API.
	Remote() bool
}

// NewAPIAccess returns an Access backed by the daemon HTTP API.
func NewAPIAccess(client *apiclient.Client) Access {
	return &apiAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct database access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{service: api.NewQueueService(store)}
}

type apiAccess struct {
	client *apiclient.Client
}

func (a *apiAccess) Remote() bool { return true }

func (a *apiAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	return a.client.List(ctx, statuses...)
}

func (a *apiAccess) Describe(ctx context.Context, id int64) (*api.QueueItemResponse, error) {
	return a.client.Describe(ctx, id)
}

func (a *apiAccess) Add(ctx context.Context, vodURL, mode string) (api.QueueItem, error) {
	return a.client.Add(ctx, vodURL, mode)
}

// Retry with no ids retries every failed item.
func (a *apiAccess) Retry(ctx context.Context, ids []int64) (api.RetryItemsResult, error) {
	if len(ids) == 0 {
		failed, err := a.client.List(ctx, string(queue.StatusFailed))
		if err != nil {
			return api.RetryItemsResult{}, err
		}
		for _, item := range failed {
			ids = append(ids, item.ID)
		}
	}
	result := api.RetryItemsResult{Items: make([]api.RetryItemResult, 0, len(ids))}
	for _, id := range ids {
		resp, err := a.client.Retry(ctx, id)
		switch {
		case apiclient.IsNotFound(err):
			result.Items = append(result.Items, api.RetryItemResult{ID: id, Outcome: api.RetryItemNotFound})
		case isConflict(err):
			result.Items = append(result.Items, api.RetryItemResult{ID: id, Outcome: api.RetryItemNotFailed})
		case err != nil:
			return api.RetryItemsResult{}, err
		default:
			result.UpdatedCount += resp.UpdatedCount
			result.Items = append(result.Items, resp.Items...)
		}
	}
	return result, nil
}

func (a *apiAccess) Remove(ctx context.Context, ids []int64) (api.RemoveItemsResult, error) {
	result := api.RemoveItemsResult{Items: make([]api.RemoveItemResult, 0, len(ids))}
	for _, id := range ids {
		resp, err := a.client.Remove(ctx, id)
		if apiclient.IsNotFound(err) {
			result.Items = append(result.Items, api.RemoveItemResult{ID: id, Outcome: api.RemoveItemNotFound})
			continue
		}
		if err != nil {
			return api.RemoveItemsResult{}, err
		}
		result.RemovedCount += resp.RemovedCount
		result.Items = append(result.Items, resp.Items...)
	}
	return result, nil
}

type storeAccess struct {
	service *api.QueueService
}

func (a *storeAccess) Remote() bool { return false }

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	var filters []queue.Status
	for _, s := range statuses {
		parsed, ok := queue.ParseStatus(s)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		filters = append(filters, parsed)
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.QueueItemResponse, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Add(ctx context.Context, vodURL, mode string) (api.QueueItem, error) {
	return a.service.Add(ctx, api.AddVODRequest{VODURL: vodURL, Mode: mode})
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (api.RetryItemsResult, error) {
	if len(ids) == 0 {
		failed, err := a.service.List(ctx, queue.StatusFailed)
		if err != nil {
			return api.RetryItemsResult{}, err
		}
		for _, item := range failed {
			ids = append(ids, item.ID)
		}
	}
	return api.RetryFailedItemsByID(ctx, a.service, ids)
}

func (a *storeAccess) Remove(ctx context.Context, ids []int64) (api.RemoveItemsResult, error) {
	return api.RemoveItemsByID(ctx, a.service, ids)
}

func isConflict(err error) bool {
	var statusErr *apiclient.StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict
}
