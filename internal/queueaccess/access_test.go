package queueaccess_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vodpipe/internal/api"
	"vodpipe/internal/apiclient"
	"vodpipe/internal/queue"
	"vodpipe/internal/queueaccess"
	"vodpipe/internal/testsupport"
)

func TestOpenWithFallbackUsesStoreWhenDaemonDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	client, err := apiclient.New(base, "", time.Second)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}

	session, err := queueaccess.OpenWithFallback(context.Background(), client, func() (*queue.Store, error) {
		return queue.Open(cfg)
	})
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	if session.Access.Remote() {
		t.Fatal("expected store-backed access")
	}

	ctx := context.Background()
	item, err := session.Access.Add(ctx, "https://www.twitch.tv/videos/77", "manual")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.Mode != "manual" || item.Status != string(queue.StatusManual) {
		t.Fatalf("unexpected item: %+v", item)
	}

	items, err := session.Access.List(ctx, []string{"manual"})
	if err != nil || len(items) != 1 {
		t.Fatalf("List = %v, %v", items, err)
	}
	if _, err := session.Access.List(ctx, []string{"archived"}); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	retried, err := session.Access.Retry(ctx, []int64{item.ID})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.UpdatedCount != 0 || retried.Items[0].Outcome != api.RetryItemNotFailed {
		t.Fatalf("unexpected retry result: %+v", retried)
	}

	removed, err := session.Access.Remove(ctx, []int64{item.ID, 999})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.RemovedCount != 1 || removed.Items[1].Outcome != api.RemoveItemNotFound {
		t.Fatalf("unexpected remove result: %+v", removed)
	}
}

func TestOpenWithFallbackPrefersAPI(t *testing.T) {
	var retried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/status":
			_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true})
		case r.URL.Path == "/api/queue" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(api.QueueListResponse{Items: []api.QueueItem{{ID: 3, Status: "failed"}, {ID: 4, Status: "failed"}}})
		case strings.HasSuffix(r.URL.Path, "/retry"):
			retried = append(retried, r.URL.Path)
			if r.URL.Path == "/api/queue/4/retry" {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "queue item is not failed"})
				return
			}
			_ = json.NewEncoder(w).Encode(api.RetryItemsResult{
				UpdatedCount: 1,
				Items:        []api.RetryItemResult{{ID: 3, Outcome: api.RetryItemUpdated, NewStatus: "extracted"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	client, err := apiclient.New(srv.URL, "", time.Second)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}

	session, err := queueaccess.OpenWithFallback(context.Background(), client, func() (*queue.Store, error) {
		t.Fatal("store must not be opened while the daemon answers")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	if !session.Access.Remote() {
		t.Fatal("expected api-backed access")
	}

	result, err := session.Access.Retry(context.Background(), nil)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if len(retried) != 2 {
		t.Fatalf("expected both failed items retried, got %v", retried)
	}
	if result.UpdatedCount != 1 || len(result.Items) != 2 {
		t.Fatalf("unexpected retry result: %+v", result)
	}
	if result.Items[1].Outcome != api.RetryItemNotFailed {
		t.Fatalf("expected conflict mapped to not_failed, got %+v", result.Items[1])
	}
}
