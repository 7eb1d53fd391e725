package api

import (
	"context"
	"testing"

	"vodpipe/internal/queue"
	"vodpipe/internal/testsupport"
)

func newService(t *testing.T) (*QueueService, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return NewQueueService(store), store
}

func TestQueueServiceAddListDescribe(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	auto, err := svc.Add(ctx, AddVODRequest{VODURL: " https://www.twitch.tv/videos/2301 "})
	if err != nil {
		t.Fatalf("Add auto: %v", err)
	}
	if auto.Mode != "auto" || auto.Status != "pending" || auto.VODID != "2301" {
		t.Fatalf("unexpected auto item: %+v", auto)
	}
	manual, err := svc.Add(ctx, AddVODRequest{Mode: "manual"})
	if err != nil {
		t.Fatalf("Add manual: %v", err)
	}
	if manual.Status != "manual" {
		t.Fatalf("unexpected manual status %q", manual.Status)
	}
	if _, err := svc.Add(ctx, AddVODRequest{VODURL: "x", Mode: "sometimes"}); err == nil {
		t.Fatal("expected unknown mode to be rejected")
	}
	if _, err := svc.Add(ctx, AddVODRequest{}); err == nil {
		t.Fatal("expected automatic job without url to be rejected")
	}

	items, err := svc.List(ctx, queue.StatusManual)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != manual.ID {
		t.Fatalf("unexpected filtered list: %+v", items)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 1 || stats["manual"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	desc, err := svc.Describe(ctx, auto.ID)
	if err != nil || desc == nil {
		t.Fatalf("Describe: %v %+v", err, desc)
	}
	if len(desc.Stages) != len(queue.StageKeys()) {
		t.Fatalf("expected a run per stage, got %d", len(desc.Stages))
	}
	missing, err := svc.Describe(ctx, 999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing item, got %+v %v", missing, err)
	}
}

func TestRetryFailedItemsByID(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	failed, err := store.NewVOD(ctx, "https://www.twitch.tv/videos/1", queue.ModeAuto)
	if err != nil {
		t.Fatalf("NewVOD: %v", err)
	}
	failed.SetFailed(queue.StageScoring, "scorer down")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	pending, err := store.NewVOD(ctx, "https://www.twitch.tv/videos/2", queue.ModeAuto)
	if err != nil {
		t.Fatalf("NewVOD: %v", err)
	}

	result, err := RetryFailedItemsByID(ctx, svc, []int64{failed.ID, pending.ID, 404})
	if err != nil {
		t.Fatalf("RetryFailedItemsByID: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("expected one retry, got %d", result.UpdatedCount)
	}
	want := []RetryItemOutcome{RetryItemUpdated, RetryItemNotFailed, RetryItemNotFound}
	for i, outcome := range want {
		if result.Items[i].Outcome != outcome {
			t.Fatalf("item %d: outcome %s want %s", i, result.Items[i].Outcome, outcome)
		}
	}
	if result.Items[0].NewStatus != string(queue.StatusExtracted) {
		t.Fatalf("expected retry to resume at the scoring ready status, got %q", result.Items[0].NewStatus)
	}
}

func TestRemoveItemsByID(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	item, err := store.NewVOD(ctx, "", queue.ModeManual)
	if err != nil {
		t.Fatalf("NewVOD: %v", err)
	}

	result, err := RemoveItemsByID(ctx, svc, []int64{item.ID, item.ID})
	if err != nil {
		t.Fatalf("RemoveItemsByID: %v", err)
	}
	if result.RemovedCount != 1 {
		t.Fatalf("expected one removal, got %d", result.RemovedCount)
	}
	if result.Items[0].Outcome != RemoveItemRemoved || result.Items[1].Outcome != RemoveItemNotFound {
		t.Fatalf("unexpected outcomes: %+v", result.Items)
	}
}
