package services_test

import (
	"context"
	"testing"

	"vodpipe/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, 42)
	ctx = services.WithStage(ctx, "transcribe")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "transcribe" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}

func TestLaneAndIntItemID(t *testing.T) {
	ctx := services.WithLane(context.Background(), "delivery")
	if lane, ok := services.LaneFromContext(ctx); !ok || lane != "delivery" {
		t.Fatalf("unexpected lane: %v %v", lane, ok)
	}
	if _, ok := services.ItemIDFromContext(ctx); ok {
		t.Fatal("expected no item id")
	}
	if _, ok := services.RequestIDFromContext(services.WithRequestID(ctx, "")); ok {
		t.Fatal("blank request id must not be stored")
	}
}

func TestScopeIsCopiedOnWrite(t *testing.T) {
	parent := services.WithItemID(context.Background(), 7)
	child := services.WithStage(parent, "polish")

	if got := services.ScopeFrom(child); got.ItemID != 7 || got.Stage != "polish" {
		t.Fatalf("unexpected child scope: %+v", got)
	}
	if got := services.ScopeFrom(parent); got.Stage != "" {
		t.Fatalf("parent scope must not see child stage: %+v", got)
	}
	if got := services.ScopeFrom(nil); got != (services.Scope{}) {
		t.Fatalf("expected empty scope for nil context, got %+v", got)
	}
}
