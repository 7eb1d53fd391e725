package services

import "context"

// Scope identifies the work a context belongs to. Zero fields are unset.
type Scope struct {
	ItemID    int64
	Stage     string
	Lane      string
	RequestID string
}

type scopeKey struct{}

// ScopeFrom returns the scope carried by ctx.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	scope, _ := ctx.Value(scopeKey{}).(Scope)
	return scope
}

func withScope(ctx context.Context, edit func(*Scope)) context.Context {
	scope := ScopeFrom(ctx)
	edit(&scope)
	return context.WithValue(ctx, scopeKey{}, scope)
}

// WithItemID scopes ctx to a queue item.
func WithItemID(ctx context.Context, id int64) context.Context {
	return withScope(ctx, func(s *Scope) { s.ItemID = id })
}

// ItemIDFromContext returns the queue item ctx is scoped to.
func ItemIDFromContext(ctx context.Context) (int64, bool) {
	id := ScopeFrom(ctx).ItemID
	return id, id != 0
}

// WithStage scopes ctx to a pipeline stage. An empty stage leaves ctx as is.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Stage = stage })
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := ScopeFrom(ctx).Stage
	return stage, stage != ""
}

// WithLane scopes ctx to a workflow lane (analysis or delivery).
func WithLane(ctx context.Context, lane string) context.Context {
	if lane == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Lane = lane })
}

func LaneFromContext(ctx context.Context) (string, bool) {
	lane := ScopeFrom(ctx).Lane
	return lane, lane != ""
}

// WithRequestID attaches a correlation id, sent to the backend as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.RequestID = id })
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id := ScopeFrom(ctx).RequestID
	return id, id != ""
}
