// Package workflow advances automatic VOD jobs through the pipeline stages.
//
// The Manager polls the queue, reclaims stale work via heartbeats, and feeds
// items into the registered stage handlers while capturing progress and
// failure metadata. It also aggregates queue stats, calls stage health checks,
// and emits notifications when the queue starts or drains, when a stage fails,
// and when a VOD is fully delivered.
//
// Two lanes run independently: analysis (ingest through push_segments) and
// delivery (polish, upload). Each lane polls for items in the ready statuses
// of its stages, so one VOD can be polished while the next is transcribed.
// Manual jobs are never picked up here; the operator drives them through the
// pipeline runner directly.
package workflow
