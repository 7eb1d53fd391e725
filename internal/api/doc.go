// Package api defines wire-format types and converters for the daemon HTTP
// API. It translates queue, workflow and preflight models into transport
// DTOs that the CLI can render without touching the store.
//
// # Key Types
//
// QueueItem: a VOD job with progress, lane and the cached clip list.
//
// QueueItemResponse: one job plus its stage runs in pipeline order.
//
// DaemonStatus: workflow summary, socket state and preflight results.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// # Services
//
// QueueService wraps the store for list, describe, add, retry and remove.
// RetryFailedItemsByID and RemoveItemsByID report a per-ID outcome.
//
// DTOs use camelCase JSON tags, except request bodies that mirror the
// backend's snake_case. Timestamps use RFC3339 with milliseconds.
package api
