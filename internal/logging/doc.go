// Package logging assembles structured slog loggers and formatting helpers used
// across vodpipe.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so stage code automatically tags log lines with
// queue item IDs, stages, lanes and correlation IDs. The StreamHub keeps a
// bounded buffer of recent records for the daemon's /api/logs endpoint.
package logging
