// Package logs reads the daemon log file directly.
//
// The CLI uses it when no daemon API answers: Tail returns the last lines of
// the file and, in follow mode, polls for appended lines from an offset.
// ParseLine turns JSON-format lines back into logging.LogEvent values so the
// same item and component filters apply as for the API stream.
package logs
