// Package daemon coordinates the long-running vodpipe process.
//
// It wires configuration, queue storage, the workflow manager, the backend
// event socket and the HTTP API into a single lifecycle with flock-based
// locking to prevent multiple instances. On start it returns interrupted
// items to their ready status, marks orphaned stage runs as errors and prunes
// old log files.
//
// Keep orchestration logic here: individual workflow steps should live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
