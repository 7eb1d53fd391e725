// Package stage defines the contract between the workflow manager and the
// pipeline stages it drives, plus small helpers shared by stage handlers.
package stage
