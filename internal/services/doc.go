// Package services defines shared utilities consumed by the pipeline stages,
// the workflow manager and the backend client.
//
// It provides context helpers that stamp queue item IDs, stage names, lanes and
// correlation identifiers for logging, plus structured error markers and the
// Wrap helper so failures are classified the same way everywhere.
package services
