// Package pipeline runs the VOD pipeline stages against the media backend.
//
// The Runner executes one stage for one queue item: it checks the stage's
// precondition, records the run in the queue store, calls the backend and
// stores the formatted output. Manual mode calls Runner.Run directly from the
// CLI or the daemon API; automatic mode drives the same code through the
// stage.Handler adapters returned by Handlers.
//
// Panel operations (LoadClips, SelectSegment, SelectPolished, SetSegmentIndex
// and Snapshot) manage the per-item clip and segment selection that the polish
// and upload stages consume.
package pipeline
