// Package backend is the typed HTTP client for the external media-processing
// service that performs ingest, transcription, frame extraction, scoring,
// polishing and upload.
//
// Every call is a synchronous JSON request/response pair. Non-2xx responses
// surface as *StatusError whose message is the response body text (or
// "Request failed: <status>" when the body is empty) so operators see what the
// backend said. Transport failures are tagged services.ErrTransient.
package backend
