// Package apiclient is the CLI's HTTP client for the daemon API.
//
// Every call carries the configured bearer token and decodes non-2xx bodies
// into StatusError. IsUnavailable lets callers fall back to direct store
// access when no daemon is listening.
package apiclient
