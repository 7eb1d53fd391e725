// Package preflight provides readiness checks for the media backend, the
// event socket and the filesystem paths vodpipe depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and reports the results in /api/status.
//   - The CLI "vodpipe status" command runs them locally when the daemon is down.
package preflight
