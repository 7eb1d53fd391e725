// Package queueaccess gives CLI commands one queue interface that talks to the
// daemon API when it is up and to the SQLite store when it is not.
package queueaccess
