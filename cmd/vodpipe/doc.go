// Package main hosts the vodpipe CLI.
//
// Commands either talk to a running daemon over its HTTP API or, when no
// daemon answers, open the queue database and call the backend directly.
// Stage runs started from `vodpipe stage run` always execute in this process.
package main
