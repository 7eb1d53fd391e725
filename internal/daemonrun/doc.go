// Package daemonrun assembles and runs the foreground daemon process: logger,
// queue store, backend client, stage runner, workflow manager and daemon.
package daemonrun
