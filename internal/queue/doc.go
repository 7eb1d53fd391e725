// Package queue persists VOD jobs in SQLite and exposes helpers for driving
// their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-item recovery and the status
// transitions of automatic mode. Alongside queue items it keeps one stage
// run per (item, stage), which is the per-VOD stage status and output text
// shown to operators, and a bounded log of events received from the backend
// socket.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
