// Package notifications delivers workflow events to ntfy.
//
// The ntfy topic comes from the notifications section of config.toml; each
// event family has its own toggle and the service degrades to a no-op when no
// topic is set. Workflow code depends only on the Service interface.
package notifications
