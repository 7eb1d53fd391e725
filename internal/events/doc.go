// Package events consumes the media backend's publish/subscribe socket.
//
// The backend speaks Socket.IO v4 over the websocket transport. Listener
// keeps a session open, answers Engine.IO pings and forwards every event
// into a Hub, which fans events out to in-process subscribers without ever
// blocking the socket reader.
package events
