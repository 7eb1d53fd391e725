package events_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"vodpipe/internal/events"
)

const openPacket = `0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`

func socketURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/socket.io/?EIO=4&transport=websocket"
}

func TestListenerDeliversEvents(t *testing.T) {
	received := make(chan string, 8)
	srv := httptest.NewServer(websocket.Server{Handler: func(ws *websocket.Conn) {
		_ = websocket.Message.Send(ws, openPacket)
		var msg string
		if websocket.Message.Receive(ws, &msg) != nil {
			return
		}
		received <- msg
		_ = websocket.Message.Send(ws, `40{"sid":"s1"}`)
		_ = websocket.Message.Send(ws, "2")
		if websocket.Message.Receive(ws, &msg) != nil {
			return
		}
		received <- msg
		_ = websocket.Message.Send(ws, `42["log",{"level":"info","msg":"ffmpeg done","timestamp":"2024-01-01T00:00:00Z"}]`)
		_ = websocket.Message.Send(ws, `42/other,["log",{"msg":"wrong namespace"}]`)
		_ = websocket.Message.Send(ws, `42["clip_done",{"url":"https://cdn/c.mp4","duration":30,"source":"manual"}]`)
		for websocket.Message.Receive(ws, &msg) == nil {
		}
	}})
	defer srv.Close()

	hub := events.NewHub(16)
	sink := make(chan events.Event, 8)
	require.NoError(t, hub.Subscribe("test", sink))

	listener := events.NewListener(socketURL(srv.URL), srv.URL, hub, events.WithReconnectDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	assert.Equal(t, "40", waitString(t, received))
	assert.Equal(t, "3", waitString(t, received))

	logEvent := waitEvent(t, sink)
	line, err := logEvent.Log()
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg done", line.Msg)

	clipEvent := waitEvent(t, sink)
	clip, err := clipEvent.ClipDone()
	require.NoError(t, err)
	assert.Equal(t, events.SourceManual, clip.Source)
	assert.True(t, listener.Connected())
	assert.Equal(t, uint64(1), listener.Sessions())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
	assert.False(t, listener.Connected())
	assert.Len(t, hub.Recent(0), 2)
}

func TestListenerReconnectsAfterServerClose(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(websocket.Server{Handler: func(ws *websocket.Conn) {
		connections.Add(1)
		_ = websocket.Message.Send(ws, openPacket)
		var msg string
		_ = websocket.Message.Receive(ws, &msg)
		_ = websocket.Message.Send(ws, "1")
	}})
	defer srv.Close()

	listener := events.NewListener(socketURL(srv.URL), srv.URL, events.NewHub(1), events.WithReconnectDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = listener.Run(ctx) }()

	require.Eventually(t, func() bool { return connections.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
}

func TestListenerConnectErrorEndsSession(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(websocket.Server{Handler: func(ws *websocket.Conn) {
		connections.Add(1)
		_ = websocket.Message.Send(ws, openPacket)
		var msg string
		_ = websocket.Message.Receive(ws, &msg)
		_ = websocket.Message.Send(ws, `44{"message":"not authorized"}`)
		for websocket.Message.Receive(ws, &msg) == nil {
		}
	}})
	defer srv.Close()

	listener := events.NewListener(socketURL(srv.URL), srv.URL, events.NewHub(1), events.WithReconnectDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = listener.Run(ctx) }()

	require.Eventually(t, func() bool { return connections.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, listener.Sessions())
}

func waitString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client packet")
		return ""
	}
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}
