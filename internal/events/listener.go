package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"vodpipe/internal/config"
	"vodpipe/internal/logging"
	"vodpipe/internal/services"
)

const defaultReconnectDelay = 5 * time.Second

var errServerClosed = errors.New("server closed the session")

// Listener keeps a Socket.IO session to the backend open and publishes every
// received event into a Hub.
type Listener struct {
	socketURL string
	origin    string
	reconnect time.Duration
	hub       *Hub
	logger    *slog.Logger
	connected atomic.Bool
	sessions  atomic.Uint64
}

// ListenerOption customizes a Listener.
type ListenerOption func(*Listener)

// WithReconnectDelay sets the fixed pause between sessions.
func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.reconnect = d
		}
	}
}

// WithListenerLogger attaches a logger.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewListener creates a listener for the websocket endpoint socketURL. origin
// is sent in the handshake and must be an absolute URL.
func NewListener(socketURL, origin string, hub *Hub, opts ...ListenerOption) *Listener {
	l := &Listener{
		socketURL: socketURL,
		origin:    origin,
		reconnect: defaultReconnectDelay,
		hub:       hub,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewListenerFromConfig builds a listener from the events section.
func NewListenerFromConfig(cfg *config.Config, hub *Hub, logger *slog.Logger) (*Listener, error) {
	if cfg == nil {
		return nil, errors.New("events: config is required")
	}
	socketURL, err := cfg.EventsSocketURL()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "events", "socket url", "", err)
	}
	return NewListener(socketURL, cfg.Events.URL, hub,
		WithReconnectDelay(time.Duration(cfg.Events.ReconnectDelay)*time.Second),
		WithListenerLogger(logging.NewComponentLogger(logger, "events")),
	), nil
}

// Connected reports whether a session is currently established.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// Sessions returns how many sessions reached the namespace connect.
func (l *Listener) Sessions() uint64 {
	return l.sessions.Load()
}

// Run holds a session open until ctx is cancelled, reconnecting after a
// fixed delay whenever the session ends.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.session(ctx)
		l.connected.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		logging.WarnWithContext(l.logger, "event socket disconnected", "socket_disconnect",
			logging.Error(err),
			logging.Duration("retry_in", l.reconnect),
			logging.String(logging.FieldErrorHint, "check events.url and backend availability"),
			logging.String(logging.FieldImpact, "backend log lines and clip notifications are paused"),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnect):
		}
	}
}

func (l *Listener) session(ctx context.Context) error {
	wsConfig, err := websocket.NewConfig(l.socketURL, l.origin)
	if err != nil {
		return fmt.Errorf("socket config: %w", err)
	}
	conn, err := wsConfig.DialContext(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "events", "dial", l.socketURL, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var opening string
	if err := websocket.Message.Receive(conn, &opening); err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	pkt, err := decodeEnginePacket(opening)
	if err != nil || pkt.kind != engineOpen {
		return fmt.Errorf("unexpected first packet %q", opening)
	}
	hs, err := decodeHandshake(pkt.data)
	if err != nil {
		return err
	}
	if err := websocket.Message.Send(conn, connectPacket()); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	for {
		if live := hs.liveness(); live > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(live))
		}
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			return fmt.Errorf("read packet: %w", err)
		}
		done, err := l.handleEngine(conn, raw)
		if err != nil || done {
			return err
		}
	}
}

func (l *Listener) handleEngine(conn *websocket.Conn, raw string) (bool, error) {
	pkt, err := decodeEnginePacket(raw)
	if err != nil {
		return false, nil
	}
	switch pkt.kind {
	case enginePing:
		if err := websocket.Message.Send(conn, string(enginePong)); err != nil {
			return true, fmt.Errorf("send pong: %w", err)
		}
	case engineClose:
		return true, errServerClosed
	case engineMessage:
		return l.handleSocket(pkt.data)
	case enginePong, engineNoop:
	default:
		l.logger.Debug("ignoring engine packet", logging.String("packet", raw))
	}
	return false, nil
}

func (l *Listener) handleSocket(raw string) (bool, error) {
	pkt, err := decodeSocketPacket(raw)
	if err != nil || pkt.namespace != "/" {
		return false, nil
	}
	switch pkt.kind {
	case socketConnect:
		l.connected.Store(true)
		l.sessions.Add(1)
		l.logger.Info("event socket connected", logging.String("url", l.socketURL))
	case socketConnectError:
		return true, services.Wrap(services.ErrBackend, "events", "connect", connectErrorMessage(pkt.data), nil)
	case socketDisconnect:
		return true, errServerClosed
	case socketEvent:
		name, payload, err := decodeEventArgs(pkt.data)
		if err != nil {
			l.logger.Debug("dropping malformed event", logging.Error(err))
			return false, nil
		}
		l.hub.Publish(Event{Name: name, Payload: payload, ReceivedAt: time.Now().UTC()})
	}
	return false, nil
}
