package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Engine.IO packet types.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO packet types carried inside Engine.IO messages.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketConnectError = '4'
)

var errEmptyPacket = errors.New("empty packet")

// handshake is the JSON body of the Engine.IO open packet.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// liveness is how long the reader may wait before the session is considered dead.
func (h handshake) liveness() time.Duration {
	return time.Duration(h.PingInterval+h.PingTimeout) * time.Millisecond
}

type enginePacket struct {
	kind byte
	data string
}

func decodeEnginePacket(raw string) (enginePacket, error) {
	if raw == "" {
		return enginePacket{}, errEmptyPacket
	}
	return enginePacket{kind: raw[0], data: raw[1:]}, nil
}

func decodeHandshake(data string) (handshake, error) {
	var hs handshake
	if err := json.Unmarshal([]byte(data), &hs); err != nil {
		return hs, fmt.Errorf("decode handshake: %w", err)
	}
	return hs, nil
}

type socketPacket struct {
	kind      byte
	namespace string
	data      string
}

// decodeSocketPacket splits "<type>[/nsp,][ackid]<json>".
func decodeSocketPacket(raw string) (socketPacket, error) {
	if raw == "" {
		return socketPacket{}, errEmptyPacket
	}
	pkt := socketPacket{kind: raw[0], namespace: "/"}
	rest := raw[1:]
	if strings.HasPrefix(rest, "/") {
		ns, tail, found := strings.Cut(rest, ",")
		pkt.namespace = ns
		if !found {
			tail = ""
		}
		rest = tail
	}
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		rest = rest[1:]
	}
	pkt.data = rest
	return pkt, nil
}

// decodeEventArgs reads ["name", payload] from an event packet body.
func decodeEventArgs(data string) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("decode event: missing name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	payload := json.RawMessage("null")
	if len(args) > 1 {
		payload = args[1]
	}
	return name, payload, nil
}

// connectErrorMessage extracts the reason of a CONNECT_ERROR packet.
func connectErrorMessage(data string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &body); err == nil && body.Message != "" {
		return body.Message
	}
	if data == "" {
		return "connection refused"
	}
	return data
}

func connectPacket() string {
	return string([]byte{engineMessage, socketConnect})
}
