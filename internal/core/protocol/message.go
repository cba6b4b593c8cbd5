// Package protocol defines the messages exchanged between the race server and
// its clients. Commands and state travel as JSON text frames; terrain tiles
// travel as msgpack binary frames.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/skyrace/internal/race"
	"github.com/zeusync/skyrace/internal/terrain"
)

// Client commands.
const (
	CommandPress   = "press"
	CommandRelease = "release"
	CommandLook    = "look"
	CommandLock    = "lock"
	CommandReset   = "reset"
	CommandView    = "view"
	CommandPause   = "pause"
)

// Server message types. Tile and evict arrive as binary frames.
const (
	MessageHello     = "hello"
	MessageFrame     = "frame"
	MessageHUD       = "hud"
	MessageStandings = "standings"
	MessageEvent     = "event"
	MessageError     = "error"
	MessageTile      = "tile"
	MessageEvict     = "evict"
)

// Command is one input intent sent by a client.
type Command struct {
	Type    string  `json:"type"`
	Control string  `json:"control,omitempty"`
	DX      float64 `json:"dx,omitempty"`
	DY      float64 `json:"dy,omitempty"`
	Locked  bool    `json:"locked,omitempty"`
	Mode    string  `json:"mode,omitempty"`
}

// Validate checks that the command is complete enough to apply.
func (c Command) Validate() error {
	switch c.Type {
	case CommandPress, CommandRelease:
		if _, ok := race.ParseControl(c.Control); !ok {
			return fmt.Errorf("%w: unknown control %q", ErrInvalidMessage, c.Control)
		}
	case CommandView:
		if _, err := terrain.ParseViewMode(c.Mode); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	case CommandLook, CommandLock, CommandReset, CommandPause:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
	}
	return nil
}

// Envelope wraps every JSON message sent by the server.
type Envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope encodes payload and wraps it.
func NewEnvelope(msgType string, seq uint64, payload any) (Envelope, error) {
	env := Envelope{Type: msgType, Seq: seq}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	env.Payload = raw
	return env, nil
}

// Into decodes the payload into v.
func (e Envelope) Into(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty %s payload", ErrInvalidMessage, e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	return nil
}

// Hello is the first message a client receives after joining.
type Hello struct {
	SessionID string      `json:"session_id"`
	ClientID  string      `json:"client_id"`
	State     string      `json:"state"`
	Paused    bool        `json:"paused"`
	ViewMode  string      `json:"view_mode"`
	TileSize  float64     `json:"tile_size"`
	Course    race.Course `json:"course"`
}

// EventPayload carries a bus event to clients.
type EventPayload struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Data   any    `json:"data,omitempty"`
}

// ErrorPayload reports a rejected command.
type ErrorPayload struct {
	Message string `json:"message"`
}

// TileFrame is the binary message for tile arrivals and evictions. Mesh is
// nil for evictions.
type TileFrame struct {
	Type  string        `msgpack:"type"`
	Coord terrain.Coord `msgpack:"coord"`
	Mesh  *terrain.Mesh `msgpack:"mesh,omitempty"`
}
