package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/zeusync/skyrace/pkg/generic"
)

// Codec converts protocol values to and from their wire form.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

var (
	_ Codec = JSONCodec{}
	_ Codec = MsgpackCodec{}
)

// JSONCodec is used for text frames.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	return nil
}

// MsgpackCodec is used for binary tile frames.
type MsgpackCodec struct{}

var tileBuffers = generic.NewResetPool(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) { b.Reset() },
)

func (MsgpackCodec) Encode(v any) ([]byte, error) {
	buf := tileBuffers.Get()
	defer tileBuffers.Put(buf)

	if err := msgpack.NewEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func (MsgpackCodec) Decode(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	return nil
}

// DecodeCommand parses and validates a client command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := (JSONCodec{}).Decode(data, &cmd); err != nil {
		return cmd, err
	}
	return cmd, cmd.Validate()
}

// DecodeTile parses a binary tile frame.
func DecodeTile(data []byte) (TileFrame, error) {
	var f TileFrame
	if err := (MsgpackCodec{}).Decode(data, &f); err != nil {
		return f, err
	}
	if f.Type != MessageTile && f.Type != MessageEvict {
		return f, fmt.Errorf("%w: binary frame type %q", ErrInvalidMessage, f.Type)
	}
	return f, nil
}
