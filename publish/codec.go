// Package publish - Display sinks: NATS, MQTT and WebSocket fan-out.
package publish

import (
	"encoding/json"

	"github.com/nvr-ai/go-ppg/controller"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes displays for the wire.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(d controller.Display) ([]byte, error)
}

// JSONCodec encodes displays as JSON objects.
type JSONCodec struct{}

func (JSONCodec) Name() string        { return "json" }
func (JSONCodec) ContentType() string { return "application/json" }

func (JSONCodec) Marshal(d controller.Display) ([]byte, error) {
	return json.Marshal(d)
}

// MsgpackCodec encodes displays as MessagePack maps keyed like the JSON form.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string        { return "msgpack" }
func (MsgpackCodec) ContentType() string { return "application/msgpack" }

func (MsgpackCodec) Marshal(d controller.Display) ([]byte, error) {
	return msgpack.Marshal(d)
}

// CodecByName resolves a codec from configuration. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, errors.Errorf("unknown codec %q", name)
}
