// Package codec centralizes payload encoding for paged-out objects.
//
// A Codec turns the virtual data of an object into bytes and back. A
// Serializer applies a codec to a model.Virtualizable. Swap files are private
// to the process that wrote them, so changing codecs never breaks persisted
// data; only objects paged out and in by the same virtualizer must agree.
package codec

import (
	"fmt"
	"io"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// StreamCodec is implemented by codecs that can encode directly into a
// writer and decode from a reader without an intermediate slice.
type StreamCodec interface {
	Codec
	Encode(w io.Writer, v any) error
	Decode(r io.Reader, v any) error
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "msgpack":
		return MsgPack{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests and examples.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
