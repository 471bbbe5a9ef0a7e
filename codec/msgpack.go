package codec

import (
	"bytes"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack is a MessagePack codec backed by github.com/vmihailenco/msgpack/v5.
//
// It is the default codec: compact, schemaless, and it round-trips the
// exported fields of plain structs without tags. Encoders and decoders are
// taken from the library pools.
type MsgPack struct{}

var _ StreamCodec = MsgPack{}

// Marshal encodes the value to MessagePack.
func (m MsgPack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes the MessagePack data into v.
func (m MsgPack) Unmarshal(data []byte, v any) error {
	return m.Decode(bytes.NewReader(data), v)
}

// Name returns the unique name of the codec ("msgpack").
func (MsgPack) Name() string { return "msgpack" }

// Encode writes the MessagePack encoding of v to w.
func (MsgPack) Encode(w io.Writer, v any) error {
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)

	enc.Reset(w)
	enc.SetSortMapKeys(true)
	return enc.Encode(v)
}

// Decode reads one MessagePack value from r into v.
func (MsgPack) Decode(r io.Reader, v any) error {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)

	dec.Reset(r)
	return dec.Decode(v)
}
