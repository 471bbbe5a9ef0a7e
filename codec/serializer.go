package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/virtualizer/model"
)

// ErrNoVirtualData is returned when an object without resident data is
// serialized.
var ErrNoVirtualData = errors.New("object has no virtual data")

// Serializer writes the virtual data of an object to a stream and restores
// it from one.
//
// WriteData must leave the object unchanged. ReadData installs the decoded
// data on the object. Implementations must be safe for concurrent use on
// different objects.
type Serializer interface {
	WriteData(obj model.Virtualizable, w io.Writer) error
	ReadData(obj model.Virtualizable, r io.Reader) error
}

// CodecSerializer is a Serializer backed by a Codec.
type CodecSerializer struct {
	codec Codec
}

var _ Serializer = (*CodecSerializer)(nil)

// NewSerializer returns a Serializer using c, or Default if c is nil.
func NewSerializer(c Codec) *CodecSerializer {
	if c == nil {
		c = Default
	}
	return &CodecSerializer{codec: c}
}

// Codec returns the underlying codec.
func (s *CodecSerializer) Codec() Codec { return s.codec }

// WriteData implements Serializer.
func (s *CodecSerializer) WriteData(obj model.Virtualizable, w io.Writer) error {
	v := obj.VirtualData()
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNoVirtualData, obj.UID())
	}

	if sc, ok := s.codec.(StreamCodec); ok {
		return sc.Encode(w, v)
	}

	b, err := s.codec.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadData implements Serializer.
func (s *CodecSerializer) ReadData(obj model.Virtualizable, r io.Reader) error {
	v := obj.NewVirtualData()

	if sc, ok := s.codec.(StreamCodec); ok {
		if err := sc.Decode(r, v); err != nil {
			return err
		}
	} else {
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if err := s.codec.Unmarshal(b, v); err != nil {
			return err
		}
	}

	obj.SetVirtualData(v)
	return nil
}
