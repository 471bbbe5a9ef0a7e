// Package compression provides stream compression for serialized swap payloads.
//
// A [Compression] wraps the byte stream produced by a serializer before it is
// written to a swap file, and unwraps it again on page-in. All built-in
// implementations are safe for concurrent use; encoder and decoder state is
// pooled where the underlying library supports reuse.
//
// Compressed payloads are private to the process that wrote them, so codec
// selection is not a persisted-format boundary.
package compression

import (
	"fmt"
	"io"
)

// Type identifies a compression algorithm.
type Type uint8

const (
	// None disables compression.
	None Type = iota
	// Deflate is raw DEFLATE (klauspost/compress/flate).
	Deflate
	// Gzip is gzip framing around DEFLATE.
	Gzip
	// Zstd is Zstandard (better ratio, good for large cold pages).
	Zstd
	// LZ4 is the LZ4 frame format (fast, good for hot pages).
	LZ4
	// Snappy is the framed Snappy format (github.com/golang/snappy).
	Snappy
	// S2 is the Snappy-compatible S2 stream format.
	S2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Deflate:
		return "deflate"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	case Snappy:
		return "snappy"
	case S2:
		return "s2"
	default:
		return fmt.Sprintf("compression(%d)", uint8(t))
	}
}

// Compression turns a byte stream into a compressed stream and back.
type Compression interface {
	// Type returns the algorithm.
	Type() Type
	// CompressedWriter returns a writer that compresses into w.
	// Close must be called to flush the stream; it does not close w.
	CompressedWriter(w io.Writer) (io.WriteCloser, error)
	// UncompressedReader returns a reader that decompresses r.
	// Close releases decoder state; it does not close r.
	UncompressedReader(r io.Reader) (io.ReadCloser, error)
}

type options struct {
	level int
}

// Option configures a Compression.
type Option func(*options)

// WithLevel sets the algorithm specific compression level.
// Zero selects the library default.
func WithLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// New returns the Compression for t. New(None) returns nil, meaning
// uncompressed payloads.
func New(t Type, optFns ...Option) (Compression, error) {
	var o options
	for _, fn := range optFns {
		fn(&o)
	}

	switch t {
	case None:
		return nil, nil
	case Deflate:
		return newDeflate(o.level), nil
	case Gzip:
		return newGzip(o.level), nil
	case Zstd:
		return newZstd(o.level), nil
	case LZ4:
		return newLZ4(o.level), nil
	case Snappy:
		return snappyCompression{}, nil
	case S2:
		return s2Compression{}, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", uint8(t))
	}
}

// ByName returns a built-in compression by its name ("none", "zstd", ...).
func ByName(name string, optFns ...Option) (Compression, error) {
	for t := None; t <= S2; t++ {
		if t.String() == name {
			return New(t, optFns...)
		}
	}
	return nil, fmt.Errorf("unknown compression: %q", name)
}
