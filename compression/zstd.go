package compression

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdCompression pools encoders and decoders; both are expensive to build
// and can be reset onto a new stream.
type zstdCompression struct {
	level    zstd.EncoderLevel
	encoders *sync.Pool
	decoders *sync.Pool
}

func newZstd(level int) *zstdCompression {
	l := zstd.SpeedDefault
	if level != 0 {
		l = zstd.EncoderLevelFromZstd(level)
	}
	return &zstdCompression{
		level:    l,
		encoders: &sync.Pool{},
		decoders: &sync.Pool{},
	}
}

func (*zstdCompression) Type() Type { return Zstd }

func (c *zstdCompression) CompressedWriter(w io.Writer) (io.WriteCloser, error) {
	if v := c.encoders.Get(); v != nil {
		enc := v.(*zstd.Encoder)
		enc.Reset(w)
		return &zstdWriter{Encoder: enc, pool: c.encoders}, nil
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(c.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &zstdWriter{Encoder: enc, pool: c.encoders}, nil
}

func (c *zstdCompression) UncompressedReader(r io.Reader) (io.ReadCloser, error) {
	if v := c.decoders.Get(); v != nil {
		dec := v.(*zstd.Decoder)
		if err := dec.Reset(r); err != nil {
			dec.Close()
			return nil, err
		}
		return &zstdReader{Decoder: dec, pool: c.decoders}, nil
	}
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &zstdReader{Decoder: dec, pool: c.decoders}, nil
}

type zstdWriter struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (w *zstdWriter) Close() error {
	err := w.Encoder.Close()
	if err == nil {
		w.pool.Put(w.Encoder)
	}
	return err
}

type zstdReader struct {
	*zstd.Decoder
	pool *sync.Pool
}

func (r *zstdReader) Close() error {
	r.pool.Put(r.Decoder)
	return nil
}
