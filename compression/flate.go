package compression

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

type deflateCompression struct {
	level int
}

func newDeflate(level int) deflateCompression {
	if level == 0 {
		level = flate.DefaultCompression
	}
	return deflateCompression{level: level}
}

func (deflateCompression) Type() Type { return Deflate }

func (c deflateCompression) CompressedWriter(w io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(w, c.level)
}

func (deflateCompression) UncompressedReader(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

type gzipCompression struct {
	level int
}

func newGzip(level int) gzipCompression {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return gzipCompression{level: level}
}

func (gzipCompression) Type() Type { return Gzip }

func (c gzipCompression) CompressedWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, c.level)
}

func (gzipCompression) UncompressedReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}
