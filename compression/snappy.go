package compression

import (
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/s2"
)

type snappyCompression struct{}

func (snappyCompression) Type() Type { return Snappy }

func (snappyCompression) CompressedWriter(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCompression) UncompressedReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}

type s2Compression struct{}

func (s2Compression) Type() Type { return S2 }

func (s2Compression) CompressedWriter(w io.Writer) (io.WriteCloser, error) {
	return s2.NewWriter(w, s2.WriterConcurrency(1)), nil
}

func (s2Compression) UncompressedReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}
