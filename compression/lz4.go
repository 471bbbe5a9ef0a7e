package compression

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

type lz4Compression struct {
	level lz4.CompressionLevel
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func newLZ4(level int) lz4Compression {
	level = max(0, min(level, len(lz4Levels)-1))
	return lz4Compression{level: lz4Levels[level]}
}

func (lz4Compression) Type() Type { return LZ4 }

func (c lz4Compression) CompressedWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(c.level), lz4.ConcurrencyOption(1)); err != nil {
		return nil, err
	}
	return zw, nil
}

func (lz4Compression) UncompressedReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
