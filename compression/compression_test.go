package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func roundTrip(t *testing.T, c Compression, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := c.CompressedWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := c.UncompressedReader(&buf)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return got
}

func TestCompression_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":        {},
		"small":        []byte("hello"),
		"compressible": bytes.Repeat([]byte("0123456789"), 10_000),
	}

	for typ := Deflate; typ <= S2; typ++ {
		c, err := New(typ)
		require.NoError(t, err)
		require.Equal(t, typ, c.Type())

		for name, data := range payloads {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				assert.Equal(t, data, roundTrip(t, c, data))
			})
		}
	}
}

func TestCompression_Shrinks(t *testing.T) {
	data := bytes.Repeat([]byte("report page element "), 5_000)

	for typ := Deflate; typ <= S2; typ++ {
		c, err := New(typ)
		require.NoError(t, err)

		var buf bytes.Buffer
		w, err := c.CompressedWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Less(t, buf.Len(), len(data)/4, typ.String())
	}
}

func TestCompression_Levels(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 1000)
	for _, typ := range []Type{Deflate, Gzip, Zstd, LZ4} {
		c, err := New(typ, WithLevel(9))
		require.NoError(t, err)
		assert.Equal(t, data, roundTrip(t, c, data))
	}
}

func TestCompression_ZstdPoolConcurrent(t *testing.T) {
	c, err := New(Zstd)
	require.NoError(t, err)

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			data := bytes.Repeat([]byte{byte(i)}, 4096+i)
			for range 10 {
				var buf bytes.Buffer
				w, err := c.CompressedWriter(&buf)
				if err != nil {
					return err
				}
				if _, err := w.Write(data); err != nil {
					return err
				}
				if err := w.Close(); err != nil {
					return err
				}
				r, err := c.UncompressedReader(&buf)
				if err != nil {
					return err
				}
				got, err := io.ReadAll(r)
				_ = r.Close()
				if err != nil {
					return err
				}
				if !bytes.Equal(data, got) {
					return assert.AnError
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestNew_None(t *testing.T) {
	c, err := New(None)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestByName(t *testing.T) {
	c, err := ByName("zstd")
	require.NoError(t, err)
	assert.Equal(t, Zstd, c.Type())

	_, err = ByName("brotli")
	assert.Error(t, err)

	_, err = New(Type(42))
	assert.Error(t, err)
	assert.Equal(t, "compression(42)", Type(42).String())
}
