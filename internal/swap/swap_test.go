package swap

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/hupe1980/virtualizer/internal/fs"
	"github.com/hupe1980/virtualizer/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func openTest(t *testing.T, cfg Config) *File {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	f, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Dispose() })
	return f
}

func TestFile_RoundTrip(t *testing.T) {
	f := openTest(t, Config{BlockSize: 16, MinGrowCount: 2})

	h, err := f.Write([]byte("hello swap"))
	require.NoError(t, err)
	assert.Equal(t, 10, h.Len())
	assert.Equal(t, 1, h.Blocks())

	got, err := f.Read(h, false)
	require.NoError(t, err)
	assert.Equal(t, "hello swap", string(got))

	// Still readable: the first read kept the blocks.
	got, err = f.Read(h, true)
	require.NoError(t, err)
	assert.Equal(t, "hello swap", string(got))

	_, err = f.Read(h, false)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestFile_ZeroLength(t *testing.T) {
	f := openTest(t, Config{BlockSize: 16})

	h, err := f.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, h.Blocks())

	got, err := f.Read(h, true)
	require.NoError(t, err)
	assert.Empty(t, got)

	total, _ := f.Blocks()
	assert.Zero(t, total, "empty payloads must not grow the file")
}

func TestFile_MultiBlockGrowth(t *testing.T) {
	f := openTest(t, Config{BlockSize: 8, MinGrowCount: 2})

	data := bytes.Repeat([]byte("0123456789"), 5) // 50 bytes -> 7 blocks
	h, err := f.Write(data)
	require.NoError(t, err)
	assert.Equal(t, 7, h.Blocks())

	total, free := f.Blocks()
	assert.Equal(t, 7, total, "growth covers the missing blocks when larger than MinGrowCount")
	assert.Zero(t, free)

	small, err := f.Write([]byte("x"))
	require.NoError(t, err)
	total, free = f.Blocks()
	assert.Equal(t, 9, total, "growth uses MinGrowCount when fewer blocks are missing")
	assert.Equal(t, 1, free)

	got, err := f.Read(h, false)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = f.Read(small, false)
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestFile_ReusesFreedBlocks(t *testing.T) {
	f := openTest(t, Config{BlockSize: 8, MinGrowCount: 4})

	h1, err := f.Write([]byte("aaaaaaaabbbbbbbb"))
	require.NoError(t, err)
	require.NoError(t, f.Free(h1))

	h2, err := f.Write([]byte("cccccccc"))
	require.NoError(t, err)

	total, free := f.Blocks()
	assert.Equal(t, 4, total, "freed blocks are reused before growing")
	assert.Equal(t, 3, free)

	got, err := f.Read(h2, false)
	require.NoError(t, err)
	assert.Equal(t, "cccccccc", string(got))

	assert.ErrorIs(t, f.Free(h1), ErrInvalidHandle, "double free is rejected")
}

func TestFile_Dispose(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(Config{Dir: dir})
	require.NoError(t, err)

	h, err := f.Write([]byte("data"))
	require.NoError(t, err)

	require.NoError(t, f.Dispose())
	assert.True(t, f.IsDisposed())
	assert.NoFileExists(t, f.Name())

	_, err = f.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrDisposed)
	_, err = f.Read(h, false)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, f.Free(h), ErrDisposed)

	assert.NoError(t, f.Dispose(), "dispose is idempotent")
}

func TestFile_DiskQuota(t *testing.T) {
	rc := resource.NewController(resource.Config{DiskLimitBytes: 64})
	f := openTest(t, Config{BlockSize: 16, MinGrowCount: 2, Resources: rc})

	_, err := f.Write(make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, int64(32), rc.DiskUsage())

	_, err = f.Write(make([]byte, 48))
	assert.ErrorIs(t, err, resource.ErrDiskLimitExceeded)

	require.NoError(t, f.Dispose())
	assert.Zero(t, rc.DiskUsage(), "dispose returns the quota")
}

func TestFile_WriteFailureReleasesBlocks(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("swap_", fs.Fault{FailAfterBytes: 8})
	f := openTest(t, Config{BlockSize: 8, MinGrowCount: 4, FS: ffs})

	_, err := f.Write([]byte("12345678"))
	require.NoError(t, err)

	_, err = f.Write([]byte("87654321"))
	assert.ErrorIs(t, err, fs.ErrInjected)

	_, free := f.Blocks()
	assert.Equal(t, 3, free, "blocks of a failed write return to the free set")
}

func TestFile_ReadFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("swap_", fs.Fault{FailAfterBytes: -1, FailOnRead: true})
	f := openTest(t, Config{FS: ffs})

	h, err := f.Write([]byte("payload"))
	require.NoError(t, err)

	_, err = f.Read(h, true)
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestFile_ConsumingReadIsExclusive(t *testing.T) {
	f := openTest(t, Config{BlockSize: 8, MinGrowCount: 4})
	payload := []byte("0123456789abcdef")

	for i := range 200 {
		h, err := f.Write(payload)
		require.NoError(t, err)

		var (
			got              []byte
			readErr, freeErr error
			g                errgroup.Group
		)
		g.Go(func() error {
			got, readErr = f.Read(h, true)
			return nil
		})
		g.Go(func() error {
			freeErr = f.Free(h)
			return nil
		})
		require.NoError(t, g.Wait())

		if readErr == nil {
			assert.Equal(t, payload, got, "iteration %d", i)
			assert.ErrorIs(t, freeErr, ErrInvalidHandle, "iteration %d: freed while being consumed", i)
		} else {
			assert.ErrorIs(t, readErr, ErrInvalidHandle, "iteration %d", i)
			assert.NoError(t, freeErr, "iteration %d", i)
		}

		// The blocks went back exactly once and are handed out again.
		next, err := f.Write([]byte("XXXXXXXXXXXXXXXX"))
		require.NoError(t, err)
		require.NoError(t, f.Free(next))
	}
	total, free := f.Blocks()
	assert.Equal(t, 4, total, "freed blocks are reused instead of growing the file")
	assert.Equal(t, 4, free)
}

func TestFile_FailedConsumingReadKeepsHandle(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("swap_", fs.Fault{FailAfterBytes: -1, FailOnRead: true})
	f := openTest(t, Config{BlockSize: 8, FS: ffs})

	h, err := f.Write([]byte("payload"))
	require.NoError(t, err)

	_, err = f.Read(h, true)
	assert.ErrorIs(t, err, fs.ErrInjected)

	assert.NoError(t, f.Free(h), "the handle is still live after a failed read")
}

func TestFile_Concurrent(t *testing.T) {
	f := openTest(t, Config{BlockSize: 32, MinGrowCount: 8})

	const n = 64
	handles := make([]Handle, n)

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			h, err := f.Write(bytes.Repeat([]byte(fmt.Sprintf("%03d", i)), i+1))
			handles[i] = h
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i := range n {
		g.Go(func() error {
			got, err := f.Read(handles[i], true)
			if err != nil {
				return err
			}
			if want := bytes.Repeat([]byte(fmt.Sprintf("%03d", i)), i+1); !bytes.Equal(want, got) {
				return fmt.Errorf("payload %d mismatch", i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	total, free := f.Blocks()
	assert.Equal(t, total, free)
}
