package virtualizer

import (
	"fmt"
	"io"
	"testing"

	"github.com/hupe1980/virtualizer/codec"
	"github.com/hupe1980/virtualizer/internal/fs"
	"github.com/hupe1980/virtualizer/model"
	"github.com/hupe1980/virtualizer/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Number int
	Lines  []string
}

func newPage(ctx *model.Context, n int) *model.Object[page] {
	lines := make([]string, 8)
	for i := range lines {
		lines[i] = fmt.Sprintf("page %d line %d", n, i)
	}
	return model.NewObject(ctx, &page{Number: n, Lines: lines})
}

func newTestVirtualizer(t *testing.T, maxSize int, factory store.Factory, opts ...Option) *Virtualizer {
	t.Helper()
	if factory == nil {
		factory = &store.SwapFileFactory{Dir: t.TempDir()}
	}
	v, err := New(maxSize, factory, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

type hookedPage struct {
	*model.Object[page]
	before, after, internalized int
}

func (h *hookedPage) BeforeExternalization() { h.before++ }
func (h *hookedPage) AfterExternalization()  { h.after++ }
func (h *hookedPage) AfterInternalization()  { h.internalized++ }

type failingSerializer struct{ err error }

func (s failingSerializer) WriteData(model.Virtualizable, io.Writer) error { return s.err }

func (s failingSerializer) ReadData(model.Virtualizable, io.Reader) error { return s.err }

func TestNew(t *testing.T) {
	_, err := New(0, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	v, err := New(3, nil, nil, WithLogger(nil), WithMetricsCollector(nil), WithSerializer(nil))
	require.NoError(t, err)
	assert.Equal(t, 3, v.MaxSize())
	assert.IsType(t, &store.SwapFileFactory{}, v.factory)
	assert.NoError(t, v.Close())
}

func TestVirtualizer(t *testing.T) {
	t.Run("RegisterEvictsLeastRecentlyUsed", func(t *testing.T) {
		v := newTestVirtualizer(t, 2, nil)
		ctx := model.NewContext()
		a, b, c := newPage(ctx, 1), newPage(ctx, 2), newPage(ctx, 3)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.RegisterObject(b))
		require.NoError(t, v.RegisterObject(c))

		assert.Nil(t, a.Data(), "oldest object paged out")
		assert.False(t, v.IsResident(a))
		assert.True(t, v.IsResident(b))
		assert.True(t, v.IsResident(c))
		assert.Equal(t, 3, v.Len())
		assert.Equal(t, 2, v.Resident())

		require.NoError(t, v.EnsureLoaded(a))
		assert.Equal(t, 1, a.Data().Number)
		assert.Equal(t, "page 1 line 7", a.Data().Lines[7])
		assert.Nil(t, b.Data(), "loading a evicts the next least recently used")

		stats := v.Stats()
		assert.Equal(t, 3, stats.Registered)
		assert.Equal(t, 2, stats.Resident)
		assert.Equal(t, 1, stats.PagedOut)
		assert.Equal(t, 1, stats.Stores)
	})

	t.Run("RegisterTwiceTouches", func(t *testing.T) {
		v := newTestVirtualizer(t, 2, nil)
		ctx := model.NewContext()
		a, b, c := newPage(ctx, 1), newPage(ctx, 2), newPage(ctx, 3)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.RegisterObject(b))
		require.NoError(t, v.RegisterObject(a))
		assert.Equal(t, 2, v.Len())

		require.NoError(t, v.RegisterObject(c))
		assert.NotNil(t, a.Data())
		assert.Nil(t, b.Data())
	})

	t.Run("Touch", func(t *testing.T) {
		v := newTestVirtualizer(t, 2, nil)
		ctx := model.NewContext()
		a, b, c := newPage(ctx, 1), newPage(ctx, 2), newPage(ctx, 3)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.RegisterObject(b))
		v.Touch(a)
		require.NoError(t, v.RegisterObject(c))

		assert.NotNil(t, a.Data())
		assert.Nil(t, b.Data())
	})

	t.Run("EnsureLoadedResident", func(t *testing.T) {
		v := newTestVirtualizer(t, 2, nil)
		ctx := model.NewContext()
		a := newPage(ctx, 1)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.EnsureLoaded(a))
		assert.Equal(t, 0, v.Stats().Stores, "no store until the first page-out")

		untracked := newPage(ctx, 2)
		assert.NoError(t, v.EnsureLoaded(untracked), "untracked resident objects are left alone")
		assert.Equal(t, 1, v.Len())
	})

	t.Run("PinAndUnpin", func(t *testing.T) {
		v := newTestVirtualizer(t, 1, nil)
		ctx := model.NewContext()
		a, b := newPage(ctx, 1), newPage(ctx, 2)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.Pin(a))
		require.NoError(t, v.RegisterObject(b))

		assert.NotNil(t, a.Data(), "pinned objects are never victims")
		assert.NotNil(t, b.Data(), "the registering object is never its own victim")
		assert.Equal(t, 2, v.Resident())
		assert.Equal(t, 1, v.Stats().Pinned)

		require.NoError(t, v.Unpin(a))
		assert.Nil(t, a.Data(), "unpinning restores the bound")
		assert.Equal(t, 1, v.Resident())

		assert.ErrorIs(t, v.Pin(newPage(ctx, 3)), ErrNotRegistered)
		assert.ErrorIs(t, v.Unpin(newPage(ctx, 3)), ErrNotRegistered)
	})

	t.Run("Acquire", func(t *testing.T) {
		v := newTestVirtualizer(t, 1, nil)
		ctx := model.NewContext()
		a, b, c := newPage(ctx, 1), newPage(ctx, 2), newPage(ctx, 3)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.RegisterObject(b))
		require.Nil(t, a.Data())

		require.NoError(t, v.Acquire(a))
		assert.Equal(t, 1, a.Data().Number)
		assert.Nil(t, b.Data())

		require.NoError(t, v.RegisterObject(c))
		assert.NotNil(t, a.Data())

		require.NoError(t, v.Unpin(a))
		assert.Nil(t, a.Data())
		assert.NotNil(t, c.Data())
	})

	t.Run("DeregisterObject", func(t *testing.T) {
		v := newTestVirtualizer(t, 1, nil)
		ctx := model.NewContext()
		a, b := newPage(ctx, 1), newPage(ctx, 2)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.RegisterObject(b))
		require.Nil(t, a.Data())

		require.NoError(t, v.DeregisterObject(a))
		assert.Equal(t, 1, v.Len())
		assert.ErrorIs(t, v.PageIn(a), ErrHandleNotFound, "stored copy released")

		require.NoError(t, v.DeregisterObject(b))
		assert.NotNil(t, b.Data(), "resident objects keep their data")
		assert.Zero(t, v.Len())

		assert.ErrorIs(t, v.DeregisterObject(a), ErrNotRegistered)
	})

	t.Run("ReadOnlyContext", func(t *testing.T) {
		v := newTestVirtualizer(t, 1, nil)
		ctx := model.NewContext()
		ctx.SetReadOnly(true)
		a, b := newPage(ctx, 1), newPage(ctx, 2)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.RegisterObject(b))

		for range 3 {
			require.NoError(t, v.EnsureLoaded(a))
			assert.Equal(t, 1, a.Data().Number)
			require.NoError(t, v.EnsureLoaded(b), "re-storing a kept copy is accepted")
			assert.Equal(t, 2, b.Data().Number)
			assert.Nil(t, a.Data())
		}
	})

	t.Run("AlreadyStored", func(t *testing.T) {
		v := newTestVirtualizer(t, 10, nil)
		a := newPage(model.NewContext(), 1)

		require.NoError(t, v.PageOut(a))
		assert.ErrorIs(t, v.PageOut(a), ErrAlreadyStored)

		require.NoError(t, v.PageIn(a))
		assert.NoError(t, v.PageOut(a), "paging in released the stored copy")
	})

	t.Run("Hooks", func(t *testing.T) {
		v := newTestVirtualizer(t, 1, nil)
		ctx := model.NewContext()
		h := &hookedPage{Object: newPage(ctx, 1)}

		require.NoError(t, v.RegisterObject(h))
		require.NoError(t, v.RegisterObject(newPage(ctx, 2)))
		assert.Equal(t, 1, h.before)
		assert.Equal(t, 1, h.after)
		assert.Zero(t, h.internalized)

		require.NoError(t, v.EnsureLoaded(h))
		assert.Equal(t, 1, h.internalized)
		assert.Equal(t, 1, h.Data().Number)
	})

	t.Run("PageOutFailureKeepsVictimResident", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("swap_", fs.Fault{FailAfterBytes: 0})
		metrics := &BasicMetricsCollector{}

		v := newTestVirtualizer(t, 1, &store.SwapFileFactory{Dir: t.TempDir(), FS: ffs},
			WithMetricsCollector(metrics))
		ctx := model.NewContext()
		a, b := newPage(ctx, 1), newPage(ctx, 2)

		require.NoError(t, v.RegisterObject(a))
		err := v.RegisterObject(b)

		var ioe *IOError
		require.ErrorAs(t, err, &ioe)
		assert.Equal(t, a.UID(), ioe.UID)
		assert.ErrorIs(t, err, fs.ErrInjected)

		assert.True(t, v.IsResident(a))
		assert.Equal(t, 1, a.Data().Number, "data is never dropped on failure")
		assert.Equal(t, 2, v.Resident())

		stats := metrics.GetStats()
		assert.Equal(t, int64(1), stats.PageOutErrors)
		assert.Equal(t, int64(1), stats.EvictionFailed)
	})

	t.Run("SerializationFailure", func(t *testing.T) {
		boom := fmt.Errorf("boom")
		v := newTestVirtualizer(t, 1, nil, WithSerializer(failingSerializer{err: boom}))
		ctx := model.NewContext()
		a, b := newPage(ctx, 1), newPage(ctx, 2)

		require.NoError(t, v.RegisterObject(a))
		err := v.RegisterObject(b)

		var se *SerializationError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "store", se.Op)
		assert.ErrorIs(t, err, boom)
		assert.NotNil(t, a.Data())
	})

	t.Run("Codecs", func(t *testing.T) {
		for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}, codec.MsgPack{}} {
			v := newTestVirtualizer(t, 1, nil, WithCodec(c))
			ctx := model.NewContext()
			a, b := newPage(ctx, 1), newPage(ctx, 2)

			require.NoError(t, v.RegisterObject(a))
			require.NoError(t, v.RegisterObject(b))
			require.NoError(t, v.EnsureLoaded(a), c.Name())
			assert.Equal(t, "page 1 line 0", a.Data().Lines[0], c.Name())
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		metrics := &BasicMetricsCollector{}
		v := newTestVirtualizer(t, 1, nil, WithMetricsCollector(metrics))
		ctx := model.NewContext()
		a, b := newPage(ctx, 1), newPage(ctx, 2)

		require.NoError(t, v.RegisterObject(a))
		require.NoError(t, v.RegisterObject(b))
		require.NoError(t, v.EnsureLoaded(a))
		require.NoError(t, v.DisposeContext(ctx))

		stats := metrics.GetStats()
		assert.Equal(t, int64(2), stats.PageOutCount)
		assert.Equal(t, int64(1), stats.PageInCount)
		assert.Equal(t, int64(2), stats.EvictionRounds)
		assert.Equal(t, int64(2), stats.EvictionVictims)
		assert.Equal(t, int64(1), stats.DisposeCount)
		assert.Zero(t, stats.PageOutErrors+stats.PageInErrors+stats.DisposeErrors)
	})
}
