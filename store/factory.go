package store

import (
	"log/slog"
	"sync"

	"github.com/hupe1980/virtualizer/compression"
	"github.com/hupe1980/virtualizer/internal/boltfile"
	"github.com/hupe1980/virtualizer/internal/fs"
	"github.com/hupe1980/virtualizer/internal/resource"
	"github.com/hupe1980/virtualizer/internal/swap"
	"github.com/hupe1980/virtualizer/model"
)

const (
	// DefaultBlockSize is the swap file block size used when none is set.
	DefaultBlockSize = swap.DefaultBlockSize
	// DefaultMinGrowCount is the swap file growth used when none is set.
	DefaultMinGrowCount = swap.DefaultMinGrowCount
)

// SwapFileFactory creates stores backed by swap files.
//
// The zero value creates one swap file per store in os.TempDir() with
// 4096-byte blocks growing by at least 20 blocks. A factory must not be
// copied after first use.
type SwapFileFactory struct {
	// Dir is the directory swap files are created in.
	Dir string
	// BlockSize is the swap file allocation unit in bytes.
	BlockSize int
	// MinGrowCount is the minimum number of blocks added on growth.
	MinGrowCount int
	// Compression compresses payloads before they hit the swap file. Optional.
	Compression compression.Compression
	// DisposeOnlyWithEmptyHandles defers store disposal while objects remain stored.
	DisposeOnlyWithEmptyHandles bool
	// StatsEnabled records per-store and global statistics.
	StatsEnabled bool
	// SharedFile makes every store write to one swap file owned by the
	// factory. The file is released by Close.
	SharedFile bool
	// DiskLimitBytes caps the bytes allocated by all swap files of the factory. 0 means unlimited.
	DiskLimitBytes int64
	// IOLimitBytesPerSec caps swap throughput of the factory. 0 means unlimited.
	IOLimitBytesPerSec int64
	// FS is the filesystem swap files live on. Defaults to the local filesystem.
	FS fs.FileSystem
	// Logger receives store and swap file events. Optional.
	Logger *slog.Logger

	once sync.Once
	rc   *resource.Controller

	mu     sync.Mutex
	shared *swap.File
}

var _ Factory = (*SwapFileFactory)(nil)

func (f *SwapFileFactory) init() {
	f.once.Do(func() {
		if f.DiskLimitBytes > 0 || f.IOLimitBytesPerSec > 0 {
			f.rc = resource.NewController(resource.Config{
				DiskLimitBytes:     f.DiskLimitBytes,
				IOLimitBytesPerSec: f.IOLimitBytesPerSec,
			})
		}
	})
}

// DiskUsage returns the bytes currently allocated by the factory's swap files.
// It is only tracked when a disk or I/O limit is configured.
func (f *SwapFileFactory) DiskUsage() int64 {
	f.init()
	return f.rc.DiskUsage()
}

// CreateStore implements Factory.
func (f *SwapFileFactory) CreateStore(ctx *model.Context) (Store, error) {
	f.init()

	if f.SharedFile {
		file, err := f.sharedFile()
		if err != nil {
			return nil, &IOError{Op: "create store", Err: err}
		}
		return NewSwapStore(SwapBlocks(file), false, f.storeOptions()...), nil
	}

	file, err := swap.Open(f.swapConfig())
	if err != nil {
		return nil, &IOError{Op: "create store", Err: err}
	}
	f.logger().Debug("store created", "context", ctx.ID(), "file", file.Name())
	return NewSwapStore(SwapBlocks(file), true, f.storeOptions()...), nil
}

// Close disposes the shared swap file, if any. Stores created from a shared
// file fail with ErrDisposed afterwards.
func (f *SwapFileFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shared == nil {
		return nil
	}
	err := f.shared.Dispose()
	f.shared = nil
	return err
}

func (f *SwapFileFactory) sharedFile() (*swap.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shared != nil && !f.shared.IsDisposed() {
		return f.shared, nil
	}
	file, err := swap.Open(f.swapConfig())
	if err != nil {
		return nil, err
	}
	f.shared = file
	return file, nil
}

func (f *SwapFileFactory) swapConfig() swap.Config {
	return swap.Config{
		Dir:          f.Dir,
		BlockSize:    f.BlockSize,
		MinGrowCount: f.MinGrowCount,
		FS:           f.FS,
		Resources:    f.rc,
		Logger:       f.Logger,
	}
}

func (f *SwapFileFactory) storeOptions() []Option {
	return commonOptions(f.Compression, f.DisposeOnlyWithEmptyHandles, f.StatsEnabled, f.Logger)
}

func (f *SwapFileFactory) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.Logger
}

// BoltFactory creates stores backed by one bbolt file each.
type BoltFactory struct {
	// Dir is the directory files are created in.
	Dir string
	// Sync fsyncs every write transaction.
	Sync bool
	// Compression compresses payloads before they are written. Optional.
	Compression compression.Compression
	// DisposeOnlyWithEmptyHandles defers store disposal while objects remain stored.
	DisposeOnlyWithEmptyHandles bool
	// StatsEnabled records per-store and global statistics.
	StatsEnabled bool
	// Logger receives store events. Optional.
	Logger *slog.Logger
}

var _ Factory = (*BoltFactory)(nil)

// CreateStore implements Factory.
func (f *BoltFactory) CreateStore(ctx *model.Context) (Store, error) {
	file, err := boltfile.Open(boltfile.Config{Dir: f.Dir, Sync: f.Sync, Logger: f.Logger})
	if err != nil {
		return nil, &IOError{Op: "create store", Err: err}
	}
	return NewSwapStore(BoltBlocks(file), true,
		commonOptions(f.Compression, f.DisposeOnlyWithEmptyHandles, f.StatsEnabled, f.Logger)...), nil
}

func commonOptions(c compression.Compression, deferDispose, stats bool, logger *slog.Logger) []Option {
	opts := []Option{
		WithCompression(c),
		WithDisposeOnlyWithEmptyHandles(deferDispose),
		WithLogger(logger),
	}
	if stats {
		opts = append(opts, WithStats(&Stats{}))
	}
	return opts
}

// SharedFactory hands the same store to every context until that store is
// no longer usable, then creates a replacement from the wrapped factory.
//
// Contexts sharing a store must use UIDs that are unique across all of them;
// model.Object UIDs are.
type SharedFactory struct {
	factory Factory

	mu    sync.Mutex
	store Store
}

var _ Factory = (*SharedFactory)(nil)

// NewSharedFactory wraps f.
func NewSharedFactory(f Factory) *SharedFactory {
	return &SharedFactory{factory: f}
}

// CreateStore implements Factory.
func (f *SharedFactory) CreateStore(ctx *model.Context) (Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store != nil && f.store.IsUsable() {
		return f.store, nil
	}
	st, err := f.factory.CreateStore(ctx)
	if err != nil {
		return nil, err
	}
	f.store = st
	return st, nil
}
