package swap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/hupe1980/virtualizer/internal/fs"
	"github.com/hupe1980/virtualizer/internal/resource"
)

const (
	// DefaultBlockSize is the block size used when Config.BlockSize <= 0.
	DefaultBlockSize = 4096
	// DefaultMinGrowCount is the minimum growth used when Config.MinGrowCount <= 0.
	DefaultMinGrowCount = 20
)

var (
	// ErrDisposed is returned by every operation on a disposed swap file.
	ErrDisposed = errors.New("swap file disposed")
	// ErrInvalidHandle is returned for handles that do not address live blocks.
	ErrInvalidHandle = errors.New("invalid swap handle")
)

// Config holds configuration for a swap file.
type Config struct {
	// Dir is the directory the swap file is created in. Defaults to os.TempDir().
	Dir string
	// BlockSize is the allocation unit in bytes.
	BlockSize int
	// MinGrowCount is the minimum number of blocks added when the file grows.
	MinGrowCount int
	// FS is the filesystem used for the swap file. Defaults to fs.Default.
	FS fs.FileSystem
	// Resources enforces disk quota and I/O limits. Optional.
	Resources *resource.Controller
	// Logger receives lifecycle events. Optional.
	Logger *slog.Logger
}

// Handle locates a byte range stored in a swap file.
// It is only valid for the file that issued it and only until it is freed.
type Handle struct {
	blocks []uint32
	length int
}

// Len returns the number of payload bytes addressed by the handle.
func (h Handle) Len() int { return h.length }

// Blocks returns the number of blocks held by the handle.
func (h Handle) Blocks() int { return len(h.blocks) }

// File is a growable block-structured file.
//
// Block I/O runs concurrently under a shared lifecycle lock; Dispose takes the
// lock exclusively, so no write can race with the close of the underlying file.
type File struct {
	name         string
	blockSize    int
	minGrowCount int
	fs           fs.FileSystem
	rc           *resource.Controller
	logger       *slog.Logger

	mu       sync.RWMutex
	f        fs.File
	disposed atomic.Bool

	allocMu    sync.Mutex
	free       *roaring.Bitmap
	reading    *roaring.Bitmap // claimed by a consuming Read, neither live nor free
	blockCount uint32
}

// Open creates a new, empty swap file.
func Open(cfg Config) (*File, error) {
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.MinGrowCount <= 0 {
		cfg.MinGrowCount = DefaultMinGrowCount
	}
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	if err := cfg.FS.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create swap directory: %w", err)
	}

	name := filepath.Join(cfg.Dir, "swap_"+uuid.NewString()+".data")
	f, err := cfg.FS.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create swap file: %w", err)
	}

	s := &File{
		name:         name,
		blockSize:    cfg.BlockSize,
		minGrowCount: cfg.MinGrowCount,
		fs:           cfg.FS,
		rc:           cfg.Resources,
		logger:       cfg.Logger,
		f:            f,
		free:         roaring.New(),
		reading:      roaring.New(),
	}
	s.logger.Debug("swap file created", "file", name, "block_size", cfg.BlockSize)
	return s, nil
}

// Name returns the path of the swap file.
func (s *File) Name() string { return s.name }

// BlockSize returns the allocation unit in bytes.
func (s *File) BlockSize() int { return s.blockSize }

func (s *File) String() string { return "swap file " + s.name }

// IsDisposed reports whether Dispose has been called.
func (s *File) IsDisposed() bool { return s.disposed.Load() }

// Blocks returns the total and free block counts.
func (s *File) Blocks() (total, free int) {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()
	return int(s.blockCount), int(s.free.GetCardinality())
}

// Write stores data in free blocks, growing the file when needed.
func (s *File) Write(data []byte) (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed.Load() {
		return Handle{}, ErrDisposed
	}

	count := (len(data) + s.blockSize - 1) / s.blockSize
	blocks, err := s.reserve(count)
	if err != nil {
		return Handle{}, err
	}

	if err := s.writeBlocks(blocks, data); err != nil {
		s.allocMu.Lock()
		s.free.AddMany(blocks)
		s.allocMu.Unlock()
		return Handle{}, err
	}

	return Handle{blocks: blocks, length: len(data)}, nil
}

// Read returns the bytes addressed by h. If remove is true the handle is
// consumed: its blocks are claimed before the read, so a concurrent Free or
// Read of h fails with ErrInvalidHandle, and they join the free set once the
// read succeeds. A failed consuming read leaves h valid.
func (s *File) Read(h Handle, remove bool) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed.Load() {
		return nil, ErrDisposed
	}
	if remove {
		if err := s.claim(h); err != nil {
			return nil, err
		}
	} else if err := s.validate(h); err != nil {
		return nil, err
	}

	data, err := s.readBlocks(h)
	if remove {
		s.settle(h, err == nil)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *File) readBlocks(h Handle) ([]byte, error) {
	data := make([]byte, h.length)
	pos := 0
	err := forEachRun(h.blocks, func(first uint32, n int) error {
		end := min(pos+n*s.blockSize, h.length)
		if err := s.rc.WaitIO(context.Background(), end-pos); err != nil {
			return err
		}
		if _, err := s.f.ReadAt(data[pos:end], int64(first)*int64(s.blockSize)); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read swap blocks: %w", err)
		}
		pos = end
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Free releases the blocks of h for reuse without reading them.
func (s *File) Free(h Handle) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed.Load() {
		return ErrDisposed
	}
	return s.release(h)
}

// Dispose closes and deletes the swap file. It is safe to call more than once.
func (s *File) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Swap(true) {
		return nil
	}

	s.allocMu.Lock()
	allocated := int64(s.blockCount) * int64(s.blockSize)
	s.free.Clear()
	s.reading.Clear()
	s.allocMu.Unlock()

	closeErr := s.f.Close()
	removeErr := s.fs.Remove(s.name)
	s.rc.ReleaseDisk(allocated)

	s.logger.Debug("swap file disposed", "file", s.name, "bytes", allocated)
	return errors.Join(closeErr, removeErr)
}

// reserve takes count free blocks, lowest first, growing the file if the
// free set is too small.
func (s *File) reserve(count int) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}

	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	if avail := int(s.free.GetCardinality()); avail < count {
		if err := s.grow(count - avail); err != nil {
			return nil, err
		}
	}

	blocks := make([]uint32, 0, count)
	it := s.free.Iterator()
	for len(blocks) < count && it.HasNext() {
		blocks = append(blocks, it.Next())
	}
	for _, b := range blocks {
		s.free.Remove(b)
	}
	return blocks, nil
}

// grow must be called with allocMu held.
func (s *File) grow(missing int) error {
	growBy := max(missing, s.minGrowCount)
	bytes := int64(growBy) * int64(s.blockSize)

	if err := s.rc.AcquireDisk(bytes); err != nil {
		return err
	}

	off := int64(s.blockCount) * int64(s.blockSize)
	if err := preallocate(s.f, off, bytes); err != nil {
		s.rc.ReleaseDisk(bytes)
		return fmt.Errorf("grow swap file: %w", err)
	}

	s.free.AddRange(uint64(s.blockCount), uint64(s.blockCount)+uint64(growBy))
	s.blockCount += uint32(growBy)

	s.logger.Debug("swap file grown", "file", s.name, "blocks", s.blockCount)
	return nil
}

func (s *File) writeBlocks(blocks []uint32, data []byte) error {
	pos := 0
	return forEachRun(blocks, func(first uint32, n int) error {
		end := min(pos+n*s.blockSize, len(data))
		if err := s.rc.WaitIO(context.Background(), end-pos); err != nil {
			return err
		}
		if _, err := s.f.WriteAt(data[pos:end], int64(first)*int64(s.blockSize)); err != nil {
			return fmt.Errorf("write swap blocks: %w", err)
		}
		pos = end
		return nil
	})
}

func (s *File) validate(h Handle) error {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()
	return s.validateLocked(h)
}

func (s *File) validateLocked(h Handle) error {
	if len(h.blocks) != (h.length+s.blockSize-1)/s.blockSize {
		return ErrInvalidHandle
	}
	for _, b := range h.blocks {
		if b >= s.blockCount || s.free.Contains(b) || s.reading.Contains(b) {
			return ErrInvalidHandle
		}
	}
	return nil
}

func (s *File) release(h Handle) error {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	if err := s.validateLocked(h); err != nil {
		return err
	}
	s.free.AddMany(h.blocks)
	return nil
}

// claim validates h and moves its blocks to the reading set.
func (s *File) claim(h Handle) error {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	if err := s.validateLocked(h); err != nil {
		return err
	}
	s.reading.AddMany(h.blocks)
	return nil
}

// settle ends a consuming read: the claimed blocks are freed when consumed,
// otherwise they become live again.
func (s *File) settle(h Handle, consumed bool) {
	s.allocMu.Lock()
	defer s.allocMu.Unlock()

	for _, b := range h.blocks {
		s.reading.Remove(b)
	}
	if consumed {
		s.free.AddMany(h.blocks)
	}
}

// forEachRun calls fn for every run of consecutive block indices so that
// adjacent blocks are transferred with a single positional I/O.
func forEachRun(blocks []uint32, fn func(first uint32, n int) error) error {
	for i := 0; i < len(blocks); {
		j := i + 1
		for j < len(blocks) && blocks[j] == blocks[j-1]+1 {
			j++
		}
		if err := fn(blocks[i], j-i); err != nil {
			return err
		}
		i = j
	}
	return nil
}
