// Package boltfile implements a swap block store on top of a bbolt database.
//
// It offers the same contract as the swap package: Write returns a handle,
// Read and Free consume it, Dispose closes and deletes the file. Each payload
// is one value in a single bucket keyed by the bucket sequence, so there is no
// block size or growth policy to tune; bbolt manages its own pages.
package boltfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	// ErrDisposed is returned by every operation on a disposed file.
	ErrDisposed = errors.New("bolt swap file disposed")
	// ErrInvalidHandle is returned for handles that do not address a stored value.
	ErrInvalidHandle = errors.New("invalid bolt swap handle")
)

var bucketName = []byte("blocks")

// Config holds configuration for a bolt swap file.
type Config struct {
	// Dir is the directory the file is created in. Defaults to os.TempDir().
	Dir string
	// Sync forces an fsync per write transaction. Swap data is transient, so
	// the default skips it.
	Sync bool
	// Logger receives lifecycle events. Optional.
	Logger *slog.Logger
}

// Handle locates a value stored in a bolt swap file.
type Handle struct {
	key    uint64
	length int
}

// Len returns the number of payload bytes addressed by the handle.
func (h Handle) Len() int { return h.length }

// File is a bbolt-backed swap store.
type File struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	db       *bbolt.DB
	disposed atomic.Bool
}

// Open creates a new, empty bolt swap file.
func Open(cfg Config) (*File, error) {
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create swap directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, "swap_"+uuid.NewString()+".bolt")
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout:        time.Second,
		NoSync:         !cfg.Sync,
		NoFreelistSync: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt swap file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("init bolt swap file: %w", err)
	}

	cfg.Logger.Debug("bolt swap file created", "file", path)
	return &File{path: path, logger: cfg.Logger, db: db}, nil
}

// Name returns the path of the file.
func (f *File) Name() string { return f.path }

func (f *File) String() string { return "bolt swap file " + f.path }

// IsDisposed reports whether Dispose has been called.
func (f *File) IsDisposed() bool { return f.disposed.Load() }

// Write stores data under a fresh key.
func (f *File) Write(data []byte) (Handle, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.disposed.Load() {
		return Handle{}, ErrDisposed
	}

	var h Handle
	err := f.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		h = Handle{key: seq, length: len(data)}
		return b.Put(keyBytes(seq), data)
	})
	if err != nil {
		return Handle{}, fmt.Errorf("write bolt swap value: %w", err)
	}
	return h, nil
}

// Read returns the bytes addressed by h, deleting them if remove is true.
func (f *File) Read(h Handle, remove bool) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.disposed.Load() {
		return nil, ErrDisposed
	}

	var data []byte
	fn := func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		k := keyBytes(h.key)
		v, err := lookup(b, k, h)
		if err != nil {
			return err
		}
		// Values are only valid for the life of the transaction.
		data = append(make([]byte, 0, len(v)), v...)
		if remove {
			return b.Delete(k)
		}
		return nil
	}

	var err error
	if remove {
		err = f.db.Update(fn)
	} else {
		err = f.db.View(fn)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Free deletes the value addressed by h.
func (f *File) Free(h Handle) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.disposed.Load() {
		return ErrDisposed
	}

	return f.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		k := keyBytes(h.key)
		if _, err := lookup(b, k, h); err != nil {
			return err
		}
		return b.Delete(k)
	})
}

// Dispose closes and deletes the file. It is safe to call more than once.
func (f *File) Dispose() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disposed.Swap(true) {
		return nil
	}

	closeErr := f.db.Close()
	removeErr := os.Remove(f.path)

	f.logger.Debug("bolt swap file disposed", "file", f.path)
	return errors.Join(closeErr, removeErr)
}

func lookup(b *bbolt.Bucket, k []byte, h Handle) ([]byte, error) {
	ck, v := b.Cursor().Seek(k)
	if ck == nil || binary.BigEndian.Uint64(ck) != h.key || len(v) != h.length {
		return nil, ErrInvalidHandle
	}
	return v, nil
}

func keyBytes(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}
