package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/virtualizer/codec"
	"github.com/hupe1980/virtualizer/compression"
	"github.com/hupe1980/virtualizer/model"
)

// serializeMu serializes every WriteData call in the process. Serializers
// that share encoder state are not required to be safe for concurrent writes.
var serializeMu sync.Mutex

const maxPooledBuffer = 1 << 20

var bufPool = sync.Pool{
	New: func() any { return bytes.NewBuffer(make([]byte, 0, 4096)) },
}

func getBuffer() *bytes.Buffer {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufPool.Put(buf)
}

// Option configures a SwapStore.
type Option func(*SwapStore)

// WithCompression compresses payloads before they are written.
func WithCompression(c compression.Compression) Option {
	return func(s *SwapStore) { s.compression = c }
}

// WithDisposeOnlyWithEmptyHandles defers Dispose while stored objects remain.
func WithDisposeOnlyWithEmptyHandles(enabled bool) Option {
	return func(s *SwapStore) { s.disposeOnlyWithEmptyHandles = enabled }
}

// WithStats records activity into stats and the global counters.
func WithStats(stats *Stats) Option {
	return func(s *SwapStore) { s.stats = stats }
}

// WithLogger sets the logger for store events.
func WithLogger(l *slog.Logger) Option {
	return func(s *SwapStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// SwapStore is a Store over a BlockStore.
type SwapStore struct {
	blocks                      BlockStore
	owner                       bool
	compression                 compression.Compression
	disposeOnlyWithEmptyHandles bool
	stats                       *Stats
	logger                      *slog.Logger

	mu       sync.Mutex
	handles  map[string]Handle
	disposed atomic.Bool
}

var _ Store = (*SwapStore)(nil)

// NewSwapStore creates a store over blocks. An owning store disposes blocks
// when it is disposed; a non-owning store only frees its own handles.
func NewSwapStore(blocks BlockStore, owner bool, opts ...Option) *SwapStore {
	s := &SwapStore{
		blocks:  blocks,
		owner:   owner,
		logger:  slog.New(slog.DiscardHandler),
		handles: make(map[string]Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SwapStore) String() string { return "swap store " + s.blocks.Name() }

// Stats returns the store counters, or nil if stats are disabled.
func (s *SwapStore) Stats() *Stats { return s.stats }

// IsStored implements Store.
func (s *SwapStore) IsStored(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[uid]
	return ok
}

// HasHandles implements Store.
func (s *SwapStore) HasHandles() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles) > 0
}

// Len returns the number of stored objects.
func (s *SwapStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// IsDisposed implements Store.
func (s *SwapStore) IsDisposed() bool { return s.disposed.Load() }

// IsUsable implements Store.
func (s *SwapStore) IsUsable() bool {
	return !s.disposed.Load() && !s.blocks.IsDisposed()
}

// Store implements Store.
func (s *SwapStore) Store(obj model.Virtualizable, ser codec.Serializer) (bool, error) {
	uid := obj.UID()
	if s.disposed.Load() {
		return false, &IOError{Op: "store", UID: uid, Err: ErrDisposed}
	}
	if s.IsStored(uid) {
		s.logger.Debug("object already stored", "uid", uid, "store", s.blocks.Name())
		return false, nil
	}

	buf := getBuffer()
	defer putBuffer(buf)

	start := s.stats.now()
	if err := s.serialize(obj, ser, buf); err != nil {
		s.logger.Error("error virtualizing object", "uid", uid, "store", s.blocks.Name(), "error", err)
		return false, &SerializationError{Op: "store", UID: uid, Err: err}
	}
	serialized := s.stats.since(start)

	start = s.stats.now()
	h, err := s.blocks.Write(buf.Bytes())
	if err != nil {
		s.logger.Error("error writing object", "uid", uid, "store", s.blocks.Name(), "error", err)
		return false, &IOError{Op: "store", UID: uid, Err: err}
	}
	written := s.stats.since(start)

	s.mu.Lock()
	if _, ok := s.handles[uid]; ok {
		// Lost a race with a concurrent store of the same UID.
		s.mu.Unlock()
		if err := s.blocks.Free(h); err != nil {
			return false, &IOError{Op: "store", UID: uid, Err: err}
		}
		return false, nil
	}
	s.handles[uid] = h
	s.mu.Unlock()

	s.stats.recordStore(serialized, written, h.Len())
	s.logger.Debug("object stored", "uid", uid, "bytes", h.Len(), "store", s.blocks.Name())
	return true, nil
}

func (s *SwapStore) serialize(obj model.Virtualizable, ser codec.Serializer, buf *bytes.Buffer) error {
	var w io.Writer = buf
	var cw io.WriteCloser
	if s.compression != nil {
		var err error
		if cw, err = s.compression.CompressedWriter(buf); err != nil {
			return err
		}
		w = cw
	}

	serializeMu.Lock()
	err := ser.WriteData(obj, w)
	serializeMu.Unlock()

	if cw != nil {
		err = errors.Join(err, cw.Close())
	}
	return err
}

// Retrieve implements Store.
func (s *SwapStore) Retrieve(obj model.Virtualizable, remove bool, ser codec.Serializer) error {
	uid := obj.UID()

	s.mu.Lock()
	h, ok := s.handles[uid]
	s.mu.Unlock()
	if !ok {
		s.logger.Error("no handle found", "uid", uid, "store", s.blocks.Name())
		return fmt.Errorf("%w: %s in %s", ErrHandleNotFound, uid, s.blocks.Name())
	}

	start := s.stats.now()
	data, err := s.blocks.Read(h, remove)
	if err != nil {
		s.logger.Error("error reading object", "uid", uid, "store", s.blocks.Name(), "error", err)
		return &IOError{Op: "retrieve", UID: uid, Err: err}
	}
	read := s.stats.since(start)

	if remove {
		s.mu.Lock()
		delete(s.handles, uid)
		s.mu.Unlock()
	}

	start = s.stats.now()
	if err := s.deserialize(obj, ser, data); err != nil {
		s.logger.Error("error devirtualizing object", "uid", uid, "store", s.blocks.Name(), "error", err)
		return &SerializationError{Op: "retrieve", UID: uid, Err: err}
	}

	s.stats.recordRetrieve(read, s.stats.since(start), len(data))
	s.logger.Debug("object retrieved", "uid", uid, "bytes", len(data), "remove", remove, "store", s.blocks.Name())
	return nil
}

func (s *SwapStore) deserialize(obj model.Virtualizable, ser codec.Serializer, data []byte) error {
	var r io.Reader = bytes.NewReader(data)
	if s.compression != nil {
		rc, err := s.compression.UncompressedReader(r)
		if err != nil {
			return err
		}
		defer rc.Close()
		r = rc
	}
	return ser.ReadData(obj, r)
}

// Remove implements Store.
func (s *SwapStore) Remove(uid string) error {
	s.mu.Lock()
	h, ok := s.handles[uid]
	delete(s.handles, uid)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug("object not found for removal", "uid", uid, "store", s.blocks.Name())
		return nil
	}

	if err := s.blocks.Free(h); err != nil {
		return &IOError{Op: "remove", UID: uid, Err: err}
	}
	s.stats.recordRemove()
	return nil
}

// Dispose implements Store.
func (s *SwapStore) Dispose() error {
	s.mu.Lock()
	if s.disposeOnlyWithEmptyHandles && len(s.handles) > 0 {
		n := len(s.handles)
		s.mu.Unlock()
		s.logger.Debug("dispose deferred", "handles", n, "store", s.blocks.Name())
		return nil
	}
	if s.disposed.Swap(true) {
		s.mu.Unlock()
		return nil
	}
	handles := s.handles
	s.handles = make(map[string]Handle)
	s.mu.Unlock()

	if s.owner {
		s.logger.Debug("disposing", "store", s.blocks.Name())
		if err := s.blocks.Dispose(); err != nil {
			return &IOError{Op: "dispose", Err: err}
		}
		return nil
	}

	// The block store outlives us; give our blocks back to it.
	var errs []error
	for _, h := range handles {
		if err := s.blocks.Free(h); err != nil && !errors.Is(err, ErrDisposed) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &IOError{Op: "dispose", Err: err}
	}
	return nil
}
