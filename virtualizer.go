package virtualizer

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/virtualizer/codec"
	"github.com/hupe1980/virtualizer/model"
	"github.com/hupe1980/virtualizer/store"
)

type pageState uint8

const (
	resident pageState = iota
	evicting
	pagedOut
)

// entryKey identifies an object within its storage scope.
type entryKey struct {
	ctx *model.Context // master
	uid string
}

func keyOf(obj model.Virtualizable) entryKey {
	return entryKey{ctx: obj.Context().Master(), uid: obj.UID()}
}

type entry struct {
	key entryKey
	obj model.Virtualizable

	// page is held for the whole page-out or page-in of obj.
	page sync.Mutex

	// Guarded by Virtualizer.mu.
	elem  *list.Element // non-nil while resident
	state pageState
	pins  int
}

// Virtualizer keeps at most maxSize registered objects resident and pages
// the least recently used ones out to per-context stores.
//
// Methods must not be called while holding the lock of the object's context.
type Virtualizer struct {
	maxSize            int
	factory            store.Factory
	dir                *directory
	serializer         codec.Serializer
	metrics            MetricsCollector
	logger             *Logger
	cleanupConcurrency int

	mu      sync.Mutex
	lru     *list.List // resident entries, most recently used first
	entries map[entryKey]*entry
}

// New creates a virtualizer that keeps at most maxSize objects resident.
// A nil factory selects a store.SwapFileFactory with default settings.
func New(maxSize int, factory store.Factory, optFns ...Option) (*Virtualizer, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidMaxSize
	}
	if factory == nil {
		factory = &store.SwapFileFactory{}
	}

	o := applyOptions(optFns)

	return &Virtualizer{
		maxSize:            maxSize,
		factory:            factory,
		dir:                newDirectory(factory, o.logger),
		serializer:         o.serializer,
		metrics:            o.metricsCollector,
		logger:             o.logger,
		cleanupConcurrency: o.cleanupConcurrency,
		lru:                list.New(),
		entries:            make(map[entryKey]*entry),
	}, nil
}

// MaxSize returns the resident set bound.
func (v *Virtualizer) MaxSize() int { return v.maxSize }

// RegisterObject starts tracking obj as resident. If the resident set grows
// beyond MaxSize, the least recently used unpinned objects other than obj
// are paged out. A page-out failure is returned and its victim stays resident.
//
// Registering a tracked object only touches it.
func (v *Virtualizer) RegisterObject(obj model.Virtualizable) error {
	k := keyOf(obj)

	v.mu.Lock()
	if e, ok := v.entries[k]; ok {
		if e.elem != nil {
			v.lru.MoveToFront(e.elem)
		}
		v.mu.Unlock()
		return nil
	}

	e := &entry{key: k, obj: obj}
	e.elem = v.lru.PushFront(e)
	v.entries[k] = e
	victims := v.selectVictimsLocked(e)
	v.mu.Unlock()

	return v.evict(victims)
}

// EnsureLoaded makes obj resident, paging it in if needed, and marks it most
// recently used.
//
// An untracked object whose data is resident is left alone. An untracked
// object without data is paged in from its context's store and registered
// again; this serves page-ins that race with the disposal of their owner.
func (v *Virtualizer) EnsureLoaded(obj model.Virtualizable) error {
	k := keyOf(obj)

	v.mu.Lock()
	e, ok := v.entries[k]
	if !ok {
		v.mu.Unlock()
		return v.loadUntracked(obj)
	}
	if e.elem != nil {
		v.lru.MoveToFront(e.elem)
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()

	// Wait for a page-out in flight, then look again.
	e.page.Lock()
	v.mu.Lock()
	if v.entries[k] != e {
		v.mu.Unlock()
		e.page.Unlock()
		return v.loadUntracked(obj)
	}
	if e.elem != nil {
		v.lru.MoveToFront(e.elem)
		v.mu.Unlock()
		e.page.Unlock()
		return nil
	}
	v.mu.Unlock()

	err := v.devirtualize(obj, false)

	var victims []*entry
	v.mu.Lock()
	if err == nil && v.entries[k] == e {
		e.elem = v.lru.PushFront(e)
		e.state = resident
		victims = v.selectVictimsLocked(e)
	}
	v.mu.Unlock()
	e.page.Unlock()

	if err != nil {
		return err
	}
	return v.evict(victims)
}

func (v *Virtualizer) loadUntracked(obj model.Virtualizable) error {
	if obj.VirtualData() != nil {
		return nil
	}
	if err := v.devirtualize(obj, true); err != nil {
		if obj.Context().Master().IsDisposed() {
			return fmt.Errorf("%w: %w", ErrDisposed, err)
		}
		return err
	}
	return v.RegisterObject(obj)
}

// Touch marks a resident obj as most recently used.
func (v *Virtualizer) Touch(obj model.Virtualizable) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if e, ok := v.entries[keyOf(obj)]; ok && e.elem != nil {
		v.lru.MoveToFront(e.elem)
	}
}

// Pin excludes obj from eviction until a matching Unpin. Pins nest.
func (v *Virtualizer) Pin(obj model.Virtualizable) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[keyOf(obj)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, obj.UID())
	}
	e.pins++
	return nil
}

// Unpin releases one pin of obj. Releasing the last pin may evict objects
// that were kept resident beyond MaxSize.
func (v *Virtualizer) Unpin(obj model.Virtualizable) error {
	v.mu.Lock()
	e, ok := v.entries[keyOf(obj)]
	if !ok {
		v.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, obj.UID())
	}
	if e.pins > 0 {
		e.pins--
	}
	victims := v.selectVictimsLocked(nil)
	v.mu.Unlock()

	return v.evict(victims)
}

// Acquire pins obj and makes it resident. The pin is released again if the
// page-in fails.
func (v *Virtualizer) Acquire(obj model.Virtualizable) error {
	if err := v.Pin(obj); err != nil {
		return err
	}
	if err := v.EnsureLoaded(obj); err != nil {
		_ = v.Unpin(obj)
		return err
	}
	return nil
}

// DeregisterObject stops tracking obj and releases its stored copy if it is
// paged out. Deregistering an object of a disposed context is a no-op.
func (v *Virtualizer) DeregisterObject(obj model.Virtualizable) error {
	k := keyOf(obj)

	v.mu.Lock()
	e, ok := v.entries[k]
	v.mu.Unlock()
	if !ok {
		if k.ctx.IsDisposed() {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNotRegistered, obj.UID())
	}

	e.page.Lock()
	v.mu.Lock()
	if v.entries[k] != e {
		v.mu.Unlock()
		e.page.Unlock()
		return nil
	}
	delete(v.entries, k)
	if e.elem != nil {
		v.lru.Remove(e.elem)
		e.elem = nil
	}
	wasPagedOut := e.state == pagedOut
	v.mu.Unlock()
	e.page.Unlock()

	if wasPagedOut {
		return v.DisposeObject(obj)
	}
	return nil
}

// DisposeContext drops the bookkeeping of the context's objects and releases
// their storage.
//
// For a master context the store is disposed through the directory, unless
// another live context shares it or the store defers disposal while stored
// objects remain. For a sub-context only the stored copies of its own
// objects are released; the store belongs to the master.
func (v *Virtualizer) DisposeContext(ctx *model.Context) error {
	start := time.Now()
	master := ctx.Master()

	var dropped int
	var stored []model.Virtualizable

	v.mu.Lock()
	for k, e := range v.entries {
		if k.ctx != master || (!ctx.IsMaster() && e.obj.Context() != ctx) {
			continue
		}
		delete(v.entries, k)
		if e.elem != nil {
			v.lru.Remove(e.elem)
			e.elem = nil
		}
		if e.state == pagedOut {
			stored = append(stored, e.obj)
		}
		dropped++
	}
	v.mu.Unlock()

	var err error
	if ctx.IsMaster() {
		ctx.Lock()
		ctx.Dispose()
		err = translateError(v.dir.disposeContext(ctx))
		ctx.Unlock()
	} else {
		ctx.Dispose()
		var errs []error
		for _, obj := range stored {
			errs = append(errs, v.DisposeObject(obj))
		}
		err = errors.Join(errs...)
	}

	v.metrics.RecordDispose(time.Since(start), err)
	v.logger.LogDispose(ctx, dropped, err)
	return err
}

// PageOut stores obj in its context's store, creating the store if needed.
// It does not touch the object's resident data or the LRU bookkeeping.
//
// Paging out an object that is still stored fails with ErrAlreadyStored
// unless the context is read-only.
func (v *Virtualizer) PageOut(obj model.Virtualizable) error {
	ctx := obj.Context()
	ctx.Lock()
	defer ctx.Unlock()

	st, err := v.dir.getOrCreate(ctx.Master())
	if err != nil {
		return translateError(err)
	}
	stored, err := st.Store(obj, v.serializer)
	if err != nil {
		return translateError(err)
	}
	if !stored && !ctx.IsReadOnly() {
		return fmt.Errorf("%w: %s", ErrAlreadyStored, obj.UID())
	}
	return nil
}

// PageIn restores obj from its context's store. The stored copy is released
// unless the context is read-only.
func (v *Virtualizer) PageIn(obj model.Virtualizable) error {
	_, err := v.pageIn(obj, false)
	return err
}

// pageIn restores obj under the context lock. With lazy set, an object whose
// data is already resident is left alone and loaded is false.
func (v *Virtualizer) pageIn(obj model.Virtualizable, lazy bool) (loaded bool, err error) {
	ctx := obj.Context()
	ctx.Lock()
	defer ctx.Unlock()

	if lazy && obj.VirtualData() != nil {
		return false, nil
	}
	st := v.dir.get(ctx.Master())
	if st == nil {
		return false, fmt.Errorf("%w: %s", ErrStoreNotFound, ctx.Master())
	}
	if err := translateError(st.Retrieve(obj, !ctx.IsReadOnly(), v.serializer)); err != nil {
		return false, err
	}
	return true, nil
}

// DisposeObject releases the stored copy of obj, if any.
func (v *Virtualizer) DisposeObject(obj model.Virtualizable) error {
	ctx := obj.Context()
	ctx.Lock()
	defer ctx.Unlock()

	if st := v.dir.get(ctx.Master()); st != nil {
		return translateError(st.Remove(obj.UID()))
	}
	return nil
}

// Cleanup drops all bookkeeping and disposes every store. Resident objects
// keep their data; paged-out objects become unreachable.
func (v *Virtualizer) Cleanup() error {
	v.mu.Lock()
	clear(v.entries)
	v.lru.Init()
	v.mu.Unlock()

	return translateError(v.dir.cleanup(v.cleanupConcurrency))
}

// Len returns the number of tracked objects.
func (v *Virtualizer) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// Resident returns the number of tracked objects whose data is in memory.
func (v *Virtualizer) Resident() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lru.Len()
}

// IsResident reports whether obj is tracked and in memory.
func (v *Virtualizer) IsResident(obj model.Virtualizable) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.entries[keyOf(obj)]
	return ok && e.elem != nil
}

// Stats is a snapshot of the virtualizer state.
type Stats struct {
	Registered int
	Resident   int
	PagedOut   int
	Evicting   int
	Pinned     int
	Stores     int
}

// Stats returns a snapshot of the virtualizer state.
func (v *Virtualizer) Stats() Stats {
	v.mu.Lock()
	s := Stats{
		Registered: len(v.entries),
		Resident:   v.lru.Len(),
	}
	for _, e := range v.entries {
		switch e.state {
		case pagedOut:
			s.PagedOut++
		case evicting:
			s.Evicting++
		}
		if e.pins > 0 {
			s.Pinned++
		}
	}
	v.mu.Unlock()

	s.Stores = v.dir.len()
	return s
}

// selectVictimsLocked removes eviction victims from the LRU, least recently
// used first, until the resident set fits. Pinned entries, exclude and
// entries whose page lock is taken are skipped. Victims are returned with
// their page lock held. Must be called with v.mu held.
func (v *Virtualizer) selectVictimsLocked(exclude *entry) []*entry {
	var victims []*entry
	for el := v.lru.Back(); el != nil && v.lru.Len() > v.maxSize; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if e != exclude && e.pins == 0 && e.page.TryLock() {
			v.lru.Remove(el)
			e.elem = nil
			e.state = evicting
			victims = append(victims, e)
		}
		el = prev
	}
	return victims
}

// evict pages out victims and releases their page locks. Failed victims are
// re-admitted as most recently used.
func (v *Virtualizer) evict(victims []*entry) error {
	if len(victims) == 0 {
		return nil
	}

	var errs []error
	for _, e := range victims {
		err := v.virtualize(e.obj)

		v.mu.Lock()
		registered := v.entries[e.key] == e
		if err != nil {
			errs = append(errs, err)
			if registered {
				e.elem = v.lru.PushFront(e)
				e.state = resident
			}
		} else {
			e.state = pagedOut
		}
		v.mu.Unlock()
		e.page.Unlock()

		if err == nil && !registered {
			v.discard(e.obj)
		}
	}

	v.metrics.RecordEviction(len(victims), len(errs))
	v.logger.LogEviction(len(victims), len(errs), v.Resident())
	return errors.Join(errs...)
}

// discard releases the stored copy of an object whose context was disposed
// while it was being paged out. The context dispose is repeated only if the
// context has not been reused since: no tracked objects and no stored copies.
func (v *Virtualizer) discard(obj model.Virtualizable) {
	ctx := obj.Context()
	ctx.Lock()
	defer ctx.Unlock()

	master := ctx.Master()
	st := v.dir.get(master)
	if st != nil {
		if err := st.Remove(obj.UID()); err != nil {
			v.logger.Warn("discard failed", "uid", obj.UID(), "error", err)
		}
	}
	if !master.IsDisposed() || (st != nil && st.HasHandles()) || v.tracks(master) {
		return
	}
	if err := v.dir.disposeContext(master); err != nil {
		v.logger.Warn("dispose after discard failed", "context", master.ID(), "error", err)
	}
}

// tracks reports whether any registered object belongs to master.
func (v *Virtualizer) tracks(master *model.Context) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for k := range v.entries {
		if k.ctx == master {
			return true
		}
	}
	return false
}

func (v *Virtualizer) virtualize(obj model.Virtualizable) error {
	start := time.Now()

	ext, hooks := obj.(model.Externalizer)
	if hooks {
		ext.BeforeExternalization()
	}
	err := v.PageOut(obj)
	if hooks {
		ext.AfterExternalization()
	}
	if err == nil {
		obj.RemoveVirtualData()
	}

	d := time.Since(start)
	v.metrics.RecordPageOut(d, err)
	v.logger.LogPageOut(obj.UID(), d, err)
	return err
}

// devirtualize pages obj in and runs its internalization hook. With lazy
// set, nothing happens if another caller loaded obj first.
func (v *Virtualizer) devirtualize(obj model.Virtualizable, lazy bool) error {
	start := time.Now()

	loaded, err := v.pageIn(obj, lazy)
	if err == nil && !loaded {
		return nil
	}
	if err == nil {
		if in, ok := obj.(model.Internalizer); ok {
			in.AfterInternalization()
		}
	}

	d := time.Since(start)
	v.metrics.RecordPageIn(d, err)
	v.logger.LogPageIn(obj.UID(), d, err)
	return err
}
