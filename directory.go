package virtualizer

import (
	"sync"

	"github.com/hupe1980/virtualizer/model"
	"github.com/hupe1980/virtualizer/store"
	"golang.org/x/sync/errgroup"
)

// directory maps master contexts to their stores.
//
// Lookups never return a store that reports !IsUsable(); such entries are
// treated as absent and replaced on the next getOrCreate. Callers hold the
// context lock of ctx.
type directory struct {
	factory store.Factory
	logger  *Logger

	mu     sync.Mutex
	stores map[*model.Context]store.Store
}

func newDirectory(factory store.Factory, logger *Logger) *directory {
	return &directory{
		factory: factory,
		logger:  logger,
		stores:  make(map[*model.Context]store.Store),
	}
}

// getOrCreate returns the usable store of ctx, creating one if needed.
// Check and create happen under one lock so concurrent first page-outs of a
// context share a single store.
func (d *directory) getOrCreate(ctx *model.Context) (store.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st, ok := d.stores[ctx]; ok && st.IsUsable() {
		return st, nil
	}

	st, err := d.factory.CreateStore(ctx)
	if err != nil {
		return nil, err
	}
	d.stores[ctx] = st
	d.logger.Debug("store created", "context", ctx.ID())
	return st, nil
}

// get returns the usable store of ctx, or nil.
func (d *directory) get(ctx *model.Context) store.Store {
	d.mu.Lock()
	defer d.mu.Unlock()

	if st, ok := d.stores[ctx]; ok && st.IsUsable() {
		return st
	}
	return nil
}

// disposeContext disposes the store of ctx unless another live context still
// references it. The entry is removed once the store is no longer usable;
// a store kept by its disposal policy stays reachable for pending page-ins.
//
// The directory lock covers the lookup and the reference scan only; the
// store is disposed without it so unrelated contexts are not held up by
// file deletion. The caller's context lock keeps ctx's entry stable.
func (d *directory) disposeContext(ctx *model.Context) error {
	d.mu.Lock()
	st, ok := d.stores[ctx]
	if !ok {
		d.mu.Unlock()
		return nil
	}
	for other, ost := range d.stores {
		if other != ctx && ost == st && !other.IsDisposed() {
			d.mu.Unlock()
			d.logger.Debug("store still referenced, not disposing", "context", ctx.ID(), "by", other.ID())
			return nil
		}
	}
	d.mu.Unlock()

	err := st.Dispose()
	if st.IsUsable() {
		return err
	}

	d.mu.Lock()
	for other, ost := range d.stores {
		if ost == st {
			delete(d.stores, other)
		}
	}
	d.mu.Unlock()
	return err
}

// len returns the number of contexts with a store entry.
func (d *directory) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.stores)
}

// cleanup disposes every store and clears the directory.
func (d *directory) cleanup(concurrency int) error {
	d.mu.Lock()
	unique := make(map[store.Store]struct{}, len(d.stores))
	for _, st := range d.stores {
		unique[st] = struct{}{}
	}
	clear(d.stores)
	d.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for st := range unique {
		g.Go(func() error {
			err := st.Dispose()
			if err == nil && st.IsUsable() {
				d.logger.Warn("store kept by disposal policy", "store", st)
			}
			return err
		})
	}
	return g.Wait()
}
