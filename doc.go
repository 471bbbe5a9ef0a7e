// Package virtualizer provides a bounded, disk-backed LRU cache for large
// in-memory objects.
//
// A Virtualizer keeps at most MaxSize registered objects resident. When the
// resident set overflows, the least recently used objects are serialized to
// a store owned by their context and their in-memory data is dropped. Access
// through EnsureLoaded transparently reads them back.
//
// # Quick Start
//
//	v, _ := virtualizer.New(100, &store.SwapFileFactory{Dir: "/tmp/swap"})
//	defer v.Close()
//
//	ctx := model.NewContext()
//	page := model.NewObject(ctx, &Page{Number: 1})
//
//	v.RegisterObject(page)   // may page out older objects
//	v.EnsureLoaded(page)     // pages page back in if it was evicted
//	v.DisposeContext(ctx)    // releases the context's swap file
//
// # Contexts and Stores
//
// Every object belongs to a model.Context. Nested contexts created with
// model.NewSubContext share the store of their master context. Stores are
// created on the first page-out of a context by a store.Factory:
//
//   - store.SwapFileFactory: block-structured swap files (default)
//   - store.BoltFactory: bbolt files
//   - store.SharedFactory: one store for every context
//
// # Pinning
//
// Pinned objects are never chosen as eviction victims. Acquire pins and
// loads in one step:
//
//	if err := v.Acquire(page); err != nil { ... }
//	defer v.Unpin(page)
//
// # Concurrency
//
// All methods are safe for concurrent use. Page-out, page-in and dispose of
// one context are serialized by the context lock; callers must not hold that
// lock while calling into the Virtualizer. The cache mutex is never held
// while paging; eviction victims that are busy are skipped.
//
// # Errors
//
// Usage errors (ErrDisposed, ErrNotRegistered, ErrAlreadyStored) are
// distinct from storage failures (*IOError) and codec failures
// (*SerializationError). A failed page-out leaves its victim resident.
package virtualizer
