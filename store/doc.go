// Package store implements per-owner stores for paged-out objects.
//
// A Store binds one block store (a swap file or a bbolt file) to one owner
// context and tracks which object UID lives under which block handle:
//
//	blocks, _ := swap.Open(swap.Config{Dir: dir})
//	st := store.NewSwapStore(store.SwapBlocks(blocks), true)
//
//	stored, err := st.Store(obj, serializer)   // false if already stored
//	err = st.Retrieve(obj, true, serializer)    // reads and frees the blocks
//	err = st.Dispose()
//
// Factories create stores on demand for the virtualizer's store directory:
//
//   - SwapFileFactory: one swap file per store, or one shared swap file
//   - BoltFactory: one bbolt file per store
//   - SharedFactory: one store handed to every context
//
// # Disposal Policy
//
// With DisposeOnlyWithEmptyHandles, Dispose is a no-op while stored objects
// remain, so a dispose that races ahead of a pending page-in does not destroy
// the data that page-in still needs.
//
// # Serialization
//
// Serializers run under one process-wide lock on the write path only.
// Reads deserialize concurrently.
package store
