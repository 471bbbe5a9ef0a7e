// Package swap implements the block-structured swap file backing a store.
//
// A swap file is a private, transient file divided into fixed-size blocks.
// Writes take the lowest free blocks, so payloads written into a fresh or
// compacted region land in consecutive blocks and are transferred with a
// single positional write. When the free set is too small the file grows by
// at least MinGrowCount blocks; on Linux the new range is preallocated with
// fallocate(2).
//
// # Lifecycle
//
//	OPEN ──Dispose──▶ DISPOSED
//
// Every operation on a disposed file returns [ErrDisposed]. Dispose closes
// and deletes the file and is idempotent.
//
// # Concurrency
//
// All methods are safe for concurrent use. Reads and writes of different
// handles proceed in parallel; Dispose waits for in-flight I/O to finish.
package swap
