// Package fs provides the filesystem abstraction used by swap files.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with positional read/write, truncate and sync
//   - [FileSystem]: open, create-temp, remove, stat and directory operations
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Usage
//
// Production code uses fs.Default (which is [LocalFS]):
//
//	f, err := fs.Default.CreateTemp(dir, "swap_*.data")
//
// Tests inject [FaultyFS] to simulate disk failures under a swap file:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("swap_", fs.Fault{FailAfterBytes: 4096})
//
// # Design Notes
//
// This package intentionally does NOT include context.Context parameters.
// Swap I/O is local and non-interruptible at the syscall level.
package fs
