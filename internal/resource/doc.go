// Package resource implements the Controller for swap disk quotas and swap I/O limits.
//
// One Controller is shared by every swap file created from the same store
// factory, so limits apply to the factory as a whole rather than per report:
//
//   - Disk: Track and limit bytes allocated by swap files (non-blocking, fail-fast)
//   - IO: Token-bucket rate limit on swap reads and writes
//
// # Disk Quota
//
// Disk tracking uses a weighted semaphore for hard limits and an atomic counter
// for usage. AcquireDisk is non-blocking and returns ErrDiskLimitExceeded
// immediately when the quota is exhausted:
//
//	rc := resource.NewController(resource.Config{
//	    DiskLimitBytes: 1 << 30, // 1GB of swap
//	})
//
//	if err := rc.AcquireDisk(growBytes); err != nil {
//	    // ErrDiskLimitExceeded - the page-out fails
//	}
//	defer rc.ReleaseDisk(growBytes)
//
// # IO Rate Limiting
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 100 * 1024 * 1024, // 100MB/s
//	})
//
//	if err := rc.WaitIO(ctx, len(block)); err != nil {
//	    return err
//	}
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
package resource
