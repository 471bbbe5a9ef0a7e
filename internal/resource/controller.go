package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrDiskLimitExceeded is returned when the swap disk quota would be exceeded.
var ErrDiskLimitExceeded = errors.New("swap disk limit exceeded")

// Config holds resource limits.
type Config struct {
	// DiskLimitBytes is the hard limit for bytes allocated by all swap files
	// sharing this controller. If 0, no hard limit is enforced (only tracking).
	DiskLimitBytes int64

	// IOLimitBytesPerSec is the maximum swap I/O throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller governs swap disk usage and swap I/O throughput.
type Controller struct {
	cfg Config

	// Disk
	diskSem  *semaphore.Weighted // nil if unlimited
	diskUsed atomic.Int64

	// IO
	ioLimiter *rate.Limiter
	ioBurst   int
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.DiskLimitBytes > 0 {
		c.diskSem = semaphore.NewWeighted(cfg.DiskLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioBurst = int(cfg.IOLimitBytesPerSec)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), c.ioBurst)
	}

	return c
}

// AcquireDisk reserves swap disk space.
// Returns ErrDiskLimitExceeded if the limit would be exceeded.
// Non-blocking: a full disk quota is a failure, not a wait.
func (c *Controller) AcquireDisk(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.diskSem != nil {
		if !c.diskSem.TryAcquire(bytes) {
			return ErrDiskLimitExceeded
		}
	}

	c.diskUsed.Add(bytes)
	return nil
}

// ReleaseDisk releases reserved swap disk space.
func (c *Controller) ReleaseDisk(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.diskSem != nil {
		c.diskSem.Release(bytes)
	}
	c.diskUsed.Add(-bytes)
}

// DiskUsage returns the current swap disk usage in bytes.
func (c *Controller) DiskUsage() int64 {
	if c == nil {
		return 0
	}
	return c.diskUsed.Load()
}

// DiskLimit returns the configured disk limit in bytes (0 if unlimited).
func (c *Controller) DiskLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.DiskLimitBytes
}

// WaitIO blocks until the IO limit allows the specified number of bytes.
// Requests larger than the limiter burst are split into burst-sized waits.
func (c *Controller) WaitIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, c.ioBurst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
