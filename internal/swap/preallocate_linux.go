//go:build linux

package swap

import (
	"errors"

	"github.com/hupe1980/virtualizer/internal/fs"
	"golang.org/x/sys/unix"
)

// preallocate reserves length bytes at off so later block writes cannot fail
// with ENOSPC halfway through a page-out.
func preallocate(f fs.File, off, length int64) error {
	if d, ok := f.(fs.Descriptor); ok {
		err := unix.Fallocate(int(d.Fd()), 0, off, length)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EOPNOTSUPP) && !errors.Is(err, unix.ENOSYS) {
			return err
		}
	}
	return f.Truncate(off + length)
}
