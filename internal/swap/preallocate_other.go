//go:build !linux

package swap

import "github.com/hupe1980/virtualizer/internal/fs"

func preallocate(f fs.File, off, length int64) error {
	return f.Truncate(off + length)
}
