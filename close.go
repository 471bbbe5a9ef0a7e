package virtualizer

import (
	"errors"
	"io"
)

// Close releases every store and, if the store factory holds resources of
// its own (such as a shared swap file), closes the factory.
func (v *Virtualizer) Close() error {
	if v == nil {
		return nil
	}
	err := v.Cleanup()
	if c, ok := v.factory.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}
