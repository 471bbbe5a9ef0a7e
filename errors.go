package virtualizer

import (
	"errors"
	"fmt"

	"github.com/hupe1980/virtualizer/store"
)

var (
	// ErrDisposed is returned for operations on storage whose owner has been
	// disposed in a way the disposal policy does not tolerate.
	ErrDisposed = errors.New("disposed")
	// ErrNotRegistered is returned when an object is not tracked by the virtualizer.
	ErrNotRegistered = errors.New("object not registered")
	// ErrAlreadyStored is returned when a writable context pages out an object
	// whose previous stored copy was never paged in.
	ErrAlreadyStored = errors.New("object already stored")
	// ErrStoreNotFound is returned when paging in for a context that has no store.
	ErrStoreNotFound = errors.New("store not found")
	// ErrHandleNotFound is returned when paging in an object that has no stored copy.
	ErrHandleNotFound = errors.New("handle not found")
	// ErrInvalidMaxSize is returned by New when maxSize is not positive.
	ErrInvalidMaxSize = errors.New("max size must be positive")
)

// IOError reports a failure of the backing storage: block I/O, file growth
// or an exhausted disk quota.
//
// The original underlying error can be accessed via errors.Unwrap.
type IOError struct {
	Op    string
	UID   string
	cause error
}

func (e *IOError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("%s: io error: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("%s %s: io error: %v", e.Op, e.UID, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }

// SerializationError reports a codec or compression failure.
//
// The original underlying error can be accessed via errors.Unwrap.
type SerializationError struct {
	Op    string
	UID   string
	cause error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s %s: serialization error: %v", e.Op, e.UID, e.cause)
}

func (e *SerializationError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Usage errors first: a disposed store is misuse, not a storage fault.
	if errors.Is(err, store.ErrDisposed) {
		return fmt.Errorf("%w: %w", ErrDisposed, err)
	}
	if errors.Is(err, store.ErrHandleNotFound) {
		return fmt.Errorf("%w: %w", ErrHandleNotFound, err)
	}

	var se *store.SerializationError
	if errors.As(err, &se) {
		return &SerializationError{Op: se.Op, UID: se.UID, cause: err}
	}
	var ioe *store.IOError
	if errors.As(err, &ioe) {
		return &IOError{Op: ioe.Op, UID: ioe.UID, cause: err}
	}

	return err
}
