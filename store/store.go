package store

import (
	"errors"
	"fmt"

	"github.com/hupe1980/virtualizer/codec"
	"github.com/hupe1980/virtualizer/model"
)

var (
	// ErrHandleNotFound is returned when retrieving a UID that has no stored copy.
	ErrHandleNotFound = errors.New("handle not found")
	// ErrDisposed is returned by operations on a disposed store or block store.
	ErrDisposed = errors.New("store disposed")
	// ErrInvalidHandle is returned when a handle does not belong to the block store.
	ErrInvalidHandle = errors.New("invalid handle")
)

// IOError reports a block I/O failure.
type IOError struct {
	Op  string
	UID string
	Err error
}

func (e *IOError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.UID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SerializationError reports a codec or compression failure.
type SerializationError struct {
	Op  string
	UID string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.UID, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Handle locates a stored payload inside a block store.
type Handle interface {
	// Len returns the number of stored bytes.
	Len() int
}

// Store holds the paged-out copies of the objects of one owner.
type Store interface {
	// Store serializes obj and persists it. It returns false, and writes
	// nothing, if obj's UID is already stored.
	Store(obj model.Virtualizable, s codec.Serializer) (bool, error)
	// Retrieve restores obj from its stored copy. If remove is true the
	// stored copy is released.
	Retrieve(obj model.Virtualizable, remove bool, s codec.Serializer) error
	// Remove releases the stored copy of uid, if any.
	Remove(uid string) error
	// Dispose releases every stored copy and, for owning stores, the block
	// store. It may be deferred by the store's disposal policy.
	Dispose() error
	// IsUsable reports whether the store can still accept operations.
	IsUsable() bool
	// IsStored reports whether uid has a stored copy.
	IsStored(uid string) bool
	// HasHandles reports whether any stored copies remain.
	HasHandles() bool
	// IsDisposed reports whether Dispose took effect.
	IsDisposed() bool
}

// Factory creates a store for a master context.
type Factory interface {
	CreateStore(ctx *model.Context) (Store, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx *model.Context) (Store, error)

// CreateStore implements Factory.
func (f FactoryFunc) CreateStore(ctx *model.Context) (Store, error) { return f(ctx) }
