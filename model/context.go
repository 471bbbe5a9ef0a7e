package model

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Context identifies a logical scope of virtualizable objects.
//
// A context created with NewSubContext shares the lock of its master, so
// holding the lock of any context in a tree excludes every page-out, page-in
// and dispose for the whole tree.
type Context struct {
	id       string
	master   *Context
	mu       *sync.Mutex
	disposed atomic.Bool
	readOnly atomic.Bool
}

// NewContext creates a new master context.
func NewContext() *Context {
	return &Context{
		id: uuid.NewString(),
		mu: &sync.Mutex{},
	}
}

// NewSubContext creates a context nested in parent. Storage for the
// sub-context is routed to parent's master.
func NewSubContext(parent *Context) *Context {
	m := parent.Master()
	return &Context{
		id:     uuid.NewString(),
		master: m,
		mu:     m.mu,
	}
}

// ID returns the stable identity of the context.
func (c *Context) ID() string { return c.id }

// Master returns the outermost context, or c itself if it is a master.
func (c *Context) Master() *Context {
	if c.master == nil {
		return c
	}
	return c.master
}

// IsMaster reports whether c is a master context.
func (c *Context) IsMaster() bool { return c.master == nil }

// Lock acquires the exclusive context lock.
func (c *Context) Lock() { c.mu.Lock() }

// TryLock tries to acquire the context lock without blocking.
func (c *Context) TryLock() bool { return c.mu.TryLock() }

// Unlock releases the context lock.
func (c *Context) Unlock() { c.mu.Unlock() }

// Dispose marks the context as disposed. Operations on a disposed context
// remain legal; the flag lets the cache tell late callers from live ones.
func (c *Context) Dispose() { c.disposed.Store(true) }

// IsDisposed reports whether Dispose has been called.
func (c *Context) IsDisposed() bool { return c.disposed.Load() }

// SetReadOnly marks the context read-only. Objects of a read-only context
// keep their stored copy when paged in, so they can be paged out again
// without another write.
func (c *Context) SetReadOnly(readOnly bool) { c.readOnly.Store(readOnly) }

// IsReadOnly reports whether c or its master is read-only.
func (c *Context) IsReadOnly() bool {
	return c.readOnly.Load() || (c.master != nil && c.master.readOnly.Load())
}

func (c *Context) String() string { return "context " + c.id }
