package model

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Object is a generic Virtualizable holding a *T payload.
type Object[T any] struct {
	uid  string
	ctx  *Context
	data atomic.Pointer[T]
}

var _ Virtualizable = (*Object[struct{}])(nil)

// NewObject creates an object in ctx with a process-unique UID.
func NewObject[T any](ctx *Context, data *T) *Object[T] {
	return NewObjectWithUID(uuid.NewString(), ctx, data)
}

// NewObjectWithUID creates an object with an explicit UID.
func NewObjectWithUID[T any](uid string, ctx *Context, data *T) *Object[T] {
	o := &Object[T]{uid: uid, ctx: ctx}
	o.data.Store(data)
	return o
}

// UID implements Virtualizable.
func (o *Object[T]) UID() string { return o.uid }

// Context implements Virtualizable.
func (o *Object[T]) Context() *Context { return o.ctx }

// Data returns the resident payload, or nil if it is paged out.
func (o *Object[T]) Data() *T { return o.data.Load() }

// VirtualData implements Virtualizable.
func (o *Object[T]) VirtualData() any {
	if d := o.data.Load(); d != nil {
		return d
	}
	return nil
}

// NewVirtualData implements Virtualizable.
func (o *Object[T]) NewVirtualData() any { return new(T) }

// SetVirtualData implements Virtualizable. It panics if v is not a *T,
// which only happens when a serializer is wired to the wrong object type.
func (o *Object[T]) SetVirtualData(v any) {
	d, ok := v.(*T)
	if !ok {
		panic(fmt.Sprintf("model: object %s: unexpected virtual data %T", o.uid, v))
	}
	o.data.Store(d)
}

// RemoveVirtualData implements Virtualizable.
func (o *Object[T]) RemoveVirtualData() { o.data.Store(nil) }

func (o *Object[T]) String() string { return "object " + o.uid }
