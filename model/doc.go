// Package model defines the core types shared by every virtualizer layer.
//
// # Owner Contexts
//
//   - Context: a logical scope of virtualizable objects (one report fill).
//     Nested contexts created with NewSubContext delegate storage and locking
//     to their outermost (master) context.
//
// # Virtualizable Objects
//
//   - Virtualizable: an in-memory payload with a UID unique within its
//     context, which can hand its payload to a serializer and accept a
//     decoded one back.
//   - Externalizer / Internalizer: optional hooks invoked around page-out
//     and page-in.
//   - Object: a ready-made generic Virtualizable holding a *T payload.
//
//	ctx := model.NewContext()
//	page := model.NewObject(ctx, &Page{Number: 1})
package model
