package model

// Virtualizable is an in-memory payload that can be evicted to disk.
//
// The UID must be stable for the object's lifetime and unique within the
// store it is paged out to. Stores shared by several contexts (see
// store.SharedFactory) require process-unique UIDs.
type Virtualizable interface {
	// UID returns the object identifier.
	UID() string
	// Context returns the owner context.
	Context() *Context
	// VirtualData returns the resident payload, or nil if it is paged out.
	VirtualData() any
	// NewVirtualData returns an empty payload value to decode into.
	NewVirtualData() any
	// SetVirtualData installs a decoded payload.
	SetVirtualData(v any)
	// RemoveVirtualData drops the resident payload after a page-out.
	RemoveVirtualData()
}

// Externalizer is implemented by objects that need to prepare for page-out.
type Externalizer interface {
	BeforeExternalization()
	AfterExternalization()
}

// Internalizer is implemented by objects that need to react to page-in.
type Internalizer interface {
	AfterInternalization()
}
