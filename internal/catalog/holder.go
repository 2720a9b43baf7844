package catalog

import "sync/atomic"

// Holder is a swap cell for the current catalog. Readers take a snapshot with Load and keep
// using it for the whole request; a reload stores a new catalog without touching the old one.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder returns a holder containing c (which may be nil).
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	if c != nil {
		h.current.Store(c)
	}
	return h
}

// Load returns the current catalog, or nil if none has been stored.
func (h *Holder) Load() *Catalog {
	return h.current.Load()
}

// Store replaces the current catalog.
func (h *Holder) Store(c *Catalog) {
	h.current.Store(c)
}
