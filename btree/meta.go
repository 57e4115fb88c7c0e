package btree

import (
	"github.com/relydb/rellydb/disk"
)

// MetaHeaderSize is the size of the meta page header: 8 bytes holding the
// current root page id as little-endian, matching disk.PageID.ToBytes.
const MetaHeaderSize = 8

// Meta is a view over a B+Tree's meta page (page 0 of the tree). The
// remaining bytes of the page are unused.
type Meta struct {
	page []byte
}

// NewMeta wraps page as a meta page view.
func NewMeta(page []byte) *Meta {
	if len(page) < MetaHeaderSize {
		panic("btree: meta page too small")
	}
	return &Meta{page: page}
}

// RootPageID returns the tree's current root page id.
func (m *Meta) RootPageID() disk.PageID {
	return disk.PageIDFromBytes(m.page[:8])
}

// SetRootPageID updates the tree's root page id, e.g. after the root
// splits and promotes a new branch above it.
func (m *Meta) SetRootPageID(pageID disk.PageID) {
	copy(m.page[:8], pageID.ToBytes())
}
