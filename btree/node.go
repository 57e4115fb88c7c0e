package btree

import (
	"encoding/binary"
	"errors"

	"github.com/relydb/rellydb/btree/branch"
	"github.com/relydb/rellydb/btree/leaf"
)

// ErrCorruption is returned when a node page fails header validation: an
// out-of-range node type. A body whose count cannot fit the page is
// reported by AsLeaf/AsBranch as leaf.ErrCorruption or
// branch.ErrCorruption.
var ErrCorruption = errors.New("btree: corrupt node page")

// NodeHeaderSize is the size of the common node header: a 4-byte
// big-endian node type followed by a 4-byte big-endian count.
const NodeHeaderSize = 8

const (
	nodeTypeLeaf   uint32 = 0
	nodeTypeBranch uint32 = 1
)

// Node is a thin view over a page's common header (type, count). The
// remaining bytes are interpreted by AsLeaf/AsBranch according to the
// node's type.
type Node struct {
	page []byte
}

// NewNode wraps page (exactly disk.PageSize bytes) as a node view.
func NewNode(page []byte) *Node {
	if len(page) < NodeHeaderSize {
		panic("btree: node page too small")
	}
	return &Node{page: page}
}

func (n *Node) rawType() uint32 {
	return binary.BigEndian.Uint32(n.page[0:4])
}

func (n *Node) count() int {
	return int(binary.BigEndian.Uint32(n.page[4:8]))
}

func (n *Node) setCount(c int) {
	binary.BigEndian.PutUint32(n.page[4:8], uint32(c))
}

// Body returns the page bytes after the common header.
func (n *Node) Body() []byte {
	return n.page[NodeHeaderSize:]
}

// InitializeAsLeaf marks the page as an empty leaf node.
func (n *Node) InitializeAsLeaf() {
	binary.BigEndian.PutUint32(n.page[0:4], nodeTypeLeaf)
	n.setCount(0)
}

// InitializeAsBranch marks the page as a branch node. The caller is
// expected to populate its body immediately afterward.
func (n *Node) InitializeAsBranch() {
	binary.BigEndian.PutUint32(n.page[0:4], nodeTypeBranch)
	n.setCount(0)
}

func (n *Node) IsLeaf() bool {
	return n.rawType() == nodeTypeLeaf
}

func (n *Node) IsBranch() bool {
	return n.rawType() == nodeTypeBranch
}

// Validate checks the node header: a known node type and a non-negative
// count. Whether the count fits the page is checked when the body is
// parsed by AsLeaf/AsBranch.
func (n *Node) Validate() error {
	t := n.rawType()
	if t != nodeTypeLeaf && t != nodeTypeBranch {
		return ErrCorruption
	}
	if n.count() < 0 {
		return ErrCorruption
	}
	return nil
}

// AsLeaf decodes the node's body as a leaf. count comes from the shared
// header so the leaf package itself stays header-agnostic.
func (n *Node) AsLeaf() (*leaf.Leaf, error) {
	return leaf.Parse(n.Body(), n.count())
}

// AsBranch decodes the node's body as a branch.
func (n *Node) AsBranch() (*branch.Branch, error) {
	return branch.Parse(n.Body(), n.count())
}

// PutLeaf serializes l back into the page and updates the shared count
// header. It returns the byte length written, mostly useful for tests.
func (n *Node) PutLeaf(l *leaf.Leaf) (int, error) {
	nbytes, err := l.Serialize(n.Body())
	if err != nil {
		return 0, err
	}
	n.setCount(l.NumPairs())
	return nbytes, nil
}

// PutBranch serializes b back into the page and updates the shared count
// header.
func (n *Node) PutBranch(b *branch.Branch) (int, error) {
	nbytes, err := b.Serialize(n.Body())
	if err != nil {
		return 0, err
	}
	n.setCount(b.NumKeys())
	return nbytes, nil
}
