// Package btree implements an on-disk B+Tree: a root-to-leaf index keyed
// on memcomparable-encoded byte strings, split-on-overflow, with no
// leaf-sibling links. Range scans descend recursively from the root into
// every subtree that may hold keys in range rather than walking a sibling
// chain.
package btree

import (
	"errors"

	"github.com/relydb/rellydb/btree/branch"
	"github.com/relydb/rellydb/buffer"
	"github.com/relydb/rellydb/disk"
)

// ErrDuplicateKey is returned by Insert when the key already exists.
var ErrDuplicateKey = errors.New("btree: duplicate key")

// SearchMode selects where a Search descent should land.
type SearchMode struct {
	IsStart bool
	Key     []byte
}

// NewSearchModeStart positions a search at the first pair of the tree.
func NewSearchModeStart() SearchMode {
	return SearchMode{IsStart: true}
}

// NewSearchModeKey selects an exact-match search for key; Search reports
// not found when key is absent.
func NewSearchModeKey(key []byte) SearchMode {
	return SearchMode{Key: key}
}

// defaultLeafMaxPairs and defaultBranchMaxKeys are used when a tree is
// created or reopened without explicit Option overrides. Tests that need
// a handful of inserts to split pass smaller limits through
// WithLeafMaxPairs and WithBranchMaxKeys.
const (
	defaultLeafMaxPairs  = 128
	defaultBranchMaxKeys = 128
)

// Option configures a BTree's capacity limits at construction time. The
// limits are a property of how a tree is opened, not of its on-disk
// format, so they are passed again on every NewBTree/CreateBTree call
// rather than persisted in the meta page.
type Option func(*BTree)

// WithLeafMaxPairs overrides how many pairs a leaf may hold before it
// must split.
func WithLeafMaxPairs(n int) Option {
	return func(bt *BTree) { bt.leafMaxPairs = n }
}

// WithBranchMaxKeys overrides how many separator keys a branch may hold
// before it must split.
func WithBranchMaxKeys(n int) Option {
	return func(bt *BTree) { bt.branchMaxKeys = n }
}

// BTree is a handle to a tree's meta page; MetaPageID is the only state
// that must be persisted by a caller to reopen the tree later.
type BTree struct {
	MetaPageID disk.PageID

	leafMaxPairs  int
	branchMaxKeys int
}

func newBTree(metaPageID disk.PageID, opts []Option) *BTree {
	bt := &BTree{
		MetaPageID:    metaPageID,
		leafMaxPairs:  defaultLeafMaxPairs,
		branchMaxKeys: defaultBranchMaxKeys,
	}
	for _, opt := range opts {
		opt(bt)
	}
	return bt
}

// CreateBTree allocates a fresh meta page and an empty leaf root, and
// returns a handle bound to the new tree.
func CreateBTree(bufmgr *buffer.PoolManager, opts ...Option) (*BTree, error) {
	metaBuffer, err := bufmgr.CreatePage()
	if err != nil {
		return nil, err
	}
	meta := NewMeta(metaBuffer.Page[:])

	rootBuffer, err := bufmgr.CreatePage()
	if err != nil {
		return nil, err
	}
	rootNode := NewNode(rootBuffer.Page[:])
	rootNode.InitializeAsLeaf()
	rootBuffer.IsDirty = true

	meta.SetRootPageID(rootBuffer.PageID)
	metaBuffer.IsDirty = true
	return newBTree(metaBuffer.PageID, opts), nil
}

// NewBTree wraps an existing tree's meta page.
func NewBTree(metaPageID disk.PageID, opts ...Option) *BTree {
	return newBTree(metaPageID, opts)
}

// FetchRootPage returns the buffer holding the tree's current root node.
func (bt *BTree) FetchRootPage(bufmgr *buffer.PoolManager) (*buffer.Buffer, error) {
	metaBuffer, err := bufmgr.FetchPage(bt.MetaPageID)
	if err != nil {
		return nil, err
	}
	meta := NewMeta(metaBuffer.Page[:])
	return bufmgr.FetchPage(meta.RootPageID())
}

// Pair is one key/value record returned by a search.
type Pair struct {
	Key   []byte
	Value []byte
}

// Search descends from the root to the leaf where searchMode's key would
// live (or the first leaf, for NewSearchModeStart) and returns the pair
// found there, if any.
func (bt *BTree) Search(bufmgr *buffer.PoolManager, searchMode SearchMode) (Pair, bool, error) {
	rootBuffer, err := bt.FetchRootPage(bufmgr)
	if err != nil {
		return Pair{}, false, err
	}
	return bt.searchInternal(bufmgr, rootBuffer, searchMode)
}

func (bt *BTree) searchInternal(bufmgr *buffer.PoolManager, nodeBuffer *buffer.Buffer, searchMode SearchMode) (Pair, bool, error) {
	node := NewNode(nodeBuffer.Page[:])
	if err := node.Validate(); err != nil {
		return Pair{}, false, err
	}

	if node.IsLeaf() {
		leafNode, err := node.AsLeaf()
		if err != nil {
			return Pair{}, false, err
		}
		if searchMode.IsStart {
			if leafNode.NumPairs() == 0 {
				return Pair{}, false, nil
			}
			p := leafNode.PairAt(0)
			return Pair{Key: p.Key, Value: p.Value}, true, nil
		}
		slot, ok := leafNode.SearchSlotID(searchMode.Key)
		if !ok {
			return Pair{}, false, nil
		}
		p := leafNode.PairAt(slot)
		return Pair{Key: p.Key, Value: p.Value}, true, nil
	}

	branchNode, err := node.AsBranch()
	if err != nil {
		return Pair{}, false, err
	}
	var childPageID disk.PageID
	if searchMode.IsStart {
		childPageID = branchNode.ChildAt(0)
	} else {
		childPageID = branchNode.SearchChild(searchMode.Key)
	}
	childBuffer, err := bufmgr.FetchPage(childPageID)
	if err != nil {
		return Pair{}, false, err
	}
	return bt.searchInternal(bufmgr, childBuffer, searchMode)
}

// SearchRange returns every pair whose key lies in [startKey, endKey],
// both inclusive, in ascending key order. It descends into every subtree
// that might hold a key in range rather than following sibling pointers,
// since this tree's leaves carry none.
func (bt *BTree) SearchRange(bufmgr *buffer.PoolManager, startKey, endKey []byte) ([]Pair, error) {
	rootBuffer, err := bt.FetchRootPage(bufmgr)
	if err != nil {
		return nil, err
	}
	var results []Pair
	if err := bt.searchRangeInternal(bufmgr, rootBuffer, startKey, endKey, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (bt *BTree) searchRangeInternal(bufmgr *buffer.PoolManager, nodeBuffer *buffer.Buffer, startKey, endKey []byte, results *[]Pair) error {
	node := NewNode(nodeBuffer.Page[:])
	if err := node.Validate(); err != nil {
		return err
	}

	if node.IsLeaf() {
		leafNode, err := node.AsLeaf()
		if err != nil {
			return err
		}
		for i := 0; i < leafNode.NumPairs(); i++ {
			p := leafNode.PairAt(i)
			if compareBytes(p.Key, startKey) < 0 {
				continue
			}
			if compareBytes(p.Key, endKey) > 0 {
				continue
			}
			*results = append(*results, Pair{Key: p.Key, Value: p.Value})
		}
		return nil
	}

	branchNode, err := node.AsBranch()
	if err != nil {
		return err
	}
	// A child whose separator is > startKey might hold keys in range;
	// the rightmost child (which has no upper-bounding separator) is
	// always a candidate. Leaves visited outside the range are simply
	// filtered there, so over-visiting here costs time, not correctness.
	for i := 0; i < branchNode.NumKeys(); i++ {
		if compareBytes(branchNode.KeyAt(i), startKey) <= 0 {
			continue
		}
		childBuffer, err := bufmgr.FetchPage(branchNode.ChildAt(i))
		if err != nil {
			return err
		}
		if err := bt.searchRangeInternal(bufmgr, childBuffer, startKey, endKey, results); err != nil {
			return err
		}
	}
	rightmost, err := bufmgr.FetchPage(branchNode.ChildAt(branchNode.NumKeys()))
	if err != nil {
		return err
	}
	return bt.searchRangeInternal(bufmgr, rightmost, startKey, endKey, results)
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// split carries what must be propagated to a parent node when one of its
// children overflows and splits: the separator key promoted upward and
// the page id of the newly created right sibling.
type split struct {
	Key         []byte
	ChildPageID disk.PageID
}

// Insert adds (key, value) to the tree. It returns ErrDuplicateKey if
// key is already present.
func (bt *BTree) Insert(bufmgr *buffer.PoolManager, key, value []byte) error {
	metaBuffer, err := bufmgr.FetchPage(bt.MetaPageID)
	if err != nil {
		return err
	}
	meta := NewMeta(metaBuffer.Page[:])
	rootPageID := meta.RootPageID()
	rootBuffer, err := bufmgr.FetchPage(rootPageID)
	if err != nil {
		return err
	}

	sp, err := bt.insertInternal(bufmgr, rootBuffer, key, value)
	if err != nil {
		return err
	}
	if sp == nil {
		return nil
	}

	newRootBuffer, err := bufmgr.CreatePage()
	if err != nil {
		return err
	}
	newRootNode := NewNode(newRootBuffer.Page[:])
	newRootNode.InitializeAsBranch()
	newRootBranch := branch.New(sp.Key, rootPageID, sp.ChildPageID)
	if _, err := newRootNode.PutBranch(newRootBranch); err != nil {
		return err
	}
	newRootBuffer.IsDirty = true

	meta.SetRootPageID(newRootBuffer.PageID)
	metaBuffer.IsDirty = true
	return nil
}

func (bt *BTree) insertInternal(bufmgr *buffer.PoolManager, nodeBuffer *buffer.Buffer, key, value []byte) (*split, error) {
	node := NewNode(nodeBuffer.Page[:])
	if err := node.Validate(); err != nil {
		return nil, err
	}

	if node.IsLeaf() {
		leafNode, err := node.AsLeaf()
		if err != nil {
			return nil, err
		}
		if _, ok := leafNode.SearchSlotID(key); ok {
			return nil, ErrDuplicateKey
		}
		leafNode.Insert(key, value)

		if leafNode.NumPairs() <= bt.leafMaxPairs && leafNode.SerializedSize() <= len(node.Body()) {
			if _, err := node.PutLeaf(leafNode); err != nil {
				return nil, err
			}
			nodeBuffer.IsDirty = true
			return nil, nil
		}

		newLeafBuffer, err := bufmgr.CreatePage()
		if err != nil {
			return nil, err
		}
		mid := leafNode.NumPairs() / 2
		rightLeaf, sepKey := leafNode.SplitAt(mid)

		if _, err := node.PutLeaf(leafNode); err != nil {
			return nil, err
		}
		nodeBuffer.IsDirty = true

		newLeafNode := NewNode(newLeafBuffer.Page[:])
		newLeafNode.InitializeAsLeaf()
		if _, err := newLeafNode.PutLeaf(rightLeaf); err != nil {
			return nil, err
		}
		newLeafBuffer.IsDirty = true

		return &split{Key: sepKey, ChildPageID: newLeafBuffer.PageID}, nil
	}

	branchNode, err := node.AsBranch()
	if err != nil {
		return nil, err
	}
	childIdx := branchNode.SearchChildIndex(key)
	childPageID := branchNode.ChildAt(childIdx)
	childBuffer, err := bufmgr.FetchPage(childPageID)
	if err != nil {
		return nil, err
	}

	childSplit, err := bt.insertInternal(bufmgr, childBuffer, key, value)
	if err != nil {
		return nil, err
	}
	if childSplit == nil {
		return nil, nil
	}

	branchNode.Insert(childIdx, childSplit.Key, childSplit.ChildPageID)

	if branchNode.NumKeys() <= bt.branchMaxKeys && branchNode.SerializedSize() <= len(node.Body()) {
		if _, err := node.PutBranch(branchNode); err != nil {
			return nil, err
		}
		nodeBuffer.IsDirty = true
		return nil, nil
	}

	newBranchBuffer, err := bufmgr.CreatePage()
	if err != nil {
		return nil, err
	}
	mid := branchNode.NumKeys() / 2
	rightBranch, sepKey := branchNode.SplitAt(mid)

	if _, err := node.PutBranch(branchNode); err != nil {
		return nil, err
	}
	nodeBuffer.IsDirty = true

	newBranchNode := NewNode(newBranchBuffer.Page[:])
	newBranchNode.InitializeAsBranch()
	if _, err := newBranchNode.PutBranch(rightBranch); err != nil {
		return nil, err
	}
	newBranchBuffer.IsDirty = true

	return &split{Key: sepKey, ChildPageID: newBranchBuffer.PageID}, nil
}
