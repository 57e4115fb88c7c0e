// Package branch decodes and encodes the body of a B+Tree branch
// (internal) node: separator keys and child page ids.
//
// On the page, a branch body holds `count` keys followed by `count+1`
// child page ids: each key is `[key_len:u32 big-endian][key bytes]`, and
// each child id is the 8-byte little-endian form produced by
// disk.PageID.ToBytes. children[i] holds every key strictly less than
// keys[i]; children[count] holds everything >= keys[count-1].
package branch

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/relydb/rellydb/bsearch"
	"github.com/relydb/rellydb/disk"
)

// ErrCorruption is returned when a branch body cannot be parsed, or when
// its decoded child count disagrees with key count + 1.
var ErrCorruption = errors.New("branch: corrupt node body")

// Branch is the in-memory form of a branch node's body.
type Branch struct {
	keys     [][]byte
	children []disk.PageID
}

// New builds a branch with a single separator key between leftChild and
// rightChild, the shape produced when a leaf or branch first splits and
// promotes a new root.
func New(key []byte, leftChild, rightChild disk.PageID) *Branch {
	return &Branch{
		keys:     [][]byte{append([]byte(nil), key...)},
		children: []disk.PageID{leftChild, rightChild},
	}
}

// Parse decodes count keys and count+1 children from body.
func Parse(body []byte, count int) (*Branch, error) {
	if count < 0 {
		return nil, ErrCorruption
	}
	keys := make([][]byte, 0, count)
	offset := 0
	for i := 0; i < count; i++ {
		if offset+4 > len(body) {
			return nil, ErrCorruption
		}
		klen := binary.BigEndian.Uint32(body[offset : offset+4])
		offset += 4
		if offset+int(klen) > len(body) {
			return nil, ErrCorruption
		}
		key := make([]byte, klen)
		copy(key, body[offset:offset+int(klen)])
		offset += int(klen)
		keys = append(keys, key)
	}

	numChildren := count + 1
	children := make([]disk.PageID, 0, numChildren)
	for i := 0; i < numChildren; i++ {
		if offset+8 > len(body) {
			return nil, ErrCorruption
		}
		children = append(children, disk.PageIDFromBytes(body[offset:offset+8]))
		offset += 8
	}
	if len(children) != len(keys)+1 {
		return nil, ErrCorruption
	}
	return &Branch{keys: keys, children: children}, nil
}

// Serialize writes the branch's keys and children into body and returns
// the number of bytes written.
func (b *Branch) Serialize(body []byte) (int, error) {
	offset := 0
	for _, k := range b.keys {
		if offset+4+len(k) > len(body) {
			return 0, errors.New("branch: body too small to hold keys")
		}
		binary.BigEndian.PutUint32(body[offset:offset+4], uint32(len(k)))
		offset += 4
		copy(body[offset:], k)
		offset += len(k)
	}
	for _, c := range b.children {
		if offset+8 > len(body) {
			return 0, errors.New("branch: body too small to hold children")
		}
		copy(body[offset:offset+8], c.ToBytes())
		offset += 8
	}
	return offset, nil
}

// SerializedSize returns the byte length Serialize would write.
func (b *Branch) SerializedSize() int {
	n := 0
	for _, k := range b.keys {
		n += 4 + len(k)
	}
	return n + 8*len(b.children)
}

// NumKeys returns the number of separator keys.
func (b *Branch) NumKeys() int {
	return len(b.keys)
}

// KeyAt returns the separator key at index i.
func (b *Branch) KeyAt(i int) []byte {
	return b.keys[i]
}

// ChildAt returns the child page id at index i (0..NumKeys()).
func (b *Branch) ChildAt(i int) disk.PageID {
	return b.children[i]
}

// SearchChildIndex returns the index of the first child whose subtree may
// contain key: the first i with key < keys[i], or NumKeys() (the
// rightmost child) if key is >= every separator.
func (b *Branch) SearchChildIndex(key []byte) int {
	idx, err := bsearch.BinarySearchBy(len(b.keys), func(i int) int {
		return bytes.Compare(b.keys[i], key)
	})
	if err == nil {
		// key equals keys[idx] exactly: that separator's left child
		// holds everything strictly less, so the match itself goes right.
		idx++
	}
	return idx
}

// SearchChild is ChildAt(SearchChildIndex(key)).
func (b *Branch) SearchChild(key []byte) disk.PageID {
	return b.ChildAt(b.SearchChildIndex(key))
}

// Insert adds a new separator key at position idx and a new child
// immediately after the child currently at idx, the shape produced when
// the child at idx splits and promotes key as the new right sibling's
// separator.
func (b *Branch) Insert(idx int, key []byte, newChild disk.PageID) {
	key = append([]byte(nil), key...)

	b.keys = append(b.keys, nil)
	copy(b.keys[idx+1:], b.keys[idx:])
	b.keys[idx] = key

	b.children = append(b.children, disk.InvalidPageID)
	copy(b.children[idx+2:], b.children[idx+1:])
	b.children[idx+1] = newChild
}

// SplitAt divides the branch at key index mid. The receiver keeps keys
// [0,mid) and children [0,mid+1); the returned branch keeps keys
// [mid+1,n) and children [mid+1,n+1). keys[mid] is the promoted separator
// and is not kept by either side.
func (b *Branch) SplitAt(mid int) (*Branch, []byte) {
	promoted := b.keys[mid]
	right := &Branch{
		keys:     append([][]byte(nil), b.keys[mid+1:]...),
		children: append([]disk.PageID(nil), b.children[mid+1:]...),
	}
	b.keys = b.keys[:mid]
	b.children = b.children[:mid+1]
	return right, promoted
}
