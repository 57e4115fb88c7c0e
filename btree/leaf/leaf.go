// Package leaf decodes and encodes the body of a B+Tree leaf node: a
// sorted sequence of key/value pairs.
//
// On the page, a leaf body is a sequence of `count` records (count comes
// from the shared node header), each `[pair_size:u32 big-endian][pair
// bytes]`, where pair bytes is `[key_len:u32 big-endian][key][value_len:u32
// big-endian][value]`.
package leaf

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/relydb/rellydb/bsearch"
)

// ErrCorruption is returned when a leaf body cannot be parsed: a size
// prefix or a record runs past the end of the body, or a record is too
// short to hold the pair it declares. Bytes left over after the declared
// count of records are not checked.
var ErrCorruption = errors.New("leaf: corrupt node body")

// Pair is one key/value record stored in a leaf.
type Pair struct {
	Key   []byte
	Value []byte
}

func encodePair(p Pair) []byte {
	buf := make([]byte, 0, 8+len(p.Key)+len(p.Value))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.Key)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, p.Key...)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.Value)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, p.Value...)
	return buf
}

func decodePair(data []byte) (Pair, error) {
	if len(data) < 8 {
		return Pair{}, ErrCorruption
	}
	keyLen := binary.BigEndian.Uint32(data[0:4])
	if uint32(len(data)) < 4+keyLen+4 {
		return Pair{}, ErrCorruption
	}
	key := make([]byte, keyLen)
	copy(key, data[4:4+keyLen])
	rest := data[4+keyLen:]
	valueLen := binary.BigEndian.Uint32(rest[0:4])
	if uint32(len(rest)) < 4+valueLen {
		return Pair{}, ErrCorruption
	}
	value := make([]byte, valueLen)
	copy(value, rest[4:4+valueLen])
	return Pair{Key: key, Value: value}, nil
}

// Leaf is the in-memory form of a leaf node's body: pairs sorted strictly
// ascending by key.
type Leaf struct {
	pairs []Pair
}

// New returns an empty leaf.
func New() *Leaf {
	return &Leaf{}
}

// Parse decodes count records from body.
func Parse(body []byte, count int) (*Leaf, error) {
	if count < 0 {
		return nil, ErrCorruption
	}
	pairs := make([]Pair, 0, count)
	offset := 0
	for i := 0; i < count; i++ {
		if offset+4 > len(body) {
			return nil, ErrCorruption
		}
		size := binary.BigEndian.Uint32(body[offset : offset+4])
		offset += 4
		if offset+int(size) > len(body) {
			return nil, ErrCorruption
		}
		pair, err := decodePair(body[offset : offset+int(size)])
		if err != nil {
			return nil, err
		}
		offset += int(size)
		pairs = append(pairs, pair)
	}
	return &Leaf{pairs: pairs}, nil
}

// Serialize writes the leaf's pairs into body in order and returns the
// number of bytes written. It fails if they do not fit.
func (l *Leaf) Serialize(body []byte) (int, error) {
	offset := 0
	for _, p := range l.pairs {
		enc := encodePair(p)
		if offset+4+len(enc) > len(body) {
			return 0, errors.New("leaf: body too small to hold pairs")
		}
		binary.BigEndian.PutUint32(body[offset:offset+4], uint32(len(enc)))
		offset += 4
		copy(body[offset:], enc)
		offset += len(enc)
	}
	return offset, nil
}

// SerializedSize returns the byte length Serialize would write.
func (l *Leaf) SerializedSize() int {
	n := 0
	for _, p := range l.pairs {
		n += 4 + 8 + len(p.Key) + len(p.Value)
	}
	return n
}

// NumPairs returns the number of pairs currently held.
func (l *Leaf) NumPairs() int {
	return len(l.pairs)
}

// PairAt returns the pair at slot i.
func (l *Leaf) PairAt(i int) Pair {
	return l.pairs[i]
}

// SearchSlotID returns the slot holding key, or the insertion point (the
// index of the first pair whose key is >= key) and ok=false if absent.
func (l *Leaf) SearchSlotID(key []byte) (int, bool) {
	idx, err := bsearch.BinarySearchBy(len(l.pairs), func(i int) int {
		return bytes.Compare(l.pairs[i].Key, key)
	})
	return idx, err == nil
}

// Insert adds (key, value) at its sorted position. Callers must have
// already checked for a duplicate key via SearchSlotID.
func (l *Leaf) Insert(key, value []byte) {
	slot, _ := l.SearchSlotID(key)
	l.pairs = append(l.pairs, Pair{})
	copy(l.pairs[slot+1:], l.pairs[slot:])
	l.pairs[slot] = Pair{Key: append([]byte{}, key...), Value: append([]byte{}, value...)}
}

// SplitAt divides the leaf at index mid: the receiver keeps [0,mid) and
// the returned leaf holds [mid,n), whose first key is the promoted
// separator.
func (l *Leaf) SplitAt(mid int) (*Leaf, []byte) {
	right := &Leaf{pairs: append([]Pair(nil), l.pairs[mid:]...)}
	l.pairs = l.pairs[:mid]
	return right, right.pairs[0].Key
}
