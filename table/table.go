// Package table builds the primary-key table and secondary unique-index
// abstractions on top of a B+Tree: a record's key columns become the
// B+Tree key, the rest become the value, both tuple-encoded so multi-field
// keys still sort field-by-field.
package table

import (
	"github.com/relydb/rellydb/btree"
	"github.com/relydb/rellydb/buffer"
	"github.com/relydb/rellydb/disk"
	"github.com/relydb/rellydb/tuple"
)

// maxKey upper-bounds any memcomparable-encoded key a scan needs to
// reach: every group's marker byte is at most 9, so a run of 0xff bytes
// diverges above any real encoded key within the first group.
var maxKey = func() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = 0xff
	}
	return b
}()

// SimpleTable stores tuples in one B+Tree keyed on their first
// NumKeyElems fields, with no secondary indices.
type SimpleTable struct {
	MetaPageID  disk.PageID
	NumKeyElems int
}

// Create allocates the table's backing B+Tree.
func (st *SimpleTable) Create(bufmgr *buffer.PoolManager) error {
	bt, err := btree.CreateBTree(bufmgr)
	if err != nil {
		return err
	}
	st.MetaPageID = bt.MetaPageID
	return nil
}

// Insert splits tup at NumKeyElems, tuple-encodes each half, and inserts
// the resulting (key, value) pair. It returns btree.ErrDuplicateKey if
// the primary key is already present.
func (st *SimpleTable) Insert(bufmgr *buffer.PoolManager, tup [][]byte) error {
	bt := btree.NewBTree(st.MetaPageID)
	key := tuple.Encode(nil, tup[:st.NumKeyElems])
	value := tuple.Encode(nil, tup[st.NumKeyElems:])
	return bt.Insert(bufmgr, key, value)
}

// Scan returns every record in the table, ordered ascending by primary
// key, decoded back into its original field list.
func (st *SimpleTable) Scan(bufmgr *buffer.PoolManager) ([][][]byte, error) {
	bt := btree.NewBTree(st.MetaPageID)
	return scanTree(bufmgr, bt)
}

func scanTree(bufmgr *buffer.PoolManager, bt *btree.BTree) ([][][]byte, error) {
	pairs, err := bt.SearchRange(bufmgr, []byte{}, maxKey)
	if err != nil {
		return nil, err
	}
	records := make([][][]byte, 0, len(pairs))
	for _, p := range pairs {
		record := append(tuple.Decode(p.Key), tuple.Decode(p.Value)...)
		records = append(records, record)
	}
	return records, nil
}

// Table stores tuples in a primary B+Tree and keeps a set of secondary
// UniqueIndex trees in sync on insert.
type Table struct {
	MetaPageID    disk.PageID
	NumKeyElems   int
	UniqueIndices []*UniqueIndex
}

// Create allocates the table's primary B+Tree and every registered
// index's B+Tree.
func (t *Table) Create(bufmgr *buffer.PoolManager) error {
	bt, err := btree.CreateBTree(bufmgr)
	if err != nil {
		return err
	}
	t.MetaPageID = bt.MetaPageID
	for _, idx := range t.UniqueIndices {
		if err := idx.Create(bufmgr); err != nil {
			return err
		}
	}
	return nil
}

// Insert adds tup to the primary table, then to every secondary index.
//
// If a secondary key collides, the primary insert has already committed
// by the time the index insert is attempted: the table and that index
// are left inconsistent (the index entry is missing) and the caller must
// decide whether to roll the primary row back itself, since this core
// does not implement multi-tree transactions.
func (t *Table) Insert(bufmgr *buffer.PoolManager, tup [][]byte) error {
	bt := btree.NewBTree(t.MetaPageID)
	key := tuple.Encode(nil, tup[:t.NumKeyElems])
	value := tuple.Encode(nil, tup[t.NumKeyElems:])
	if err := bt.Insert(bufmgr, key, value); err != nil {
		return err
	}
	for _, idx := range t.UniqueIndices {
		if err := idx.Insert(bufmgr, key, tup); err != nil {
			return err
		}
	}
	return nil
}

// Scan returns every record in the table, ordered ascending by primary
// key.
func (t *Table) Scan(bufmgr *buffer.PoolManager) ([][][]byte, error) {
	bt := btree.NewBTree(t.MetaPageID)
	return scanTree(bufmgr, bt)
}

// UniqueIndex maps the memcomparable encoding of selected tuple fields
// (Skey, by index into the tuple) to the encoded primary key. Its
// uniqueness guarantee is inherited entirely from the backing B+Tree's
// duplicate-key rejection.
type UniqueIndex struct {
	MetaPageID disk.PageID
	Skey       []int
}

// Create allocates the index's backing B+Tree.
func (ui *UniqueIndex) Create(bufmgr *buffer.PoolManager) error {
	bt, err := btree.CreateBTree(bufmgr)
	if err != nil {
		return err
	}
	ui.MetaPageID = bt.MetaPageID
	return nil
}

// Insert projects tup's Skey fields into a secondary key and maps it to
// pkey, the already-encoded primary key. It returns btree.ErrDuplicateKey
// if the secondary key is already in use.
func (ui *UniqueIndex) Insert(bufmgr *buffer.PoolManager, pkey []byte, tup [][]byte) error {
	bt := btree.NewBTree(ui.MetaPageID)
	skeyElems := make([][]byte, len(ui.Skey))
	for i, idx := range ui.Skey {
		skeyElems[i] = tup[idx]
	}
	skey := tuple.Encode(nil, skeyElems)
	return bt.Insert(bufmgr, skey, pkey)
}

// Find looks up the primary key mapped to the secondary key built from
// skeyElems, in the same field order the index was created with.
func (ui *UniqueIndex) Find(bufmgr *buffer.PoolManager, skeyElems [][]byte) ([]byte, bool, error) {
	bt := btree.NewBTree(ui.MetaPageID)
	skey := tuple.Encode(nil, skeyElems)
	pair, ok, err := bt.Search(bufmgr, btree.NewSearchModeKey(skey))
	if err != nil || !ok {
		return nil, ok, err
	}
	return pair.Value, true, nil
}
