package btree

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relydb/rellydb/buffer"
	"github.com/relydb/rellydb/disk"
)

func newTestTree(t *testing.T, poolSize int, opts ...Option) (*BTree, *buffer.PoolManager) {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_btree_*.db")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	dm, err := disk.NewDiskManager(tmpfile)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewBufferPool(poolSize)
	bufmgr := buffer.NewBufferPoolManager(dm, pool)

	bt, err := CreateBTree(bufmgr, opts...)
	require.NoError(t, err)
	return bt, bufmgr
}

func u64Key(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}

// TestBTreeSmall is spec scenario S3.
func TestBTreeSmall(t *testing.T) {
	bt, bufmgr := newTestTree(t, 16)

	require.NoError(t, bt.Insert(bufmgr, u64Key(6), []byte("world")))
	require.NoError(t, bt.Insert(bufmgr, u64Key(3), []byte("hello")))
	require.NoError(t, bt.Insert(bufmgr, u64Key(8), []byte("!")))
	require.NoError(t, bt.Insert(bufmgr, u64Key(4), []byte(",")))

	pair, ok, err := bt.Search(bufmgr, NewSearchModeKey(u64Key(3)))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), pair.Value)

	pair, ok, err = bt.Search(bufmgr, NewSearchModeKey(u64Key(8)))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("!"), pair.Value)
}

// TestBTreeSplitting is spec scenario S4.
func TestBTreeSplitting(t *testing.T) {
	bt, bufmgr := newTestTree(t, 32, WithLeafMaxPairs(2), WithBranchMaxKeys(2))

	inserts := []struct {
		key   uint64
		value string
	}{
		{1, "one"},
		{4, "two"},
		{6, "three"},
		{3, "four"},
		{7, "five"},
		{2, "six"},
		{5, "seven"},
	}
	for _, ins := range inserts {
		require.NoError(t, bt.Insert(bufmgr, u64Key(ins.key), []byte(ins.value)))
	}

	for _, ins := range inserts {
		pair, ok, err := bt.Search(bufmgr, NewSearchModeKey(u64Key(ins.key)))
		require.NoError(t, err)
		require.True(t, ok, "key %d not found", ins.key)
		require.Equal(t, []byte(ins.value), pair.Value)
	}

	rootBuffer, err := bt.FetchRootPage(bufmgr)
	require.NoError(t, err)
	rootNode := NewNode(rootBuffer.Page[:])
	require.True(t, rootNode.IsBranch(), "tree of 7 pairs with max 2 per leaf must have split the root")

	pairs, err := bt.SearchRange(bufmgr, u64Key(2), u64Key(5))
	require.NoError(t, err)
	require.Len(t, pairs, 4)
	for i, want := range []uint64{2, 3, 4, 5} {
		require.Equal(t, u64Key(want), pairs[i].Key)
	}
}

// TestBTreeDuplicateKey is spec scenario S5.
func TestBTreeDuplicateKey(t *testing.T) {
	bt, bufmgr := newTestTree(t, 16)

	require.NoError(t, bt.Insert(bufmgr, u64Key(1), []byte("a")))
	err := bt.Insert(bufmgr, u64Key(1), []byte("b"))
	require.ErrorIs(t, err, ErrDuplicateKey)

	pair, ok, err := bt.Search(bufmgr, NewSearchModeKey(u64Key(1)))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a"), pair.Value)
}

func TestBTreeSearchModeStart(t *testing.T) {
	bt, bufmgr := newTestTree(t, 16)

	require.NoError(t, bt.Insert(bufmgr, u64Key(5), []byte("five")))
	require.NoError(t, bt.Insert(bufmgr, u64Key(1), []byte("one")))
	require.NoError(t, bt.Insert(bufmgr, u64Key(3), []byte("three")))

	pair, ok, err := bt.Search(bufmgr, NewSearchModeStart())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, u64Key(1), pair.Key)
}

func TestBTreeSearchMissingKey(t *testing.T) {
	bt, bufmgr := newTestTree(t, 16)

	require.NoError(t, bt.Insert(bufmgr, u64Key(1), []byte("one")))

	_, ok, err := bt.Search(bufmgr, NewSearchModeKey(u64Key(99)))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBTreeLargeKeysAndValues(t *testing.T) {
	bt, bufmgr := newTestTree(t, 32)

	const n = 8
	datas := make([][]byte, n)
	for i := range datas {
		datas[i] = make([]byte, 1000)
		for j := range datas[i] {
			datas[i][j] = byte(0xC0 + i)
		}
	}

	for _, data := range datas {
		require.NoError(t, bt.Insert(bufmgr, data, data))
	}

	for _, data := range datas {
		pair, ok, err := bt.Search(bufmgr, NewSearchModeKey(data))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, data, pair.Key)
		require.Equal(t, data, pair.Value)
	}
}
