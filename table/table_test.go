package table

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relydb/rellydb/buffer"
	"github.com/relydb/rellydb/disk"
	"github.com/relydb/rellydb/tuple"
)

func newTestBufmgr(t *testing.T, poolSize int) *buffer.PoolManager {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_table_*.db")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	dm, err := disk.NewDiskManager(tmpfile)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	pool := buffer.NewBufferPool(poolSize)
	return buffer.NewBufferPoolManager(dm, pool)
}

// TestSimpleTableScan is spec scenario S6.
func TestSimpleTableScan(t *testing.T) {
	bufmgr := newTestBufmgr(t, 16)

	st := &SimpleTable{NumKeyElems: 1}
	require.NoError(t, st.Create(bufmgr))

	records := [][][]byte{
		{[]byte("z"), []byte("Alice"), []byte("Smith")},
		{[]byte("x"), []byte("Bob"), []byte("Johnson")},
		{[]byte("y"), []byte("Charlie"), []byte("Williams")},
	}
	for _, r := range records {
		require.NoError(t, st.Insert(bufmgr, r))
	}

	got, err := st.Scan(bufmgr)
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.Equal(t, [][]byte{[]byte("x"), []byte("Bob"), []byte("Johnson")}, got[0])
	require.Equal(t, [][]byte{[]byte("y"), []byte("Charlie"), []byte("Williams")}, got[1])
	require.Equal(t, [][]byte{[]byte("z"), []byte("Alice"), []byte("Smith")}, got[2])
}

func TestSimpleTableDuplicateKey(t *testing.T) {
	bufmgr := newTestBufmgr(t, 16)

	st := &SimpleTable{NumKeyElems: 1}
	require.NoError(t, st.Create(bufmgr))

	require.NoError(t, st.Insert(bufmgr, [][]byte{[]byte("a"), []byte("1")}))
	err := st.Insert(bufmgr, [][]byte{[]byte("a"), []byte("2")})
	require.Error(t, err)
}

func TestTableWithUniqueIndex(t *testing.T) {
	bufmgr := newTestBufmgr(t, 16)

	tbl := &Table{
		NumKeyElems: 1,
		UniqueIndices: []*UniqueIndex{
			{Skey: []int{2}},
		},
	}
	require.NoError(t, tbl.Create(bufmgr))

	require.NoError(t, tbl.Insert(bufmgr, [][]byte{[]byte("1"), []byte("Alice"), []byte("Smith")}))
	require.NoError(t, tbl.Insert(bufmgr, [][]byte{[]byte("2"), []byte("Bob"), []byte("Jones")}))

	pkey, ok, err := tbl.UniqueIndices[0].Find(bufmgr, [][]byte{[]byte("Jones")})
	require.NoError(t, err)
	require.True(t, ok)
	decodedKey := tuple.Decode(pkey)
	require.Equal(t, [][]byte{[]byte("2")}, decodedKey)

	records, err := tbl.Scan(bufmgr)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, [][]byte{[]byte("1"), []byte("Alice"), []byte("Smith")}, records[0])
	require.Equal(t, [][]byte{[]byte("2"), []byte("Bob"), []byte("Jones")}, records[1])
}

func TestUniqueIndexDuplicateSecondaryKey(t *testing.T) {
	bufmgr := newTestBufmgr(t, 16)

	tbl := &Table{
		NumKeyElems: 1,
		UniqueIndices: []*UniqueIndex{
			{Skey: []int{2}},
		},
	}
	require.NoError(t, tbl.Create(bufmgr))

	require.NoError(t, tbl.Insert(bufmgr, [][]byte{[]byte("1"), []byte("Alice"), []byte("Smith")}))
	err := tbl.Insert(bufmgr, [][]byte{[]byte("2"), []byte("Bob"), []byte("Smith")})
	require.Error(t, err)
}
