package tuple

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	elems := [][]byte{[]byte("z"), []byte("Alice"), []byte("Smith")}
	enc := Encode(nil, elems)
	require.Equal(t, elems, Decode(enc))
}

func TestDecodeEmpty(t *testing.T) {
	require.Empty(t, Decode(nil))
}

func TestOrderPreservationElementWise(t *testing.T) {
	a := Encode(nil, [][]byte{[]byte("x")})
	b := Encode(nil, [][]byte{[]byte("y")})
	require.True(t, string(a) < string(b))
}

func TestPretty(t *testing.T) {
	out := Pretty([][]byte{[]byte("hello"), {0xff, 0x00}})
	require.Contains(t, out, `"hello"`)
	require.Contains(t, out, "ff00")
}
