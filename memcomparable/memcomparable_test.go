package memcomparable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	org1 := []byte("helloworld!memcomparable")
	org2 := []byte("foobarbazhogehuga")

	var enc []byte
	enc = Encode(enc, org1)
	enc = Encode(enc, org2)

	dec1, rest := Decode(enc)
	require.Equal(t, org1, dec1)

	dec2, rest2 := Decode(rest)
	require.Equal(t, org2, dec2)
	require.Empty(t, rest2)
}

func TestEncodeDecodeEmpty(t *testing.T) {
	enc := Encode(nil, nil)
	require.Len(t, enc, 9)
	dec, rest := Decode(enc)
	require.Empty(t, dec)
	require.Empty(t, rest)
}

func TestEncodedSize(t *testing.T) {
	cases := map[int]int{0: 9, 1: 9, 7: 9, 8: 9, 9: 18, 16: 18, 17: 27}
	for n, want := range cases {
		require.Equal(t, want, EncodedSize(n), "n=%d", n)
		require.Len(t, Encode(nil, make([]byte, n)), want, "n=%d", n)
	}
}

func TestOrderPreservation(t *testing.T) {
	samples := [][]byte{
		{},
		{0},
		{0, 0},
		{1},
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		[]byte("aardvark"),
		[]byte("aardvark!"),
		[]byte("zebra"),
		bytes.Repeat([]byte{0xFF}, 20),
	}
	for _, a := range samples {
		for _, b := range samples {
			want := bytes.Compare(a, b)
			got := bytes.Compare(Encode(nil, a), Encode(nil, b))
			require.Equal(t, sign(want), sign(got), "a=%v b=%v", a, b)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
