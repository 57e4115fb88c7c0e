// Package tuple encodes a record — a slice of byte-string elements — as
// the concatenation of their memcomparable encodings, so tuple comparison
// by encoded bytes matches element-wise logical comparison.
package tuple

import (
	"fmt"
	"unicode/utf8"

	"github.com/relydb/rellydb/memcomparable"
)

// Encode appends the memcomparable encoding of each element in elems to
// dst, in order.
func Encode(dst []byte, elems [][]byte) []byte {
	for _, elem := range elems {
		dst = memcomparable.Encode(dst, elem)
	}
	return dst
}

// Decode splits src back into the element slices Encode concatenated.
func Decode(src []byte) [][]byte {
	var elems [][]byte
	for len(src) > 0 {
		var elem []byte
		elem, src = memcomparable.Decode(src)
		elems = append(elems, elem)
	}
	return elems
}

// Pretty formats a tuple for human-readable diagnostics: valid UTF-8
// elements are shown quoted, everything else as hex.
func Pretty(elems [][]byte) string {
	out := "Tuple("
	for i, elem := range elems {
		if i > 0 {
			out += ", "
		}
		if utf8.Valid(elem) {
			out += fmt.Sprintf("%q", string(elem))
		} else {
			out += fmt.Sprintf("%x", elem)
		}
	}
	return out + ")"
}
