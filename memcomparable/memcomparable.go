// Package memcomparable encodes variable-length byte strings into a
// self-delimiting form where unsigned lexicographic comparison of the
// encoding matches unsigned lexicographic comparison of the input. It is
// the building block the tuple codec layers on top of so that B+Tree keys
// sort the way their logical values do.
package memcomparable

// groupSize is the number of content bytes packed per 9-byte group before
// the marker byte.
const groupSize = escapeLength - 1

// escapeLength is the marker value written after a non-final group.
const escapeLength = 9

// EncodedSize returns the number of bytes Encode produces for an input of
// length n. Even the empty string needs one terminating group, so the
// minimum output is 9 bytes.
func EncodedSize(n int) int {
	groups := n / groupSize
	if n%groupSize != 0 || n == 0 {
		groups++
	}
	return groups * escapeLength
}

// Encode appends the memcomparable encoding of src to dst.
//
// src is split into groups of 8 content bytes; each non-final group is
// emitted as its 8 bytes followed by the marker byte 9. The final, possibly
// shorter, group is zero-padded to 8 bytes and followed by a marker byte
// equal to its real content length (0..8), which also signals the decoder
// to stop.
func Encode(dst []byte, src []byte) []byte {
	for {
		n := len(src)
		if n > groupSize {
			n = groupSize
		}
		dst = append(dst, src[:n]...)
		for pad := n; pad < groupSize; pad++ {
			dst = append(dst, 0)
		}
		src = src[n:]
		if len(src) == 0 {
			dst = append(dst, byte(n))
			return dst
		}
		dst = append(dst, escapeLength)
	}
}

// Decode reads one memcomparable-encoded element from the front of src and
// returns it along with whatever bytes of src remain, so a sequence of
// encoded elements can be decoded by repeated calls.
func Decode(src []byte) (elem []byte, rest []byte) {
	for {
		marker := src[groupSize]
		n := marker
		if n > groupSize {
			n = groupSize
		}
		elem = append(elem, src[:n]...)
		src = src[escapeLength:]
		if marker < escapeLength {
			return elem, src
		}
	}
}
