// Package encoding implements the fixed-width binary encodings used when
// hashing and signing registry entries.
package encoding

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a hash produced by HashAll.
const HashSize = blake2b.Size256

// EncodeUint64 encodes n as 8 little-endian bytes.
func EncodeUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

// DecodeUint64 decodes 8 little-endian bytes.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("expected 8 bytes, got %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// EncodePrefixedBytes prefixes b with its length as an 8-byte little-endian
// integer.
func EncodePrefixedBytes(b []byte) []byte {
	out := make([]byte, 8+len(b))
	binary.LittleEndian.PutUint64(out, uint64(len(b)))
	copy(out[8:], b)
	return out
}

// DecodePrefixedBytes reverses EncodePrefixedBytes and returns any bytes left
// over after the prefixed value.
func DecodePrefixedBytes(b []byte) (value, rest []byte, err error) {
	if len(b) < 8 {
		return nil, nil, fmt.Errorf("length prefix truncated: have %d bytes", len(b))
	}
	n := binary.LittleEndian.Uint64(b)
	if n > uint64(len(b)-8) {
		return nil, nil, fmt.Errorf("prefixed length %d exceeds remaining %d bytes", n, len(b)-8)
	}
	return b[8 : 8+n], b[8+n:], nil
}

// EncodeUTF8String encodes s as length-prefixed UTF-8 bytes.
func EncodeUTF8String(s string) []byte {
	return EncodePrefixedBytes([]byte(s))
}

// HashAll returns the blake2b-256 hash of the concatenation of args.
func HashAll(args ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	for _, a := range args {
		h.Write(a)
	}
	return h.Sum(nil)
}
