package encoding

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestEncodeUint64(t *testing.T) {
	for _, tc := range []struct {
		n        uint64
		expected string
	}{
		{0, "0000000000000000"},
		{1, "0100000000000000"},
		{255, "ff00000000000000"},
		{256, "0001000000000000"},
		{^uint64(0), "ffffffffffffffff"},
	} {
		got := hex.EncodeToString(EncodeUint64(tc.n))
		if got != tc.expected {
			t.Errorf("EncodeUint64(%d) = %s, expected %s", tc.n, got, tc.expected)
		}
		n, err := DecodeUint64(EncodeUint64(tc.n))
		if err != nil {
			t.Fatalf("unexpected error decoding %d: %v", tc.n, err)
		}
		if n != tc.n {
			t.Errorf("DecodeUint64 returned %d, expected %d", n, tc.n)
		}
	}

	if _, err := DecodeUint64([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding short input")
	}
}

func TestPrefixedBytes(t *testing.T) {
	encoded := EncodePrefixedBytes([]byte("abc"))
	if !bytes.Equal(encoded, []byte{3, 0, 0, 0, 0, 0, 0, 0, 'a', 'b', 'c'}) {
		t.Fatalf("unexpected encoding %v", encoded)
	}

	value, rest, err := DecodePrefixedBytes(append(encoded, 'x'))
	if err != nil {
		t.Fatal(err)
	}
	if string(value) != "abc" || string(rest) != "x" {
		t.Fatalf("unexpected decode: value=%q rest=%q", value, rest)
	}

	if _, _, err := DecodePrefixedBytes([]byte{9, 0, 0, 0, 0, 0, 0, 0, 'a'}); err == nil {
		t.Fatal("expected error for overlong prefix")
	}
	if _, _, err := DecodePrefixedBytes([]byte{1}); err == nil {
		t.Fatal("expected error for truncated prefix")
	}
}

func TestEncodeUTF8String(t *testing.T) {
	if !bytes.Equal(EncodeUTF8String(""), make([]byte, 8)) {
		t.Fatal("empty string should encode to a zero length prefix")
	}
	if !bytes.Equal(EncodeUTF8String("é"), []byte{2, 0, 0, 0, 0, 0, 0, 0, 0xc3, 0xa9}) {
		t.Fatal("multi-byte characters should be counted in bytes")
	}
}

func TestHashAll(t *testing.T) {
	h := HashAll([]byte("ab"), []byte("c"))
	if len(h) != HashSize {
		t.Fatalf("unexpected hash size %d", len(h))
	}
	if !bytes.Equal(h, HashAll([]byte("abc"))) {
		t.Fatal("HashAll should hash the concatenation of its arguments")
	}
	if bytes.Equal(h, HashAll([]byte("abd"))) {
		t.Fatal("different input hashed to the same value")
	}
}
