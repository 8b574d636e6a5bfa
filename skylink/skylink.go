// Package skylink implements the content identifier used by Skynet: a 2 byte
// bitfield followed by a 32 byte Merkle root. Version 1 links point directly
// at content; version 2 links point at a registry entry, whose payload is in
// turn a skylink.
package skylink

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/skynetlabs/skynet/internal/encoding"
)

const (
	// RawSize is the size of a decoded skylink.
	RawSize = 34

	// Base64Size is the length of the base64url form.
	Base64Size = 46

	// Base32Size is the length of the base32 form.
	Base32Size = 55

	// URIPrefix is the scheme prefix of formatted skylinks.
	URIPrefix = "sia://"

	merkleRootSize = 32

	// versionMask selects the version bits of the bitfield.
	versionMask = 3

	// MaxV1Size is the largest offset+fetchSize accepted by NewV1.
	MaxV1Size = 1 << 22

	baseAlignment = 4096
)

var (
	// ErrInvalidSkylink is returned when a string is not a skylink.
	ErrInvalidSkylink = errors.New("invalid skylink")

	base32Encoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)
	base64Encoding = base64.RawURLEncoding

	// ed25519Specifier is the zero padded algorithm name used when a public
	// key is hashed into a registry entry id.
	ed25519Specifier = specifier("ed25519")
)

// Skylink is a decoded content identifier.
type Skylink struct {
	bitfield   uint16
	merkleRoot [merkleRootSize]byte
}

// New returns a skylink from its raw parts. The bitfield is validated.
func New(bitfield uint16, merkleRoot []byte) (Skylink, error) {
	if len(merkleRoot) != merkleRootSize {
		return Skylink{}, fmt.Errorf("%w: merkle root must be %d bytes, got %d", ErrInvalidSkylink, merkleRootSize, len(merkleRoot))
	}
	var sl Skylink
	sl.bitfield = bitfield
	copy(sl.merkleRoot[:], merkleRoot)
	if err := sl.validate(); err != nil {
		return Skylink{}, err
	}
	return sl, nil
}

// NewV1 returns a version 1 skylink addressing fetchSize bytes at offset
// within the content identified by merkleRoot.
func NewV1(merkleRoot []byte, offset, fetchSize uint64) (Skylink, error) {
	bitfield, err := encodeV1Bitfield(offset, fetchSize)
	if err != nil {
		return Skylink{}, err
	}
	return New(bitfield, merkleRoot)
}

// NewV2 returns the version 2 skylink of the registry entry with the given
// entry id.
func NewV2(entryID []byte) (Skylink, error) {
	return New(1, entryID)
}

// EncodeEd25519PublicKey encodes a public key the way it is hashed into a
// registry entry id: algorithm specifier, length prefix, key.
func EncodeEd25519PublicKey(publicKey []byte) []byte {
	var buf bytes.Buffer
	buf.Write(ed25519Specifier[:])
	buf.Write(encoding.EncodePrefixedBytes(publicKey))
	return buf.Bytes()
}

// Parse decodes a skylink from its base64url or base32 form. A leading
// sia:// prefix and any path or query suffix are ignored.
func Parse(s string) (Skylink, error) {
	s = strings.TrimPrefix(s, URIPrefix)
	s = strings.TrimPrefix(s, "sia:")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}

	var (
		raw []byte
		err error
	)
	switch len(s) {
	case Base64Size:
		raw, err = base64Encoding.DecodeString(s)
	case Base32Size:
		raw, err = base32Encoding.DecodeString(strings.ToLower(s))
	default:
		return Skylink{}, fmt.Errorf("%w: %q has length %d, expected %d or %d", ErrInvalidSkylink, s, len(s), Base64Size, Base32Size)
	}
	if err != nil {
		return Skylink{}, fmt.Errorf("%w: %v", ErrInvalidSkylink, err)
	}
	return FromBytes(raw)
}

// FromBytes decodes a raw 34 byte skylink.
func FromBytes(raw []byte) (Skylink, error) {
	if len(raw) != RawSize {
		return Skylink{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSkylink, RawSize, len(raw))
	}
	return New(binary.LittleEndian.Uint16(raw), raw[2:])
}

// Bytes returns the raw 34 byte form.
func (sl Skylink) Bytes() []byte {
	raw := make([]byte, RawSize)
	binary.LittleEndian.PutUint16(raw, sl.bitfield)
	copy(raw[2:], sl.merkleRoot[:])
	return raw
}

// String returns the base64url form without prefix.
func (sl Skylink) String() string {
	return base64Encoding.EncodeToString(sl.Bytes())
}

// Base32 returns the base32 form, suitable for subdomains.
func (sl Skylink) Base32() string {
	return base32Encoding.EncodeToString(sl.Bytes())
}

// URI returns the base64url form with the sia:// prefix.
func (sl Skylink) URI() string {
	return URIPrefix + sl.String()
}

// Bitfield returns the raw bitfield.
func (sl Skylink) Bitfield() uint16 {
	return sl.bitfield
}

// MerkleRoot returns the Merkle root, or the entry id for v2 links.
func (sl Skylink) MerkleRoot() []byte {
	return append([]byte(nil), sl.merkleRoot[:]...)
}

// Version returns 1 or 2.
func (sl Skylink) Version() int {
	return int(sl.bitfield&versionMask) + 1
}

// IsV1 reports whether sl points directly at content.
func (sl Skylink) IsV1() bool { return sl.Version() == 1 }

// IsV2 reports whether sl points at a registry entry.
func (sl Skylink) IsV2() bool { return sl.Version() == 2 }

// OffsetAndFetchSize decodes the content range of a v1 link.
func (sl Skylink) OffsetAndFetchSize() (offset, fetchSize uint64, err error) {
	if !sl.IsV1() {
		return 0, 0, fmt.Errorf("%w: offset and fetch size are only defined for version 1", ErrInvalidSkylink)
	}
	return decodeV1Bitfield(sl.bitfield)
}

func (sl Skylink) validate() error {
	switch sl.Version() {
	case 1:
		_, _, err := decodeV1Bitfield(sl.bitfield)
		return err
	case 2:
		if sl.bitfield != 1 {
			return fmt.Errorf("%w: version 2 bitfield must be 1, got %d", ErrInvalidSkylink, sl.bitfield)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSkylink, sl.Version())
	}
}

// The v1 bitfield, after the two version bits, holds a run of ones (the
// mode), a zero, three fetch size bits and the offset bits. Each mode doubles
// the alignment of both offset and fetch size and starts where the previous
// mode ends.
func decodeV1Bitfield(bitfield uint16) (offset, fetchSize uint64, err error) {
	bitfield >>= 2

	var mode uint
	for bitfield&1 == 1 {
		mode++
		bitfield >>= 1
	}
	if mode > 7 {
		return 0, 0, fmt.Errorf("%w: bitfield has invalid mode", ErrInvalidSkylink)
	}
	bitfield >>= 1

	align := uint64(baseAlignment) << mode
	fetchSize = modeBase(mode) + (uint64(bitfield&7)+1)*align
	bitfield >>= 3
	offset = uint64(bitfield) * align
	return offset, fetchSize, nil
}

func encodeV1Bitfield(offset, fetchSize uint64) (uint16, error) {
	if fetchSize == 0 {
		fetchSize = 1
	}
	if offset+fetchSize > MaxV1Size {
		return 0, fmt.Errorf("%w: offset %d and fetch size %d exceed %d", ErrInvalidSkylink, offset, fetchSize, uint64(MaxV1Size))
	}

	for mode := uint(0); mode <= 7; mode++ {
		align := uint64(baseAlignment) << mode
		base := modeBase(mode)
		if fetchSize > base+8*align {
			continue
		}
		if offset%align != 0 {
			return 0, fmt.Errorf("%w: offset %d is not aligned to %d", ErrInvalidSkylink, offset, align)
		}
		fetchBits := (fetchSize - base + align - 1) / align
		if fetchBits > 0 {
			fetchBits--
		}

		var bitfield uint64 = offset / align
		bitfield = bitfield<<3 | fetchBits
		bitfield <<= 1 // the zero terminating the mode
		for i := uint(0); i < mode; i++ {
			bitfield = bitfield<<1 | 1
		}
		bitfield <<= 2 // version 1
		if bitfield > 0xffff {
			return 0, fmt.Errorf("%w: offset %d does not fit in the bitfield", ErrInvalidSkylink, offset)
		}
		return uint16(bitfield), nil
	}
	return 0, fmt.Errorf("%w: fetch size %d too large", ErrInvalidSkylink, fetchSize)
}

// modeBase is the largest fetch size expressible by all lower modes.
func modeBase(mode uint) uint64 {
	return 8 * baseAlignment * (uint64(1)<<mode - 1)
}

func specifier(name string) [16]byte {
	var s [16]byte
	copy(s[:], name)
	return s
}
