// Package registry implements the identity, signing and proof rules of
// Skynet registry entries. Network access lives in registry/client.
package registry

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/encoding"
	"github.com/skynetlabs/skynet/keys"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skylink"
)

// HashedDataKeyHexLength is the length of a hashed, hex encoded data key.
const HashedDataKeyHexLength = encoding.HashSize * 2

// HashDataKey hashes a plain data key.
func HashDataKey(dataKey string) []byte {
	return encoding.HashAll(encoding.EncodeUTF8String(dataKey))
}

// DeriveEntryIdentity resolves the data key policy: a plain data key is
// hashed and hex encoded, a pre-hashed one is validated and passed through.
// Every operation that addresses an entry calls this first, so reads and
// writes always agree on the identity.
func DeriveEntryIdentity(publicKey, dataKey string, hashedDataKeyHex bool) (string, error) {
	if _, err := keys.ParsePublicKey(publicKey); err != nil {
		return "", err
	}
	return HashedDataKeyHex(dataKey, hashedDataKeyHex)
}

// HashedDataKeyHex returns the lowercase hashed hex form of dataKey without
// validating any public key.
func HashedDataKeyHex(dataKey string, hashedDataKeyHex bool) (string, error) {
	if !hashedDataKeyHex {
		return hex.EncodeToString(HashDataKey(dataKey)), nil
	}
	if _, err := decodeHashedDataKey(dataKey); err != nil {
		return "", err
	}
	return strings.ToLower(dataKey), nil
}

func decodeHashedDataKey(dataKey string) ([]byte, error) {
	if len(dataKey) != HashedDataKeyHexLength {
		return nil, errcode.ErrorCodeInvalidArgument.WithArgs("dataKey", fmt.Sprintf("expected a hashed data key of %d hex characters, got %d", HashedDataKeyHexLength, len(dataKey)))
	}
	b, err := hex.DecodeString(dataKey)
	if err != nil {
		return nil, errcode.ErrorCodeInvalidArgument.WithArgs("dataKey", "expected a hex-encoded string")
	}
	return b, nil
}

// dataKeyBytes returns the hashed data key bytes of entry.
func dataKeyBytes(entry skynet.RegistryEntry, hashedDataKeyHex bool) ([]byte, error) {
	if hashedDataKeyHex {
		return decodeHashedDataKey(entry.DataKey)
	}
	return HashDataKey(entry.DataKey), nil
}

// EntryID returns the id of the entry owned by publicKey under the hashed
// data key. It is the Merkle root of the entry's v2 skylink.
func EntryID(publicKey []byte, hashedDataKey []byte) []byte {
	return encoding.HashAll(skylink.EncodeEd25519PublicKey(publicKey), hashedDataKey)
}

// EntryLink returns the v2 skylink that resolves through the registry entry
// owned by publicKey under dataKey.
func EntryLink(publicKey, dataKey string, hashedDataKeyHex bool) (skylink.Skylink, error) {
	pk, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		return skylink.Skylink{}, err
	}
	hashed, err := HashedDataKeyHex(dataKey, hashedDataKeyHex)
	if err != nil {
		return skylink.Skylink{}, err
	}
	hashedBytes, _ := hex.DecodeString(hashed)
	return skylink.NewV2(EntryID(pk, hashedBytes))
}

// ValidateEntry checks the parts of an entry that can be checked without a
// key.
func ValidateEntry(entry skynet.RegistryEntry, hashedDataKeyHex bool) error {
	if len(entry.Data) > skynet.MaxRegistryDataSize {
		return errcode.ErrorCodeEntryTooLarge.WithArgs(len(entry.Data), skynet.MaxRegistryDataSize)
	}
	if hashedDataKeyHex {
		if _, err := decodeHashedDataKey(entry.DataKey); err != nil {
			return err
		}
	}
	return nil
}
