package registry

import (
	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/encoding"
	"github.com/skynetlabs/skynet/keys"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"golang.org/x/crypto/ed25519"
)

// CanonicalBytes returns the hash that is signed for entry: the hashed data
// key, the length-prefixed data and the little-endian revision.
func CanonicalBytes(entry skynet.RegistryEntry, hashedDataKeyHex bool) ([]byte, error) {
	if err := ValidateEntry(entry, hashedDataKeyHex); err != nil {
		return nil, err
	}
	dk, err := dataKeyBytes(entry, hashedDataKeyHex)
	if err != nil {
		return nil, err
	}
	return encoding.HashAll(
		dk,
		encoding.EncodePrefixedBytes(entry.Data),
		encoding.EncodeUint64(entry.Revision),
	), nil
}

// Sign signs entry with a hex encoded private key.
func Sign(privateKey string, entry skynet.RegistryEntry, hashedDataKeyHex bool) ([]byte, error) {
	sk, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	msg, err := CanonicalBytes(entry, hashedDataKeyHex)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(sk, msg), nil
}

// Verify reports whether signature is a valid signature of entry by the
// owner of the hex encoded public key. Malformed input is an error; a
// signature that simply does not match is not.
func Verify(publicKey string, entry skynet.RegistryEntry, signature []byte, hashedDataKeyHex bool) (bool, error) {
	pk, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	return verifyKey(pk, entry, signature, hashedDataKeyHex)
}

func verifyKey(pk ed25519.PublicKey, entry skynet.RegistryEntry, signature []byte, hashedDataKeyHex bool) (bool, error) {
	if len(signature) != skynet.SignatureSize {
		return false, errcode.ErrorCodeInvalidArgument.WithArgs("signature", "expected 64 bytes")
	}
	msg, err := CanonicalBytes(entry, hashedDataKeyHex)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pk, msg, signature), nil
}
