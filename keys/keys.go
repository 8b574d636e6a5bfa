// Package keys derives and validates the Ed25519 key pairs that own registry
// entries. Keys are exchanged as lowercase hex strings.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/skynetlabs/skynet/registry/api/errcode"
	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// PublicKeyHexLength is the length of a hex encoded public key.
	PublicKeyHexLength = ed25519.PublicKeySize * 2

	// PrivateKeyHexLength is the length of a hex encoded private key.
	PrivateKeyHexLength = ed25519.PrivateKeySize * 2

	// DefaultSeedLength is the number of random bytes in a generated seed.
	DefaultSeedLength = 32

	seedIterations = 1000
)

// KeyPair is a hex encoded Ed25519 key pair.
type KeyPair struct {
	PublicKey  string `json:"publicKey" yaml:"publickey"`
	PrivateKey string `json:"privateKey" yaml:"privatekey"`
}

// KeyPairAndSeed is a key pair together with the seed it was derived from.
type KeyPairAndSeed struct {
	KeyPair `yaml:",inline"`
	Seed    string `json:"seed" yaml:"seed"`
}

// GenKeyPairFromSeed deterministically derives a key pair from a seed
// string.
func GenKeyPairFromSeed(seed string) KeyPair {
	derived := pbkdf2.Key([]byte(seed), nil, seedIterations, ed25519.SeedSize, sha256.New)
	sk := ed25519.NewKeyFromSeed(derived)
	return KeyPair{
		PublicKey:  hex.EncodeToString(sk.Public().(ed25519.PublicKey)),
		PrivateKey: hex.EncodeToString(sk),
	}
}

// GenRandomSeed returns a hex encoded random seed of length bytes.
func GenRandomSeed(length int) (string, error) {
	if length <= 0 {
		return "", errcode.ErrorCodeInvalidArgument.WithArgs("length", "expected a positive number of bytes")
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenKeyPairAndSeed generates a random seed and the key pair derived from
// it.
func GenKeyPairAndSeed() (KeyPairAndSeed, error) {
	seed, err := GenRandomSeed(DefaultSeedLength)
	if err != nil {
		return KeyPairAndSeed{}, err
	}
	return KeyPairAndSeed{KeyPair: GenKeyPairFromSeed(seed), Seed: seed}, nil
}

// DeriveChildSeed derives a seed for a sub-application from a master seed.
// The same inputs always give the same child.
func DeriveChildSeed(masterSeed, seed string) string {
	master := sha512.Sum512([]byte(masterSeed))
	child := sha512.Sum512([]byte(seed))
	h := sha256.New()
	h.Write(master[:])
	h.Write(child[:])
	return hex.EncodeToString(h.Sum(nil))
}

// ParsePublicKey decodes and validates a hex encoded public key.
func ParsePublicKey(publicKey string) (ed25519.PublicKey, error) {
	b, err := decodeHex("publicKey", publicKey, PublicKeyHexLength)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(b), nil
}

// ParsePrivateKey decodes and validates a hex encoded private key.
func ParsePrivateKey(privateKey string) (ed25519.PrivateKey, error) {
	b, err := decodeHex("privateKey", privateKey, PrivateKeyHexLength)
	if err != nil {
		return nil, err
	}
	return ed25519.PrivateKey(b), nil
}

// PublicKeyFromPrivateKey returns the hex public key belonging to a hex
// private key.
func PublicKeyFromPrivateKey(privateKey string) (string, error) {
	sk, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sk.Public().(ed25519.PublicKey)), nil
}

func decodeHex(field, s string, length int) ([]byte, error) {
	if len(s) != length {
		return nil, errcode.ErrorCodeInvalidArgument.WithArgs(field, fmt.Sprintf("expected %d hex characters, got %d", length, len(s)))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errcode.ErrorCodeInvalidArgument.WithArgs(field, "expected a hex-encoded string")
	}
	return b, nil
}
