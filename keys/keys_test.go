package keys

import (
	"errors"
	"strings"
	"testing"

	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/stretchr/testify/require"
)

func TestGenKeyPairFromSeed(t *testing.T) {
	a := GenKeyPairFromSeed("test seed")
	b := GenKeyPairFromSeed("test seed")
	require.Equal(t, a, b, "derivation must be deterministic")
	require.Len(t, a.PublicKey, PublicKeyHexLength)
	require.Len(t, a.PrivateKey, PrivateKeyHexLength)

	// The private key embeds the public key in its second half.
	require.True(t, strings.HasSuffix(a.PrivateKey, a.PublicKey))

	c := GenKeyPairFromSeed("other seed")
	require.NotEqual(t, a.PublicKey, c.PublicKey)
}

func TestGenKeyPairAndSeed(t *testing.T) {
	kp, err := GenKeyPairAndSeed()
	require.NoError(t, err)
	require.Len(t, kp.Seed, DefaultSeedLength*2)
	require.Equal(t, GenKeyPairFromSeed(kp.Seed), kp.KeyPair)

	_, err = GenRandomSeed(0)
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
}

func TestDeriveChildSeed(t *testing.T) {
	child := DeriveChildSeed("master", "app")
	require.Equal(t, child, DeriveChildSeed("master", "app"))
	require.NotEqual(t, child, DeriveChildSeed("master", "other app"))
	require.NotEqual(t, child, DeriveChildSeed("other master", "app"))
	require.Len(t, child, 64)
}

func TestParseKeys(t *testing.T) {
	kp := GenKeyPairFromSeed("parse")

	pk, err := ParsePublicKey(kp.PublicKey)
	require.NoError(t, err)
	require.Len(t, pk, 32)

	sk, err := ParsePrivateKey(kp.PrivateKey)
	require.NoError(t, err)
	require.Len(t, sk, 64)

	pub, err := PublicKeyFromPrivateKey(kp.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, kp.PublicKey, pub)

	for _, bad := range []string{"", "abc", strings.Repeat("z", PublicKeyHexLength)} {
		_, err := ParsePublicKey(bad)
		require.Error(t, err, "input %q", bad)
		require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
		require.Contains(t, err.Error(), "publicKey")
	}

	_, err = ParsePrivateKey(kp.PublicKey)
	require.Error(t, err)
	require.Contains(t, err.Error(), "privateKey")
}
