package registry

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/encoding"
	"github.com/skynetlabs/skynet/keys"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skylink"
	"github.com/stretchr/testify/require"
)

var testKeys = keys.GenKeyPairFromSeed("registry test seed")

func TestHashDataKey(t *testing.T) {
	// The hash covers the length prefix, so the empty key is still hashed.
	require.Len(t, HashDataKey(""), encoding.HashSize)
	require.NotEqual(t, HashDataKey("a"), HashDataKey("b"))
	require.Equal(t, encoding.HashAll(encoding.EncodeUTF8String("app")), HashDataKey("app"))
}

func TestDeriveEntryIdentity(t *testing.T) {
	for _, dk := range []string{"app", ".", "..", "http://localhost:8080/path?q=1", ""} {
		hashed, err := DeriveEntryIdentity(testKeys.PublicKey, dk, false)
		require.NoError(t, err)
		require.Equal(t, hex.EncodeToString(HashDataKey(dk)), hashed)

		// Feeding the hashed form back in must give the same identity.
		again, err := DeriveEntryIdentity(testKeys.PublicKey, hashed, true)
		require.NoError(t, err)
		require.Equal(t, hashed, again)
	}

	_, err := DeriveEntryIdentity("nothex", "app", false)
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
	require.Contains(t, err.Error(), "publicKey")

	_, err = DeriveEntryIdentity(testKeys.PublicKey, "app", true)
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
	require.Contains(t, err.Error(), "dataKey")
}

func TestSignAndVerify(t *testing.T) {
	for _, dk := range []string{"app", ".", "..", "http://localhost:8080/path?q=1", ""} {
		entry := skynet.RegistryEntry{DataKey: dk, Data: []byte("some data"), Revision: 11}

		sig, err := Sign(testKeys.PrivateKey, entry, false)
		require.NoError(t, err)
		require.Len(t, sig, skynet.SignatureSize)

		ok, err := Verify(testKeys.PublicKey, entry, sig, false)
		require.NoError(t, err)
		require.True(t, ok, "data key %q", dk)

		// The hashed form of the key signs the same bytes.
		hashedEntry := entry
		hashedEntry.DataKey = hex.EncodeToString(HashDataKey(dk))
		ok, err = Verify(testKeys.PublicKey, hashedEntry, sig, true)
		require.NoError(t, err)
		require.True(t, ok)

		hashedSig, err := Sign(testKeys.PrivateKey, hashedEntry, true)
		require.NoError(t, err)
		require.Equal(t, sig, hashedSig)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	entry := skynet.RegistryEntry{DataKey: "app", Data: []byte{1, 2, 3, 4}, Revision: 7}
	sig, err := Sign(testKeys.PrivateKey, entry, false)
	require.NoError(t, err)

	for i := range sig {
		bad := append([]byte(nil), sig...)
		bad[i] ^= 0x01
		ok, err := Verify(testKeys.PublicKey, entry, bad, false)
		require.NoError(t, err)
		require.False(t, ok, "flipped signature byte %d", i)
	}

	for i := range entry.Data {
		bad := entry
		bad.Data = append([]byte(nil), entry.Data...)
		bad.Data[i] ^= 0x01
		ok, err := Verify(testKeys.PublicKey, bad, sig, false)
		require.NoError(t, err)
		require.False(t, ok, "flipped data byte %d", i)
	}

	bad := entry
	bad.Revision++
	ok, err := Verify(testKeys.PublicKey, bad, sig, false)
	require.NoError(t, err)
	require.False(t, ok)

	bad = entry
	bad.DataKey = "apq"
	ok, err = Verify(testKeys.PublicKey, bad, sig, false)
	require.NoError(t, err)
	require.False(t, ok)

	other := keys.GenKeyPairFromSeed("someone else")
	ok, err = Verify(other.PublicKey, entry, sig, false)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = Verify(testKeys.PublicKey, entry, sig[:10], false)
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
}

func TestSignRejectsInvalidEntries(t *testing.T) {
	_, err := Sign(testKeys.PrivateKey, skynet.RegistryEntry{DataKey: "app", Data: make([]byte, skynet.MaxRegistryDataSize+1)}, false)
	require.True(t, errors.Is(err, errcode.ErrorCodeEntryTooLarge))

	_, err = Sign(testKeys.PublicKey, skynet.RegistryEntry{DataKey: "app"}, false)
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
	require.Contains(t, err.Error(), "privateKey")

	// Boundary revisions are representable.
	for _, rev := range []uint64{0, skynet.MaxRevision} {
		entry := skynet.RegistryEntry{DataKey: "app", Revision: rev}
		sig, err := Sign(testKeys.PrivateKey, entry, false)
		require.NoError(t, err)
		ok, err := Verify(testKeys.PublicKey, entry, sig, false)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestEntryLink(t *testing.T) {
	link, err := EntryLink(testKeys.PublicKey, "app", false)
	require.NoError(t, err)
	require.True(t, link.IsV2())

	pk, err := keys.ParsePublicKey(testKeys.PublicKey)
	require.NoError(t, err)
	require.Equal(t, EntryID(pk, HashDataKey("app")), link.MerkleRoot())

	hashedLink, err := EntryLink(testKeys.PublicKey, hex.EncodeToString(HashDataKey("app")), true)
	require.NoError(t, err)
	require.Equal(t, link, hashedLink)

	other, err := EntryLink(testKeys.PublicKey, "app2", false)
	require.NoError(t, err)
	require.NotEqual(t, link, other)
}

// buildProof returns a two step proof: anchor -> intermediate v2 link -> content.
func buildProof(t *testing.T, content skylink.Skylink) ([]ProofEntry, skylink.Skylink) {
	t.Helper()
	pk, err := keys.ParsePublicKey(testKeys.PublicKey)
	require.NoError(t, err)

	second, err := EntryLink(testKeys.PublicKey, "second", false)
	require.NoError(t, err)
	anchor, err := EntryLink(testKeys.PublicKey, "first", false)
	require.NoError(t, err)

	step := func(dk string, data []byte) ProofEntry {
		entry := skynet.RegistryEntry{DataKey: hex.EncodeToString(HashDataKey(dk)), Data: data, Revision: 3}
		sig, err := Sign(testKeys.PrivateKey, entry, true)
		require.NoError(t, err)
		return NewProofEntry(pk, entry, sig)
	}
	return []ProofEntry{
		step("first", second.Bytes()),
		step("second", content.Bytes()),
	}, anchor
}

func TestValidateProof(t *testing.T) {
	content, err := skylink.NewV1(encoding.HashAll([]byte("content")), 0, 100)
	require.NoError(t, err)
	proof, anchor := buildProof(t, content)

	res, err := ValidateProof(proof, ProofOptions{AnchorLink: anchor.String(), ExpectedContentID: content.URI()})
	require.NoError(t, err)
	require.Equal(t, content.String(), res.ContentID)
	require.Equal(t, anchor.String(), res.AnchorLink)

	res, err = ValidateProof(proof, ProofOptions{})
	require.NoError(t, err)
	require.Equal(t, content.String(), res.ContentID)
}

func TestValidateProofFailsClosed(t *testing.T) {
	content, err := skylink.NewV1(encoding.HashAll([]byte("content")), 0, 100)
	require.NoError(t, err)
	other, err := skylink.NewV1(encoding.HashAll([]byte("other")), 0, 100)
	require.NoError(t, err)

	requireInvalid := func(proof []ProofEntry, opts ProofOptions) {
		t.Helper()
		_, err := ValidateProof(proof, opts)
		require.Error(t, err)
		require.True(t, errors.Is(err, errcode.ErrorCodeProofInvalid), "got %v", err)
	}

	requireInvalid(nil, ProofOptions{})

	proof, anchor := buildProof(t, content)
	requireInvalid(proof, ProofOptions{ExpectedContentID: other.String()})
	requireInvalid(proof, ProofOptions{AnchorLink: content.String()})
	_ = anchor

	// Reversed steps do not link.
	reversed, _ := buildProof(t, content)
	reversed[0], reversed[1] = reversed[1], reversed[0]
	requireInvalid(reversed, ProofOptions{})

	// Unsupported type.
	typed, _ := buildProof(t, content)
	typed[1].Type = 2
	requireInvalid(typed, ProofOptions{})

	// Bad signature.
	tampered, _ := buildProof(t, content)
	sig, _ := hex.DecodeString(tampered[1].Signature)
	sig[0] ^= 0xff
	tampered[1].Signature = hex.EncodeToString(sig)
	requireInvalid(tampered, ProofOptions{})

	// Data that is not a skylink.
	notLink, _ := buildProof(t, content)
	data := bytes.Repeat([]byte{9}, 10)
	entry := skynet.RegistryEntry{DataKey: notLink[1].DataKey, Data: data, Revision: 3}
	s, err := Sign(testKeys.PrivateKey, entry, true)
	require.NoError(t, err)
	notLink[1] = NewProofEntry(notLink[1].PublicKey.Key, entry, s)
	requireInvalid(notLink, ProofOptions{})

	_, err = ValidateProof(proof, ProofOptions{AnchorLink: "not a skylink"})
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
}

func TestDecodeOptions(t *testing.T) {
	var opts skynet.GetEntryOptions
	require.NoError(t, DecodeOptions(map[string]interface{}{
		"hashedDataKeyHex": true,
		"timeout":          "10",
	}, &opts))
	require.True(t, opts.HashedDataKeyHex)
	require.Equal(t, 10, opts.Timeout)

	err := DecodeOptions(map[string]interface{}{"timeOut": 10}, &opts)
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
	require.Contains(t, err.Error(), "timeOut")
	require.Equal(t, 10, opts.Timeout)

	err = DecodeOptions(map[string]interface{}{"hasheddatakeyhex": true}, &skynet.GetEntryOptions{})
	require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
}

func TestGetEntryOptionsWithDefaults(t *testing.T) {
	opts, err := GetEntryOptionsWithDefaults(skynet.GetEntryOptions{})
	require.NoError(t, err)
	require.Equal(t, skynet.DefaultRegistryEndpointPath, opts.EndpointPath)
	require.Equal(t, skynet.DefaultGetEntryTimeout, opts.Timeout)

	for _, timeout := range []int{-1, skynet.MaxGetEntryTimeout + 1} {
		_, err := GetEntryOptionsWithDefaults(skynet.GetEntryOptions{Timeout: timeout})
		require.True(t, errors.Is(err, errcode.ErrorCodeInvalidArgument))
		require.Contains(t, err.Error(), "timeout")
	}
}
