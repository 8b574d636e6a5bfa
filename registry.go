package skynet

import (
	"context"
	"math"
)

const (
	// MaxRevision is the largest revision number an entry can carry. An
	// entry at this revision can never be updated again.
	MaxRevision uint64 = math.MaxUint64

	// MaxRegistryDataSize is the largest payload the registry accepts for a
	// single entry.
	MaxRegistryDataSize = 113

	// MaxEntryDataSize is the largest raw payload accepted by SkyDB's entry
	// data setters.
	MaxEntryDataSize = 70

	// RawSkylinkSize is the size of a decoded skylink.
	RawSkylinkSize = 34

	// RegistryTypeWithoutPubkey is the registry entry type whose data is not
	// prefixed with the owner public key. It is the only type supported by
	// registry proofs.
	RegistryTypeWithoutPubkey = 1

	// SignatureSize is the size of a detached Ed25519 signature.
	SignatureSize = 64
)

// DeletionEntryData is the reserved payload written to mark an entry as
// deleted. Readers report a deleted entry as not found.
var DeletionEntryData = make([]byte, RawSkylinkSize)

// RegistryEntry is a versioned payload stored under an owner public key and
// a data key.
type RegistryEntry struct {
	// DataKey is either the plain data key or, when the caller says so, its
	// hashed hex form.
	DataKey string

	// Data is the raw payload of the entry.
	Data []byte

	// Revision strictly increases with every successful write.
	Revision uint64
}

// SignedRegistryEntry pairs an entry with its signature. A nil Entry means
// the entry was not found, which is not an error.
type SignedRegistryEntry struct {
	Entry     *RegistryEntry
	Signature []byte
}

// Found reports whether the lookup returned an entry.
func (s SignedRegistryEntry) Found() bool {
	return s.Entry != nil
}

// GetEntryOptions configures a registry lookup.
type GetEntryOptions struct {
	// EndpointPath is the portal path of the registry API.
	EndpointPath string `mapstructure:"endpointPath"`

	// HashedDataKeyHex indicates the data key is already hashed and hex
	// encoded.
	HashedDataKeyHex bool `mapstructure:"hashedDataKeyHex"`

	// Timeout is the number of seconds the portal may spend looking up the
	// entry. Zero selects DefaultGetEntryTimeout.
	Timeout int `mapstructure:"timeout"`
}

// SetEntryOptions configures a registry write.
type SetEntryOptions struct {
	// EndpointPath is the portal path of the registry API.
	EndpointPath string `mapstructure:"endpointPath"`

	// HashedDataKeyHex indicates the data key is already hashed and hex
	// encoded.
	HashedDataKeyHex bool `mapstructure:"hashedDataKeyHex"`
}

const (
	// DefaultRegistryEndpointPath is the registry API path on a portal.
	DefaultRegistryEndpointPath = "/skynet/registry"

	// DefaultGetEntryTimeout is the lookup timeout in seconds used when none
	// is given.
	DefaultGetEntryTimeout = 5

	// MaxGetEntryTimeout is the largest lookup timeout a portal accepts.
	MaxGetEntryTimeout = 300
)

// Registry reads and writes signed registry entries.
type Registry interface {
	// GetEntry looks up and verifies the entry owned by publicKey under
	// dataKey.
	GetEntry(ctx context.Context, publicKey, dataKey string, opts GetEntryOptions) (SignedRegistryEntry, error)

	// PostSignedEntry writes an entry that has already been signed.
	PostSignedEntry(ctx context.Context, publicKey string, entry RegistryEntry, signature []byte, opts SetEntryOptions) error
}
