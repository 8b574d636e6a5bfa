package registry

import (
	"encoding/hex"
	"fmt"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skylink"
	"golang.org/x/crypto/ed25519"
)

// ProofEntry is one step of a registry proof as served in the Skynet-Proof
// header. Each step resolves a v2 skylink to the skylink stored in its data.
type ProofEntry struct {
	Data      string         `json:"data"`
	Revision  uint64         `json:"revision"`
	DataKey   string         `json:"datakey"`
	PublicKey ProofPublicKey `json:"publickey"`
	Signature string         `json:"signature"`
	Type      int            `json:"type"`
}

// ProofPublicKey is the owner key of a proof step. Key is base64 encoded by
// encoding/json.
type ProofPublicKey struct {
	Algorithm string `json:"algorithm"`
	Key       []byte `json:"key"`
}

// ProofOptions constrains the ends of a proof chain. Empty fields are not
// checked.
type ProofOptions struct {
	// AnchorLink is the v2 skylink the first step must resolve.
	AnchorLink string

	// ExpectedContentID is the skylink the last step must resolve to.
	ExpectedContentID string
}

// ProofResult holds both ends of a validated chain.
type ProofResult struct {
	ContentID  string
	AnchorLink string
}

// ValidateProof walks a registry proof and returns the content it resolves
// to. Any unsupported entry, bad signature or broken link fails the whole
// proof.
func ValidateProof(proof []ProofEntry, opts ProofOptions) (ProofResult, error) {
	if len(proof) == 0 {
		return ProofResult{}, errcode.ErrorCodeProofInvalid.WithArgs("proof is empty")
	}

	var anchor, expected *skylink.Skylink
	if opts.AnchorLink != "" {
		sl, err := skylink.Parse(opts.AnchorLink)
		if err != nil {
			return ProofResult{}, errcode.ErrorCodeInvalidArgument.WithArgs("anchorLink", err.Error())
		}
		anchor = &sl
	}
	if opts.ExpectedContentID != "" {
		sl, err := skylink.Parse(opts.ExpectedContentID)
		if err != nil {
			return ProofResult{}, errcode.ErrorCodeInvalidArgument.WithArgs("expectedContentId", err.Error())
		}
		expected = &sl
	}

	var (
		first    skylink.Skylink
		dataLink skylink.Skylink
	)
	for i, step := range proof {
		entryLink, link, err := validateProofStep(step)
		if err != nil {
			return ProofResult{}, errcode.ErrorCodeProofInvalid.WithArgs(fmt.Sprintf("step %d: %v", i, err))
		}
		if i == 0 {
			first = entryLink
			if anchor != nil && entryLink != *anchor {
				return ProofResult{}, errcode.ErrorCodeProofInvalid.WithArgs(fmt.Sprintf("first entry link %s does not match anchor %s", entryLink, anchor))
			}
		} else if entryLink != dataLink {
			return ProofResult{}, errcode.ErrorCodeProofInvalid.WithArgs(fmt.Sprintf("step %d: entry link %s does not match previous data link %s", i, entryLink, dataLink))
		}
		dataLink = link
	}

	if expected != nil && dataLink != *expected {
		return ProofResult{}, errcode.ErrorCodeProofInvalid.WithArgs(fmt.Sprintf("resolved %s, expected %s", dataLink, expected))
	}
	return ProofResult{ContentID: dataLink.String(), AnchorLink: first.String()}, nil
}

// validateProofStep verifies one step and returns the link it is stored
// under together with the link it points to.
func validateProofStep(step ProofEntry) (entryLink, dataLink skylink.Skylink, err error) {
	if step.Type != skynet.RegistryTypeWithoutPubkey {
		return entryLink, dataLink, fmt.Errorf("unsupported registry type %d", step.Type)
	}
	if step.PublicKey.Algorithm != "ed25519" {
		return entryLink, dataLink, fmt.Errorf("unsupported key algorithm %q", step.PublicKey.Algorithm)
	}
	if len(step.PublicKey.Key) != ed25519.PublicKeySize {
		return entryLink, dataLink, fmt.Errorf("public key has %d bytes", len(step.PublicKey.Key))
	}
	data, err := hex.DecodeString(step.Data)
	if err != nil {
		return entryLink, dataLink, fmt.Errorf("data is not hex: %w", err)
	}
	sig, err := hex.DecodeString(step.Signature)
	if err != nil {
		return entryLink, dataLink, fmt.Errorf("signature is not hex: %w", err)
	}

	entry := skynet.RegistryEntry{DataKey: step.DataKey, Data: data, Revision: step.Revision}
	ok, err := verifyKey(ed25519.PublicKey(step.PublicKey.Key), entry, sig, true)
	if err != nil {
		return entryLink, dataLink, err
	}
	if !ok {
		return entryLink, dataLink, fmt.Errorf("bad signature")
	}

	dk, _ := hex.DecodeString(step.DataKey)
	entryLink, err = skylink.NewV2(EntryID(step.PublicKey.Key, dk))
	if err != nil {
		return entryLink, dataLink, err
	}
	dataLink, err = skylink.FromBytes(data)
	if err != nil {
		return entryLink, dataLink, err
	}
	return entryLink, dataLink, nil
}

// NewProofEntry builds the proof step for a signed entry. It is what a
// portal serves for the entry.
func NewProofEntry(publicKey []byte, entry skynet.RegistryEntry, signature []byte) ProofEntry {
	return ProofEntry{
		Data:      hex.EncodeToString(entry.Data),
		Revision:  entry.Revision,
		DataKey:   entry.DataKey,
		PublicKey: ProofPublicKey{Algorithm: "ed25519", Key: publicKey},
		Signature: hex.EncodeToString(signature),
		Type:      skynet.RegistryTypeWithoutPubkey,
	}
}
