// Package client reads and writes signed registry entries on a portal.
package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/client/transport"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/keys"
	"github.com/skynetlabs/skynet/metrics"
	"github.com/skynetlabs/skynet/registry"
	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// Executor performs portal requests. *transport.Transport implements it.
type Executor interface {
	Execute(ctx context.Context, req transport.Request, transform transport.ResponseTransform) (*transport.Response, error)
}

// Client is a skynet.Registry backed by a portal.
type Client struct {
	exec Executor
}

var _ skynet.Registry = (*Client)(nil)

// New returns a registry client that sends requests through exec.
func New(exec Executor) *Client {
	return &Client{exec: exec}
}

// GetEntry looks up the entry owned by publicKey under dataKey and verifies
// its signature. An entry that does not exist is returned as a
// SignedRegistryEntry with a nil Entry and no error.
func (c *Client) GetEntry(ctx context.Context, publicKey, dataKey string, opts skynet.GetEntryOptions) (skynet.SignedRegistryEntry, error) {
	hashedDataKey, err := registry.DeriveEntryIdentity(publicKey, dataKey, opts.HashedDataKeyHex)
	if err != nil {
		return skynet.SignedRegistryEntry{}, err
	}
	opts, err = registry.GetEntryOptionsWithDefaults(opts)
	if err != nil {
		return skynet.SignedRegistryEntry{}, err
	}

	start := time.Now()
	defer metrics.RegistryLatency.WithValues("get").UpdateSince(start)

	var body EntryResponse
	_, err = c.exec.Execute(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   opts.EndpointPath,
		Query: url.Values{
			"publickey": {"ed25519:" + publicKey},
			"datakey":   {hashedDataKey},
			"timeout":   {strconv.Itoa(opts.Timeout)},
		},
	}, func(resp *transport.Response) error {
		dec := json.NewDecoder(bytes.NewReader(resp.Body))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("decoding registry entry: %w", err)
		}
		return nil
	})
	if transport.IsNotFound(err) {
		return skynet.SignedRegistryEntry{}, nil
	}
	if err != nil {
		return skynet.SignedRegistryEntry{}, err
	}

	revision, err := ParseRevision(body.Revision)
	if err != nil {
		return skynet.SignedRegistryEntry{}, err
	}
	data, err := hex.DecodeString(body.Data)
	if err != nil {
		return skynet.SignedRegistryEntry{}, errcode.ErrorCodeInvalidArgument.WithArgs("data", "expected a hex-encoded string")
	}
	signature, err := hex.DecodeString(body.Signature)
	if err != nil {
		return skynet.SignedRegistryEntry{}, errcode.ErrorCodeInvalidArgument.WithArgs("signature", "expected a hex-encoded string")
	}

	entry := skynet.RegistryEntry{DataKey: hashedDataKey, Data: data, Revision: revision}
	ok, err := registry.Verify(publicKey, entry, signature, true)
	if err != nil || !ok {
		dcontext.GetLoggerWithFields(ctx, map[any]any{"publicKey": publicKey, "dataKey": hashedDataKey}).Warn("registry entry failed signature verification")
		if err != nil {
			return skynet.SignedRegistryEntry{}, errcode.ErrorCodeEntryCorrupted.WithArgs().WithDetail(err.Error())
		}
		return skynet.SignedRegistryEntry{}, errcode.ErrorCodeEntryCorrupted.WithArgs()
	}

	entry.DataKey = dataKey
	return skynet.SignedRegistryEntry{Entry: &entry, Signature: signature}, nil
}

// PostSignedEntry writes an entry signed by the owner of publicKey. Portal
// error messages are returned verbatim.
func (c *Client) PostSignedEntry(ctx context.Context, publicKey string, entry skynet.RegistryEntry, signature []byte, opts skynet.SetEntryOptions) error {
	pk, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		return err
	}
	hashedDataKey, err := registry.HashedDataKeyHex(entry.DataKey, opts.HashedDataKeyHex)
	if err != nil {
		return err
	}
	if err := registry.ValidateEntry(entry, opts.HashedDataKeyHex); err != nil {
		return err
	}
	if len(signature) != skynet.SignatureSize {
		return errcode.ErrorCodeInvalidArgument.WithArgs("signature", fmt.Sprintf("expected %d bytes, got %d", skynet.SignatureSize, len(signature)))
	}
	opts = registry.SetEntryOptionsWithDefaults(opts)

	body, err := json.Marshal(PostEntryRequest{
		PublicKey: PublicKey{Algorithm: "ed25519", Key: ByteArray(pk)},
		DataKey:   hashedDataKey,
		Revision:  entry.Revision,
		Data:      ByteArray(entry.Data),
		Signature: ByteArray(signature),
	})
	if err != nil {
		return err
	}

	start := time.Now()
	defer metrics.RegistryLatency.WithValues("set").UpdateSince(start)

	_, err = c.exec.Execute(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        opts.EndpointPath,
		Body:        body,
		ContentType: "application/json",
	}, nil)
	return err
}

// SetEntry signs entry with privateKey and writes it.
func (c *Client) SetEntry(ctx context.Context, privateKey string, entry skynet.RegistryEntry, opts skynet.SetEntryOptions) error {
	publicKey, err := keys.PublicKeyFromPrivateKey(privateKey)
	if err != nil {
		return err
	}
	signature, err := registry.Sign(privateKey, entry, opts.HashedDataKeyHex)
	if err != nil {
		return err
	}
	return c.PostSignedEntry(ctx, publicKey, entry, signature, opts)
}
