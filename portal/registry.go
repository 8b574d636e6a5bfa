package portal

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/keys"
	"github.com/skynetlabs/skynet/registry"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	regclient "github.com/skynetlabs/skynet/registry/client"
	"golang.org/x/crypto/ed25519"
)

const publicKeyPrefix = "ed25519:"

// entryID returns the store key of the entry owned by pk under the hashed
// data key.
func entryID(pk, hashedDataKey []byte) string {
	return hex.EncodeToString(registry.EntryID(pk, hashedDataKey))
}

func parseQueryPublicKey(s string) (ed25519.PublicKey, error) {
	key, ok := strings.CutPrefix(s, publicKeyPrefix)
	if !ok {
		return nil, errcode.ErrorCodeInvalidArgument.WithArgs("publickey", fmt.Sprintf("expected the %q prefix", publicKeyPrefix))
	}
	return keys.ParsePublicKey(key)
}

func parseHashedDataKey(s string) ([]byte, error) {
	if len(s) != registry.HashedDataKeyHexLength {
		return nil, errcode.ErrorCodeInvalidArgument.WithArgs("datakey", fmt.Sprintf("expected %d hex characters", registry.HashedDataKeyHexLength))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errcode.ErrorCodeInvalidArgument.WithArgs("datakey", "expected a hex-encoded string")
	}
	return b, nil
}

// getEntry serves GET /skynet/registry.
func (app *App) getEntry(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	pk, err := parseQueryPublicKey(q.Get("publickey"))
	if err != nil {
		return err
	}
	dk, err := parseHashedDataKey(q.Get("datakey"))
	if err != nil {
		return err
	}
	if t := q.Get("timeout"); t != "" {
		timeout, err := strconv.Atoi(t)
		if err != nil || timeout < 1 || timeout > skynet.MaxGetEntryTimeout {
			return errcode.ErrorCodeInvalidArgument.WithArgs("timeout", fmt.Sprintf("expected an integer between 1 and %d", skynet.MaxGetEntryTimeout))
		}
	}

	entry, err := app.store.GetEntry(ctx, entryID(pk, dk))
	if err != nil {
		return err
	}
	return serveJSON(w, http.StatusOK, regclient.EntryResponse{
		Data:      hex.EncodeToString(entry.Data),
		Revision:  json.Number(strconv.FormatUint(entry.Revision, 10)),
		Signature: hex.EncodeToString(entry.Signature),
	})
}

// postEntry serves POST /skynet/registry. The entry must be signed by its
// owner and carry a revision above the stored one.
func (app *App) postEntry(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEntryBodySize))
	if err != nil {
		return err
	}
	var req regclient.PostEntryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errcode.ErrorCodeInvalidArgument.WithArgs("body", err.Error())
	}

	if req.PublicKey.Algorithm != "ed25519" {
		return errcode.ErrorCodeInvalidArgument.WithArgs("publickey", fmt.Sprintf("unsupported algorithm %q", req.PublicKey.Algorithm))
	}
	if len(req.PublicKey.Key) != ed25519.PublicKeySize {
		return errcode.ErrorCodeInvalidArgument.WithArgs("publickey", fmt.Sprintf("expected %d bytes", ed25519.PublicKeySize))
	}
	dk, err := parseHashedDataKey(req.DataKey)
	if err != nil {
		return err
	}
	if len(req.Signature) != skynet.SignatureSize {
		return errcode.ErrorCodeInvalidArgument.WithArgs("signature", fmt.Sprintf("expected %d bytes", skynet.SignatureSize))
	}

	entry := skynet.RegistryEntry{DataKey: strings.ToLower(req.DataKey), Data: req.Data, Revision: req.Revision}
	if err := registry.ValidateEntry(entry, true); err != nil {
		return err
	}
	ok, err := registry.Verify(hex.EncodeToString(req.PublicKey.Key), entry, req.Signature, true)
	if err != nil {
		return err
	}
	if !ok {
		return errcode.ErrorCodeInvalidArgument.WithArgs("signature", "does not match the entry")
	}

	if err := app.store.PutEntry(ctx, entryID(req.PublicKey.Key, dk), StoredEntry{
		PublicKey:     req.PublicKey.Key,
		HashedDataKey: dk,
		Data:          req.Data,
		Revision:      req.Revision,
		Signature:     req.Signature,
	}); err != nil {
		return err
	}

	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"datakey":  entry.DataKey,
		"revision": entry.Revision,
	}).Debug("registry entry updated")
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func serveJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
