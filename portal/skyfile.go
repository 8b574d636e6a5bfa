package portal

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/content"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/internal/encoding"
	"github.com/skynetlabs/skynet/registry"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skylink"
)

// uploadSkyfile serves POST /skynet/skyfile. The file is stored under the
// hash of its content and served back through a v1 skylink.
func (app *App) uploadSkyfile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, app.options.MaxUploadSize)
	f, header, err := r.FormFile(content.DefaultFileFieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errcode.ErrorCodeInvalidArgument.WithArgs("file", "exceeds the maximum upload size")
		}
		return errcode.ErrorCodeInvalidArgument.WithArgs("file", err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	root := encoding.HashAll(data)
	sl, err := skylink.NewV1(root, 0, uint64(len(data)))
	if err != nil {
		return errcode.ErrorCodeInvalidArgument.WithArgs("file", err.Error())
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := app.store.PutFile(ctx, hex.EncodeToString(root), newStoredFile(data, contentType, header.Filename)); err != nil {
		return err
	}

	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"skylink":  sl.String(),
		"filename": header.Filename,
		"size":     len(data),
	}).Debug("skyfile uploaded")
	return serveJSON(w, http.StatusOK, skynet.UploadResult{
		Skylink:    sl.String(),
		MerkleRoot: hex.EncodeToString(root),
		Bitfield:   sl.Bitfield(),
	})
}

// download serves GET /{skylink}. A v2 skylink is resolved through the
// registry and the chain of entries is returned as the registry proof.
func (app *App) download(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	requested, err := skylink.Parse(mux.Vars(r)["skylink"])
	if err != nil {
		return errcode.ErrorCodeInvalidArgument.WithArgs("skylink", err.Error())
	}

	resolved, proof, err := app.resolve(ctx, requested)
	if err != nil {
		return err
	}

	file, err := app.store.GetFile(ctx, hex.EncodeToString(resolved.MerkleRoot()))
	if err != nil {
		return err
	}
	if err := file.verify(); err != nil {
		return err
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("ETag", `"`+file.Digest.String()+`"`)
	w.Header().Set(content.SkylinkHeader, resolved.String())
	if len(proof) > 0 {
		header, err := json.Marshal(proof)
		if err != nil {
			return err
		}
		w.Header().Set(content.ProofHeader, string(header))
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
		w.WriteHeader(http.StatusOK)
		return nil
	}
	http.ServeContent(w, r, file.Filename, time.Time{}, bytes.NewReader(file.Data))
	return nil
}

// resolve follows v2 skylinks through the registry until it reaches a v1
// skylink.
func (app *App) resolve(ctx context.Context, sl skylink.Skylink) (skylink.Skylink, []registry.ProofEntry, error) {
	var proof []registry.ProofEntry
	for depth := 0; sl.IsV2(); depth++ {
		if depth == maxResolveDepth {
			return skylink.Skylink{}, nil, errcode.ErrorCodeContentUnknown.WithDetail("too many registry hops")
		}
		entry, err := app.store.GetEntry(ctx, hex.EncodeToString(sl.MerkleRoot()))
		if errors.Is(err, errcode.ErrorCodeEntryUnknown) {
			return skylink.Skylink{}, nil, errcode.ErrorCodeContentUnknown.WithDetail(sl.String())
		}
		if err != nil {
			return skylink.Skylink{}, nil, err
		}
		if bytes.Equal(entry.Data, skynet.DeletionEntryData) {
			return skylink.Skylink{}, nil, errcode.ErrorCodeContentUnknown.WithDetail(sl.String())
		}
		next, err := skylink.FromBytes(entry.Data)
		if err != nil {
			return skylink.Skylink{}, nil, errcode.ErrorCodeContentUnknown.WithDetail(sl.String())
		}
		proof = append(proof, registry.NewProofEntry(entry.PublicKey, skynet.RegistryEntry{
			DataKey:  hex.EncodeToString(entry.HashedDataKey),
			Data:     entry.Data,
			Revision: entry.Revision,
		}, entry.Signature))
		sl = next
	}
	return sl, proof, nil
}
