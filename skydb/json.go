package skydb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/skynetlabs/skynet/notifications"
	"github.com/skynetlabs/skynet/skylink"
)

const (
	// JSONDataKey is the envelope field holding the stored value.
	JSONDataKey = "_data"

	// JSONVersionKey is the envelope field holding the envelope version.
	JSONVersionKey = "_v"

	// JSONVersion is the envelope version written by SetJSON.
	JSONVersion = 2
)

// JSONResponse is the result of a JSON operation. Data is nil when the
// entry was not found, was deleted, or still points at the cached data
// link.
type JSONResponse struct {
	Data     json.RawMessage
	DataLink string
}

// Decode unmarshals the value into v.
func (r JSONResponse) Decode(v any) error {
	if r.Data == nil {
		return fmt.Errorf("no JSON value")
	}
	return json.Unmarshal(r.Data, v)
}

type envelope struct {
	Data    json.RawMessage `json:"_data"`
	Version int             `json:"_v"`
}

// encodeEnvelope marshals v into a versioned envelope and returns the value
// and document bytes.
func encodeEnvelope(v any) (json.RawMessage, []byte, error) {
	value, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding JSON value: %w", err)
	}
	doc, err := json.Marshal(envelope{Data: value, Version: JSONVersion})
	if err != nil {
		return nil, nil, err
	}
	return value, doc, nil
}

// decodeEnvelope extracts the stored value of a document. Documents written
// before the envelope existed are returned whole.
func decodeEnvelope(doc []byte) (json.RawMessage, error) {
	if !json.Valid(doc) {
		return nil, fmt.Errorf("stored document is not valid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err == nil {
		if data, ok := fields[JSONDataKey]; ok {
			if _, versioned := fields[JSONVersionKey]; versioned {
				return data, nil
			}
		}
	}
	return json.RawMessage(bytes.TrimSpace(doc)), nil
}

// GetJSON reads the JSON value stored under dataKey by publicKey.
func (db *DB) GetJSON(ctx context.Context, publicKey, dataKey string, opts GetJSONOptions) (resp JSONResponse, err error) {
	op, ctx := db.begin(ctx, "GetJSON", dataKey)
	defer func() { op.end(ctx, err) }()

	id, err := readIdentity(publicKey, dataKey, opts.EntryOptions)
	if err != nil {
		return JSONResponse{}, err
	}

	var cached skylink.Skylink
	if opts.CachedDataLink != "" {
		if cached, err = skylink.Parse(opts.CachedDataLink); err != nil {
			return JSONResponse{}, err
		}
	}

	data, err := db.lookup(ctx, id, opts.EntryOptions)
	if err != nil || data == nil {
		return JSONResponse{}, err
	}
	dataLink, err := dataLinkFromEntry(data)
	if err != nil {
		return JSONResponse{}, err
	}
	if opts.CachedDataLink != "" && cached == dataLink {
		return JSONResponse{DataLink: dataLink.URI()}, nil
	}

	content, err := db.downloader.FetchContent(ctx, dataLink.String())
	if err != nil {
		return JSONResponse{}, err
	}
	value, err := decodeEnvelope(content.Data)
	if err != nil {
		return JSONResponse{}, err
	}
	return JSONResponse{Data: value, DataLink: dataLink.URI()}, nil
}

// SetJSON stores v under dataKey as the next revision of the entry owned by
// privateKey's public key.
func (db *DB) SetJSON(ctx context.Context, privateKey, dataKey string, v any, opts EntryOptions) (resp JSONResponse, err error) {
	op, ctx := db.begin(ctx, "SetJSON", dataKey)
	defer func() { op.end(ctx, err) }()

	id, err := writeIdentity(privateKey, dataKey, opts)
	if err != nil {
		return JSONResponse{}, err
	}
	value, doc, err := encodeEnvelope(v)
	if err != nil {
		return JSONResponse{}, err
	}

	// The upload is content addressed and safe to repeat, so it happens
	// before the entry lock is taken.
	uploaded, err := db.uploader.UploadContent(ctx, doc, "dk:"+id.hashedDataKey)
	if err != nil {
		return JSONResponse{}, err
	}
	dataLink, err := skylink.Parse(uploaded.Skylink)
	if err != nil {
		return JSONResponse{}, err
	}

	revision, err := db.commit(ctx, id, dataLink.Bytes(), opts)
	if err != nil {
		return JSONResponse{}, err
	}
	db.notify(ctx, notifications.EventActionSet, "SetJSON", id, revision, dataLink.URI())
	return JSONResponse{Data: value, DataLink: dataLink.URI()}, nil
}

// DeleteJSON marks the entry under dataKey as deleted. Subsequent reads
// report it as not found until it is written again.
func (db *DB) DeleteJSON(ctx context.Context, privateKey, dataKey string, opts EntryOptions) (err error) {
	op, ctx := db.begin(ctx, "DeleteJSON", dataKey)
	defer func() { op.end(ctx, err) }()

	return db.deleteEntry(ctx, "DeleteJSON", privateKey, dataKey, opts)
}

func (db *DB) deleteEntry(ctx context.Context, operation, privateKey, dataKey string, opts EntryOptions) error {
	id, err := writeIdentity(privateKey, dataKey, opts)
	if err != nil {
		return err
	}
	revision, err := db.commit(ctx, id, deletionEntryData(), opts)
	if err != nil {
		return err
	}
	db.notify(ctx, notifications.EventActionDelete, operation, id, revision, "")
	return nil
}
