package skydb

import (
	"context"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/notifications"
	"github.com/skynetlabs/skynet/registry"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skylink"
)

// EntryDataResponse is the result of GetEntryData. Data is nil when the
// entry was not found or was deleted.
type EntryDataResponse struct {
	Data []byte
}

func deletionEntryData() []byte {
	return append([]byte(nil), skynet.DeletionEntryData...)
}

// GetEntryData returns the raw data of the entry under dataKey.
func (db *DB) GetEntryData(ctx context.Context, publicKey, dataKey string, opts EntryOptions) (resp EntryDataResponse, err error) {
	op, ctx := db.begin(ctx, "GetEntryData", dataKey)
	defer func() { op.end(ctx, err) }()

	id, err := readIdentity(publicKey, dataKey, opts)
	if err != nil {
		return EntryDataResponse{}, err
	}
	data, err := db.lookup(ctx, id, opts)
	if err != nil {
		return EntryDataResponse{}, err
	}
	return EntryDataResponse{Data: data}, nil
}

// SetEntryData stores data directly in the entry under dataKey. The
// deletion sentinel is rejected unless the options allow it.
func (db *DB) SetEntryData(ctx context.Context, privateKey, dataKey string, data []byte, opts SetEntryDataOptions) (resp EntryDataResponse, err error) {
	op, ctx := db.begin(ctx, "SetEntryData", dataKey)
	defer func() { op.end(ctx, err) }()

	if len(data) > skynet.MaxEntryDataSize {
		return EntryDataResponse{}, errcode.ErrorCodeEntryTooLarge.WithArgs(len(data), skynet.MaxEntryDataSize)
	}
	if !opts.AllowDeletionEntryData && isDeletionEntryData(data) {
		return EntryDataResponse{}, errcode.ErrorCodeDeletionEntryData.WithArgs()
	}
	id, err := writeIdentity(privateKey, dataKey, opts.EntryOptions)
	if err != nil {
		return EntryDataResponse{}, err
	}

	data = append([]byte(nil), data...)
	revision, err := db.commit(ctx, id, data, opts.EntryOptions)
	if err != nil {
		return EntryDataResponse{}, err
	}
	action := notifications.EventActionSet
	if isDeletionEntryData(data) {
		action = notifications.EventActionDelete
	}
	db.notify(ctx, action, "SetEntryData", id, revision, "")
	return EntryDataResponse{Data: data}, nil
}

// DeleteEntryData marks the entry under dataKey as deleted.
func (db *DB) DeleteEntryData(ctx context.Context, privateKey, dataKey string, opts EntryOptions) (err error) {
	op, ctx := db.begin(ctx, "DeleteEntryData", dataKey)
	defer func() { op.end(ctx, err) }()

	return db.deleteEntry(ctx, "DeleteEntryData", privateKey, dataKey, opts)
}

// SetDataLink points the entry under dataKey at an existing skylink.
func (db *DB) SetDataLink(ctx context.Context, privateKey, dataKey, dataLink string, opts EntryOptions) (err error) {
	op, ctx := db.begin(ctx, "SetDataLink", dataKey)
	defer func() { op.end(ctx, err) }()

	sl, err := skylink.Parse(dataLink)
	if err != nil {
		return errcode.ErrorCodeInvalidArgument.WithArgs("dataLink", err.Error())
	}
	id, err := writeIdentity(privateKey, dataKey, opts)
	if err != nil {
		return err
	}
	revision, err := db.commit(ctx, id, sl.Bytes(), opts)
	if err != nil {
		return err
	}
	db.notify(ctx, notifications.EventActionSet, "SetDataLink", id, revision, sl.URI())
	return nil
}

// GetEntryLink returns the v2 skylink resolving through the entry under
// dataKey. It does not touch the network.
func (db *DB) GetEntryLink(publicKey, dataKey string, opts EntryOptions) (string, error) {
	sl, err := registry.EntryLink(publicKey, dataKey, opts.HashedDataKeyHex)
	if err != nil {
		return "", err
	}
	return sl.URI(), nil
}
