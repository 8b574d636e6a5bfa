package skydb

import (
	"context"
)

// RawBytesResponse is the result of GetRawBytes. Data is nil when the entry
// was not found or was deleted.
type RawBytesResponse struct {
	Data     []byte
	DataLink string
}

// GetRawBytes downloads the file the entry under dataKey points at without
// interpreting it.
func (db *DB) GetRawBytes(ctx context.Context, publicKey, dataKey string, opts EntryOptions) (resp RawBytesResponse, err error) {
	op, ctx := db.begin(ctx, "GetRawBytes", dataKey)
	defer func() { op.end(ctx, err) }()

	id, err := readIdentity(publicKey, dataKey, opts)
	if err != nil {
		return RawBytesResponse{}, err
	}
	data, err := db.lookup(ctx, id, opts)
	if err != nil || data == nil {
		return RawBytesResponse{}, err
	}
	dataLink, err := dataLinkFromEntry(data)
	if err != nil {
		return RawBytesResponse{}, err
	}
	content, err := db.downloader.FetchContent(ctx, dataLink.String())
	if err != nil {
		return RawBytesResponse{}, err
	}
	return RawBytesResponse{Data: content.Data, DataLink: dataLink.URI()}, nil
}
