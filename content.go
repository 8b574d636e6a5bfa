package skynet

import (
	"context"
)

// UploadResult describes content stored on a portal.
type UploadResult struct {
	// Skylink is the content identifier, formatted with the sia:// prefix.
	Skylink    string `json:"skylink"`
	MerkleRoot string `json:"merkleroot"`
	Bitfield   uint16 `json:"bitfield"`
}

// Content is the payload behind a skylink.
type Content struct {
	Data        []byte
	ContentType string

	// Skylink is the v1 skylink the content was served from. For v2 links
	// it is the link the registry proof resolved to.
	Skylink string
}

// Uploader stores immutable content.
type Uploader interface {
	UploadContent(ctx context.Context, data []byte, filename string) (UploadResult, error)
}

// Downloader fetches immutable content by skylink.
type Downloader interface {
	FetchContent(ctx context.Context, skylink string) (Content, error)
}
