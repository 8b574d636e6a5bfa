package portal

import (
	"context"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// StoredEntry is a registry entry as kept by a Store. It keeps everything
// needed to serve the entry back and to build its registry proof.
type StoredEntry struct {
	PublicKey     []byte `json:"publicKey"`
	HashedDataKey []byte `json:"hashedDataKey"`
	Data          []byte `json:"data"`
	Revision      uint64 `json:"revision"`
	Signature     []byte `json:"signature"`
}

// StoredFile is an uploaded file. Digest covers Data and is checked on every
// read.
type StoredFile struct {
	Data        []byte        `json:"data"`
	ContentType string        `json:"contentType"`
	Filename    string        `json:"filename"`
	Digest      digest.Digest `json:"digest"`
}

// Store persists the state of a portal. Entries are keyed by the hex entry
// id, files by the hex merkle root.
type Store interface {
	// GetEntry returns ErrorCodeEntryUnknown when nothing is stored.
	GetEntry(ctx context.Context, id string) (StoredEntry, error)

	// PutEntry stores entry unless the stored revision is equal or higher,
	// in which case it returns ErrorCodeRevisionTooLow. The comparison and
	// the write are atomic.
	PutEntry(ctx context.Context, id string, entry StoredEntry) error

	// GetFile returns ErrorCodeContentUnknown when nothing is stored.
	GetFile(ctx context.Context, root string) (StoredFile, error)

	// PutFile stores a file. Files are content addressed, so storing the
	// same root twice is a no-op.
	PutFile(ctx context.Context, root string, file StoredFile) error

	Close() error
}

// newStoredFile computes the digest of data.
func newStoredFile(data []byte, contentType, filename string) StoredFile {
	return StoredFile{
		Data:        data,
		ContentType: contentType,
		Filename:    filename,
		Digest:      digest.FromBytes(data),
	}
}

// verify checks that the file content still matches its digest.
func (f StoredFile) verify() error {
	if err := f.Digest.Validate(); err != nil {
		return err
	}
	verifier := f.Digest.Verifier()
	if _, err := verifier.Write(f.Data); err != nil {
		return err
	}
	if !verifier.Verified() {
		return fmt.Errorf("stored file does not match digest %s", f.Digest)
	}
	return nil
}

func checkRevision(existing StoredEntry, found bool, next uint64) error {
	if found && next <= existing.Revision {
		return errcode.ErrorCodeRevisionTooLow.WithArgs(existing.Revision)
	}
	return nil
}
