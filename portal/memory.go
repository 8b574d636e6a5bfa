package portal

import (
	"context"
	"sync"

	"github.com/skynetlabs/skynet/registry/api/errcode"
)

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]StoredEntry
	files   map[string]StoredFile
}

// NewMemoryStore returns a Store that keeps everything in process memory.
func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[string]StoredEntry),
		files:   make(map[string]StoredFile),
	}
}

func (ms *memoryStore) GetEntry(ctx context.Context, id string) (StoredEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entry, ok := ms.entries[id]
	if !ok {
		return StoredEntry{}, errcode.ErrorCodeEntryUnknown
	}
	return entry, nil
}

func (ms *memoryStore) PutEntry(ctx context.Context, id string, entry StoredEntry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	existing, ok := ms.entries[id]
	if err := checkRevision(existing, ok, entry.Revision); err != nil {
		return err
	}
	ms.entries[id] = entry
	return nil
}

func (ms *memoryStore) GetFile(ctx context.Context, root string) (StoredFile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	file, ok := ms.files[root]
	if !ok {
		return StoredFile{}, errcode.ErrorCodeContentUnknown
	}
	return file, nil
}

func (ms *memoryStore) PutFile(ctx context.Context, root string, file StoredFile) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.files[root]; !ok {
		ms.files[root] = file
	}
	return nil
}

func (ms *memoryStore) Close() error {
	return nil
}
