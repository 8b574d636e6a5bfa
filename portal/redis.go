package portal

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/opencontainers/go-digest"
	"github.com/redis/go-redis/v9"
	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// maxEntryTxRetries bounds the optimistic transaction of PutEntry.
const maxEntryTxRetries = 10

// redisStore keeps entries and files in redis hashes. Entry writes run in a
// WATCH/MULTI transaction so the revision check and the write are atomic
// across portal instances.
type redisStore struct {
	pool   redis.UniversalClient
	prefix string
}

// NewRedisStore returns a Store backed by pool. Keys are prefixed with
// prefix, so several portals can share one database.
func NewRedisStore(pool redis.UniversalClient, prefix string) Store {
	return &redisStore{pool: pool, prefix: prefix}
}

func (rs *redisStore) entryKey(id string) string {
	return rs.prefix + "entry::" + id
}

func (rs *redisStore) fileKey(root string) string {
	return rs.prefix + "file::" + root
}

func (rs *redisStore) GetEntry(ctx context.Context, id string) (StoredEntry, error) {
	return rs.getEntry(ctx, rs.pool, id)
}

func (rs *redisStore) getEntry(ctx context.Context, c redis.Cmdable, id string) (StoredEntry, error) {
	reply, err := c.HMGet(ctx, rs.entryKey(id), "publickey", "datakey", "data", "revision", "signature").Result()
	if err != nil {
		return StoredEntry{}, err
	}
	if len(reply) < 5 || reply[0] == nil || reply[3] == nil {
		return StoredEntry{}, errcode.ErrorCodeEntryUnknown
	}

	fields := make([]string, len(reply))
	for i, v := range reply {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return StoredEntry{}, fmt.Errorf("entry field %d is not a string", i)
		}
		fields[i] = s
	}
	revision, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return StoredEntry{}, err
	}
	return StoredEntry{
		PublicKey:     []byte(fields[0]),
		HashedDataKey: []byte(fields[1]),
		Data:          []byte(fields[2]),
		Revision:      revision,
		Signature:     []byte(fields[4]),
	}, nil
}

func (rs *redisStore) PutEntry(ctx context.Context, id string, entry StoredEntry) error {
	key := rs.entryKey(id)
	txf := func(tx *redis.Tx) error {
		existing, err := rs.getEntry(ctx, tx, id)
		found := err == nil
		if err != nil && !errors.Is(err, errcode.ErrorCodeEntryUnknown) {
			return err
		}
		if err := checkRevision(existing, found, entry.Revision); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"publickey", entry.PublicKey,
				"datakey", entry.HashedDataKey,
				"data", entry.Data,
				"revision", strconv.FormatUint(entry.Revision, 10),
				"signature", entry.Signature)
			return nil
		})
		return err
	}

	for i := 0; i < maxEntryTxRetries; i++ {
		err := rs.pool.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("entry %s: too many concurrent writes", id)
}

func (rs *redisStore) GetFile(ctx context.Context, root string) (StoredFile, error) {
	reply, err := rs.pool.HMGet(ctx, rs.fileKey(root), "data", "contenttype", "filename", "digest").Result()
	if err != nil {
		return StoredFile{}, err
	}
	if len(reply) < 4 || reply[0] == nil || reply[3] == nil {
		return StoredFile{}, errcode.ErrorCodeContentUnknown
	}

	var file StoredFile
	data, ok := reply[0].(string)
	if !ok {
		return StoredFile{}, fmt.Errorf("file data is not a string")
	}
	file.Data = []byte(data)
	if ct, ok := reply[1].(string); ok {
		file.ContentType = ct
	}
	if name, ok := reply[2].(string); ok {
		file.Filename = name
	}
	dgst, ok := reply[3].(string)
	if !ok {
		return StoredFile{}, fmt.Errorf("file digest is not a string")
	}
	file.Digest = digest.Digest(dgst)
	return file, nil
}

func (rs *redisStore) PutFile(ctx context.Context, root string, file StoredFile) error {
	key := rs.fileKey(root)
	exists, err := rs.pool.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}
	return rs.pool.HSet(ctx, key,
		"data", file.Data,
		"contenttype", file.ContentType,
		"filename", file.Filename,
		"digest", file.Digest.String()).Err()
}

func (rs *redisStore) Close() error {
	return rs.pool.Close()
}
