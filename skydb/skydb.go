// Package skydb implements a versioned key-value store on top of the
// registry. Every value is a registry entry owned by a key pair; JSON values
// are uploaded as files and the entry stores the file's skylink.
//
// Writes are read-modify-write cycles serialized per entry by a revision
// cache, so concurrent writers through one DB never reuse a revision.
// Reads take no lock.
package skydb

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/keys"
	"github.com/skynetlabs/skynet/metrics"
	"github.com/skynetlabs/skynet/notifications"
	"github.com/skynetlabs/skynet/registry"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/registry/cache"
	"github.com/skynetlabs/skynet/skylink"
	"github.com/skynetlabs/skynet/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ComponentName prefixes the spans of this package.
	ComponentName = "skydb"

	// DefaultWriteTimeout bounds a write cycle once the entry lock is held.
	DefaultWriteTimeout = time.Minute
)

// DB runs SkyDB operations against injected registry and content
// capabilities.
type DB struct {
	registry   skynet.Registry
	uploader   skynet.Uploader
	downloader skynet.Downloader
	revisions  *cache.RevisionNumberCache
	listener   notifications.Listener

	writeTimeout time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithRevisionCache shares a revision cache between DBs. All writers of an
// entry must share one cache for their writes to be serialized.
func WithRevisionCache(c *cache.RevisionNumberCache) Option {
	return func(db *DB) {
		db.revisions = c
	}
}

// WithListener reports committed writes to l.
func WithListener(l notifications.Listener) Option {
	return func(db *DB) {
		db.listener = l
	}
}

// WithWriteTimeout bounds how long a write may hold the entry lock. The
// caller's context stops applying once the lock is acquired, so this is
// what keeps a stalled portal from blocking other writers of the entry.
func WithWriteTimeout(d time.Duration) Option {
	return func(db *DB) {
		if d > 0 {
			db.writeTimeout = d
		}
	}
}

// New returns a DB. Without WithRevisionCache it gets a private cache.
func New(reg skynet.Registry, up skynet.Uploader, down skynet.Downloader, options ...Option) *DB {
	db := &DB{
		registry:   reg,
		uploader:   up,
		downloader: down,
		listener:   notifications.NopListener,

		writeTimeout: DefaultWriteTimeout,
	}
	for _, o := range options {
		o(db)
	}
	if db.revisions == nil {
		db.revisions = cache.New()
	}
	return db
}

// RevisionCache returns the cache serializing this DB's writes.
func (db *DB) RevisionCache() *cache.RevisionNumberCache {
	return db.revisions
}

// identity resolves the keys of an operation. It is the first thing every
// exported operation does, so reads, writes and the cache all address the
// entry by the same hashed data key.
type identity struct {
	publicKey     string
	privateKey    string
	hashedDataKey string
}

func readIdentity(publicKey, dataKey string, opts EntryOptions) (identity, error) {
	hashed, err := registry.DeriveEntryIdentity(publicKey, dataKey, opts.HashedDataKeyHex)
	if err != nil {
		return identity{}, err
	}
	return identity{publicKey: publicKey, hashedDataKey: hashed}, nil
}

func writeIdentity(privateKey, dataKey string, opts EntryOptions) (identity, error) {
	publicKey, err := keys.PublicKeyFromPrivateKey(privateKey)
	if err != nil {
		return identity{}, err
	}
	id, err := readIdentity(publicKey, dataKey, opts)
	if err != nil {
		return identity{}, err
	}
	id.privateKey = privateKey
	return id, nil
}

// lookup returns the entry data, or nil when the entry does not exist or
// has been deleted.
func (db *DB) lookup(ctx context.Context, id identity, opts EntryOptions) ([]byte, error) {
	signed, err := db.registry.GetEntry(ctx, id.publicKey, id.hashedDataKey, opts.getEntryOptions())
	if err != nil {
		return nil, err
	}
	if !signed.Found() || isDeletionEntryData(signed.Entry.Data) {
		return nil, nil
	}
	return signed.Entry.Data, nil
}

// commit writes data as the next revision of the entry. The cache lock is
// held from reading the current revision until the write is acknowledged,
// and the cached revision only advances once it has been. A write that
// runs out of time may still have landed, so it leaves the cache cold.
func (db *DB) commit(ctx context.Context, id identity, data []byte, opts EntryOptions) (uint64, error) {
	var revision uint64
	err := db.revisions.WithCachedEntryLock(ctx, id.publicKey, id.hashedDataKey, true, func(cached *cache.CachedRevisionEntry) error {
		// Once the lock is held the cycle is bounded by the write timeout
		// only, so an abandoned caller cannot leave the cache behind the
		// network.
		ctx, cancel := context.WithTimeout(dcontext.DetachedContext(ctx), db.writeTimeout)
		defer cancel()

		next, err := db.nextRevision(ctx, id, cached, opts)
		if err != nil {
			return err
		}

		entry := skynet.RegistryEntry{DataKey: id.hashedDataKey, Data: data, Revision: next}
		signature, err := registry.Sign(id.privateKey, entry, true)
		if err != nil {
			return err
		}
		if err := db.registry.PostSignedEntry(ctx, id.publicKey, entry, signature, opts.setEntryOptions()); err != nil {
			if ctx.Err() != nil {
				cached.Reset()
			}
			return err
		}

		cached.Set(next)
		revision = next
		return nil
	})
	return revision, err
}

// nextRevision trusts a warm cache and otherwise asks the network.
func (db *DB) nextRevision(ctx context.Context, id identity, cached *cache.CachedRevisionEntry, opts EntryOptions) (uint64, error) {
	if cached.Known {
		return increment(cached.Revision)
	}
	signed, err := db.registry.GetEntry(ctx, id.publicKey, id.hashedDataKey, opts.getEntryOptions())
	if err != nil {
		return 0, err
	}
	if !signed.Found() {
		return 0, nil
	}
	return increment(signed.Entry.Revision)
}

func increment(revision uint64) (uint64, error) {
	if revision == skynet.MaxRevision {
		return 0, errcode.ErrorCodeMaxRevision.WithArgs()
	}
	return revision + 1, nil
}

func isDeletionEntryData(data []byte) bool {
	return bytes.Equal(data, skynet.DeletionEntryData)
}

// dataLinkFromEntry decodes entry data that holds a skylink.
func dataLinkFromEntry(data []byte) (skylink.Skylink, error) {
	sl, err := skylink.FromBytes(data)
	if err != nil {
		return skylink.Skylink{}, fmt.Errorf("entry data does not hold a skylink: %w", err)
	}
	return sl, nil
}

// notify reports a committed write. The write already succeeded, so
// listener failures are only logged.
func (db *DB) notify(ctx context.Context, action, operation string, id identity, revision uint64, dataLink string) {
	target := notifications.Target{
		PublicKey:     id.publicKey,
		HashedDataKey: id.hashedDataKey,
		Revision:      revision,
		Operation:     operation,
		DataLink:      dataLink,
	}
	var err error
	if action == notifications.EventActionDelete {
		err = db.listener.EntryDeleted(ctx, target)
	} else {
		err = db.listener.EntrySet(ctx, target)
	}
	if err != nil {
		dcontext.GetLogger(ctx).WithError(err).Warnf("failed to publish %s event", action)
	}
}

// operation wraps one exported call with a span, metrics and a logger.
type operation struct {
	name  string
	start time.Time
	span  trace.Span
}

func (db *DB) begin(ctx context.Context, name, dataKey string) (*operation, context.Context) {
	span, ctx := tracing.StartSpan(ctx, fmt.Sprintf("%s:%s", ComponentName, name),
		trace.WithAttributes(attribute.String("dataKey", dataKey)))
	ctx = dcontext.WithLogger(ctx, dcontext.GetLoggerWithField(ctx, "skydb.operation", name))
	return &operation{name: name, start: time.Now(), span: span}, ctx
}

func (op *operation) end(ctx context.Context, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		tracing.RecordError(op.span, err)
		dcontext.GetLogger(ctx).WithError(err).Debug("operation failed")
	}
	metrics.SkyDBOperations.WithValues(op.name, outcome).Inc(1)
	metrics.SkyDBLatency.WithValues(op.name).UpdateSince(op.start)
	tracing.StopSpan(op.span)
}
