// Package cache persists compiled schemas on disk, keyed by connection and
// table, and invalidates them when the connection's migrations change.
//
// Layout under the root directory:
//
//	<connection>/digest.json         last migration digest seen for the connection
//	<connection>/tables/<table>.json one entry per table
//
// Every failure inside the cache is logged and reported as a miss; callers never
// see cache errors, only recompilations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tordrt/schemacache/internal/migrations"
	"github.com/tordrt/schemacache/internal/schema"
)

// formatVersion is bumped whenever the entry encoding changes; older entries are misses
const formatVersion = 1

type entryDoc struct {
	Version    int       `json:"version"`
	Connection string    `json:"connection"`
	Table      string    `json:"table"`
	Digest     string    `json:"digest"`
	Schema     schemaDoc `json:"schema"`
}

type recordDoc struct {
	Version    int    `json:"version"`
	Connection string `json:"connection"`
	Digest     string `json:"digest"`
}

// CompileFunc produces the schema of a table on a cache miss
type CompileFunc func(ctx context.Context, table string) (schema.Schema, error)

// Cache is a persisted schema cache. It is safe for concurrent use; concurrent
// writers of the same entry race and the last one wins.
type Cache struct {
	root   string
	source migrations.Source
	fs     afero.Fs
	log    *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Cache
type Option func(*Cache)

// WithFs sets the filesystem entries are stored on (default: the OS filesystem)
func WithFs(fs afero.Fs) Option {
	return func(c *Cache) {
		c.fs = fs
	}
}

// WithLogger sets the logger cache failures are reported to
func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		c.log = log
	}
}

// New creates a cache rooted at root. source supplies the migration files whose
// digest validates entries; nil means no connection has migrations.
func New(root string, source migrations.Source, opts ...Option) *Cache {
	if source == nil {
		source = migrations.Static{}
	}
	c := &Cache{
		root:   root,
		source: source,
		fs:     afero.NewOsFs(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the directory the cache is stored in
func (c *Cache) Root() string {
	return c.root
}

// Get returns the cached schema of table, or nil when there is no fresh entry.
// A stale entry is deleted.
func (c *Cache) Get(connection, table string) *schema.Schema {
	digest, ok := c.currentDigest(connection)
	if !ok {
		return nil
	}
	return c.get(connection, table, digest)
}

// Put stores s for table under the current migration digest and reports whether
// the entry was written.
func (c *Cache) Put(connection, table string, s schema.Schema) bool {
	digest, ok := c.currentDigest(connection)
	if !ok {
		return false
	}
	return c.put(connection, table, s, digest)
}

// WarmUp returns the schema of every table, from the cache when fresh and from
// compile otherwise. A failing table does not stop the batch; its Result carries
// the error. The migration digest is computed once for the whole batch.
func (c *Cache) WarmUp(ctx context.Context, connection string, tables []string, compile CompileFunc) Results {
	digest, cacheable := c.currentDigest(connection)

	results := make(Results, 0, len(tables))
	for _, table := range tables {
		results = append(results, c.warm(ctx, connection, table, digest, cacheable, compile))
	}
	return results
}

func (c *Cache) warm(ctx context.Context, connection, table, digest string, cacheable bool, compile CompileFunc) Result {
	if err := ctx.Err(); err != nil {
		return Result{Table: table, Err: err}
	}

	if cacheable {
		if s := c.get(connection, table, digest); s != nil {
			return Result{Table: table, Schema: s, Cached: true}
		}
	}

	s, err := compile(ctx, table)
	if err != nil {
		return Result{Table: table, Err: err}
	}
	if cacheable {
		c.put(connection, table, s, digest)
	}
	return Result{Table: table, Schema: &s}
}

// Refresh drops the entries of tables and warms them again. With no tables it
// refreshes every table currently cached for the connection.
func (c *Cache) Refresh(ctx context.Context, connection string, tables []string, compile CompileFunc) Results {
	if len(tables) == 0 {
		tables = c.Tables(connection)
	}
	for _, table := range tables {
		c.remove(connection, table)
	}
	return c.WarmUp(ctx, connection, tables, compile)
}

// Clear deletes every entry of a connection
func (c *Cache) Clear(connection string) error {
	if err := c.fs.RemoveAll(c.connectionDir(connection)); err != nil {
		return fmt.Errorf("failed to clear cache for %s: %w", connection, err)
	}
	c.log.Debug("cleared connection cache", zap.String("connection", connection))
	return nil
}

// ClearAll deletes the entries of every connection. Only directories laid out by
// the cache are removed, so a misconfigured root is not wiped.
func (c *Cache) ClearAll() error {
	var errs []error
	for _, connection := range c.Connections() {
		if err := c.Clear(connection); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tables lists the tables with an entry for connection, fresh or not
func (c *Cache) Tables(connection string) []string {
	entries, err := afero.ReadDir(c.fs, c.tablesDir(connection))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("failed to list cached tables", zap.String("connection", connection), zap.Error(err))
		}
		return nil
	}

	var tables []string
	for _, entry := range entries {
		if name, ok := tableFromFile(entry.Name()); ok && !entry.IsDir() {
			tables = append(tables, name)
		}
	}
	return tables
}

// Connections lists the connections that have a cache directory
func (c *Cache) Connections() []string {
	entries, err := afero.ReadDir(c.fs, c.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("failed to list cache root", zap.String("root", c.root), zap.Error(err))
		}
		return nil
	}

	var connections []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		connection, ok := unescapeName(entry.Name())
		if !ok || !c.isConnectionDir(connection) {
			continue
		}
		connections = append(connections, connection)
	}
	return connections
}

// Close releases the cache. Later calls behave as if nothing were cached and
// nothing can be stored.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cache) currentDigest(connection string) (string, bool) {
	if c.isClosed() {
		return "", false
	}
	digest, err := migrations.DigestOf(c.source, connection)
	if err != nil {
		c.log.Warn("failed to digest migrations, bypassing cache",
			zap.String("connection", connection), zap.Error(err))
		return "", false
	}
	return digest, true
}

func (c *Cache) get(connection, table, digest string) *schema.Schema {
	if c.isClosed() {
		return nil
	}
	c.sweep(connection, digest)

	path := c.entryPath(connection, table)
	log := c.log.With(zap.String("connection", connection), zap.String("table", table))

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed to read cache entry", zap.Error(err))
		}
		log.Debug("cache miss")
		return nil
	}

	var entry entryDoc
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn("discarding unreadable cache entry", zap.Error(err))
		c.remove(connection, table)
		return nil
	}
	if entry.Version != formatVersion || entry.Digest != digest || entry.Connection != connection || entry.Table != table {
		log.Debug("discarding stale cache entry", zap.String("entry_digest", entry.Digest), zap.String("digest", digest))
		c.remove(connection, table)
		return nil
	}

	s, err := decodeSchema(entry.Schema)
	if err != nil {
		log.Warn("discarding undecodable cache entry", zap.Error(err))
		c.remove(connection, table)
		return nil
	}

	log.Debug("cache hit")
	return &s
}

func (c *Cache) put(connection, table string, s schema.Schema, digest string) bool {
	if c.isClosed() {
		return false
	}
	c.sweep(connection, digest)

	log := c.log.With(zap.String("connection", connection), zap.String("table", table))

	doc, err := encodeSchema(s)
	if err != nil {
		log.Warn("failed to encode schema", zap.Error(err))
		return false
	}
	data, err := json.Marshal(entryDoc{
		Version:    formatVersion,
		Connection: connection,
		Table:      table,
		Digest:     digest,
		Schema:     doc,
	})
	if err != nil {
		log.Warn("failed to encode cache entry", zap.Error(err))
		return false
	}

	if err := writeAtomic(c.fs, c.entryPath(connection, table), data); err != nil {
		log.Warn("failed to write cache entry", zap.Error(err))
		return false
	}
	return true
}

// sweep deletes every entry of a connection whose recorded digest differs from
// digest, then records digest as the last one seen.
func (c *Cache) sweep(connection, digest string) {
	log := c.log.With(zap.String("connection", connection))

	data, err := afero.ReadFile(c.fs, c.recordPath(connection))
	switch {
	case err == nil:
		var record recordDoc
		if jsonErr := json.Unmarshal(data, &record); jsonErr == nil && record.Version == formatVersion && record.Digest == digest {
			return
		}
		log.Debug("migrations changed, sweeping cached tables")
		if err := c.fs.RemoveAll(c.tablesDir(connection)); err != nil {
			log.Warn("failed to sweep stale entries", zap.Error(err))
			return
		}
	case !errors.Is(err, fs.ErrNotExist):
		log.Warn("failed to read digest record", zap.Error(err))
		return
	}

	data, err = json.Marshal(recordDoc{Version: formatVersion, Connection: connection, Digest: digest})
	if err != nil {
		log.Warn("failed to encode digest record", zap.Error(err))
		return
	}
	if err := writeAtomic(c.fs, c.recordPath(connection), data); err != nil {
		log.Warn("failed to write digest record", zap.Error(err))
	}
}

func (c *Cache) remove(connection, table string) {
	err := c.fs.Remove(c.entryPath(connection, table))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.Warn("failed to remove cache entry",
			zap.String("connection", connection), zap.String("table", table), zap.Error(err))
	}
}
