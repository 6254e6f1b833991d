package cache

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	recordFile = "digest.json"
	tablesDir  = "tables"
	entryExt   = ".json"
)

func (c *Cache) connectionDir(connection string) string {
	return filepath.Join(c.root, escapeName(connection))
}

func (c *Cache) tablesDir(connection string) string {
	return filepath.Join(c.connectionDir(connection), tablesDir)
}

func (c *Cache) recordPath(connection string) string {
	return filepath.Join(c.connectionDir(connection), recordFile)
}

func (c *Cache) entryPath(connection, table string) string {
	return filepath.Join(c.tablesDir(connection), escapeName(table)+entryExt)
}

func (c *Cache) isConnectionDir(connection string) bool {
	for _, path := range []string{c.recordPath(connection), c.tablesDir(connection)} {
		if ok, _ := afero.Exists(c.fs, path); ok {
			return true
		}
	}
	return false
}

// escapeName makes a connection or table name safe to use as one path element.
// A leading dot is escaped too so names like ".." stay inside the cache.
func escapeName(name string) string {
	escaped := url.PathEscape(name)
	if strings.HasPrefix(escaped, ".") {
		escaped = "%2E" + escaped[1:]
	}
	return escaped
}

func unescapeName(escaped string) (string, bool) {
	name, err := url.PathUnescape(escaped)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

func tableFromFile(file string) (string, bool) {
	escaped, ok := strings.CutSuffix(file, entryExt)
	if !ok {
		return "", false
	}
	return unescapeName(escaped)
}

// writeAtomic writes data to a temporary file next to path and renames it into
// place, so readers see either the old content or the new one.
func writeAtomic(fs afero.Fs, path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = fs.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := fs.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
