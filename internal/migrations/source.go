// Package migrations enumerates the migration files of a connection and
// digests them into the key that validates cached schemas.
package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// File is one migration file
type File struct {
	// Name is the slash-separated path relative to the migrations directory
	Name    string
	Content []byte
}

// Source enumerates the migration files of a connection.
// A connection it knows nothing about has no files.
type Source interface {
	Files(connection string) ([]File, error)
}

// Static is a fixed, in-memory Source
type Static map[string][]File

// Files implements Source
func (s Static) Files(connection string) ([]File, error) {
	return sortedByName(s[connection]), nil
}

// DirSource reads migrations from one directory per connection
type DirSource struct {
	fs         afero.Fs
	dirs       map[string]string
	extensions []string
}

// Option configures a DirSource
type Option func(*DirSource)

// WithFs sets the filesystem to read from (default: the OS filesystem)
func WithFs(fs afero.Fs) Option {
	return func(s *DirSource) {
		s.fs = fs
	}
}

// WithExtensions limits the files considered to the given extensions, e.g. ".sql"
func WithExtensions(extensions ...string) Option {
	return func(s *DirSource) {
		s.extensions = nil
		for _, ext := range extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions = append(s.extensions, ext)
		}
	}
}

// NewDirSource maps connection names to migration directories
func NewDirSource(dirs map[string]string, opts ...Option) *DirSource {
	s := &DirSource{
		fs:   afero.NewOsFs(),
		dirs: make(map[string]string, len(dirs)),
	}
	for conn, dir := range dirs {
		s.dirs[conn] = dir
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Files walks the connection's directory recursively. A directory that does not
// exist yet holds no migrations.
func (s *DirSource) Files(connection string) ([]File, error) {
	root, ok := s.dirs[connection]
	if !ok {
		return nil, nil
	}

	var files []File
	err := afero.Walk(s.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() || !s.accepts(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := afero.ReadFile(s.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", path, err)
		}

		files = append(files, File{Name: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations for %s: %w", connection, err)
	}

	return sortedByName(files), nil
}

func (s *DirSource) accepts(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}
	return slices.Contains(s.extensions, strings.ToLower(filepath.Ext(path)))
}

func sortedByName(files []File) []File {
	out := slices.Clone(files)
	slices.SortFunc(out, func(a, b File) int { return strings.Compare(a.Name, b.Name) })
	return out
}
