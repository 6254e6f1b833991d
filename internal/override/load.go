package override

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemacache/internal/schema"
)

// Format is an override document syntax
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML
var ErrUnsupportedFormat = errors.New("unsupported override format")

// extensions lists the recognized file extensions in lookup order
var extensions = []string{".yaml", ".yml", ".toml"}

// FormatOf picks the format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads the override document at path
func Load(fs afero.Fs, path string) (schema.Schema, error) {
	format, err := FormatOf(path)
	if err != nil {
		return schema.Schema{}, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to read override %s: %w", path, err)
	}
	s, err := Decode(data, format)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to load override %s: %w", path, err)
	}
	return s, nil
}

// Decode parses an override document. Unknown keys are rejected so typos do not
// silently leave a field un-overridden.
func Decode(data []byte, format Format) (schema.Schema, error) {
	var doc document

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return schema.Schema{}, fmt.Errorf("yaml: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return schema.Schema{}, fmt.Errorf("toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, key := range undecoded {
				keys[i] = key.String()
			}
			return schema.Schema{}, fmt.Errorf("%w: unknown keys %s", ErrInvalidOverride, strings.Join(keys, ", "))
		}
	default:
		return schema.Schema{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return doc.toSchema()
}

// Dir finds override files named after their table in one directory
type Dir struct {
	fs   afero.Fs
	path string
}

// NewDir returns a Dir over path. An empty path never has overrides.
func NewDir(fs afero.Fs, path string) Dir {
	return Dir{fs: fs, path: path}
}

// Lookup returns the override of table, or nil when the directory has none.
// The first of <table>.yaml, <table>.yml and <table>.toml that exists wins.
func (d Dir) Lookup(table string) (*schema.Schema, error) {
	if d.path == "" || d.fs == nil {
		return nil, nil
	}

	for _, ext := range extensions {
		path := filepath.Join(d.path, table+ext)
		if _, err := d.fs.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to stat override %s: %w", path, err)
		}

		s, err := Load(d.fs, path)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}
	return nil, nil
}
