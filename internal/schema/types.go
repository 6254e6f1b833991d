// Package schema is the normalized, engine-independent description of a table
// that consumers such as query builders and generators read.
package schema

import (
	"fmt"

	"github.com/tordrt/schemacache/internal/types"
)

// Symbol is an atom-like identifier such as a field or association name
type Symbol string

// Expression is a default value that is an SQL expression, e.g. now()
type Expression string

// Schema represents one table
type Schema struct {
	Source      string
	PrimaryKey  PrimaryKey
	ForeignKeys []ForeignKey
	Fields      []Field
	Indices     Indices
}

// Field represents a table column
type Field struct {
	Name Symbol
	Type types.CanonicalType
	Meta Meta
}

// Meta holds catalog-derived facts about a field.
// Nil or zero values mean "not known", which matters when merging.
type Meta struct {
	Source               string
	Nullable             *bool
	Default              any
	CheckConstraints     []string
	IsPrimaryKey         bool
	IsForeignKey         bool
	PrimaryKeyFieldCount int
	AutoIncrement        bool
	Extra                map[string]any
}

// PrimaryKey represents the primary key of a table
type PrimaryKey struct {
	Fields []Field
}

// Composite reports whether the key spans more than one field
func (pk PrimaryKey) Composite() bool {
	return len(pk.Fields) > 1
}

// Present reports whether the table has a primary key
func (pk PrimaryKey) Present() bool {
	return len(pk.Fields) > 0
}

// Names returns the key's field names in declared order
func (pk PrimaryKey) Names() []Symbol {
	names := make([]Symbol, len(pk.Fields))
	for i, f := range pk.Fields {
		names[i] = f.Name
	}
	return names
}

// ForeignKey represents a foreign key relationship. Field and ReferencedField are
// the first column pair of the constraint; Fields and ReferencedFields hold all of them.
type ForeignKey struct {
	Field            Symbol
	ReferencedTable  string
	ReferencedField  Symbol
	AssociationName  Symbol
	Name             string
	Fields           []Symbol
	ReferencedFields []Symbol
	OnDelete         string
	OnUpdate         string
}

// Composite reports whether the constraint spans more than one column
func (fk ForeignKey) Composite() bool {
	return len(fk.Fields) > 1
}

// Bool returns a pointer to b, for building Meta values
func Bool(b bool) *bool {
	return &b
}

// Field returns the field with the given name
func (s *Schema) Field(name Symbol) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns all field names in declared order
func (s *Schema) FieldNames() []Symbol {
	names := make([]Symbol, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// IsPrimaryKey reports whether name is part of the primary key
func (s *Schema) IsPrimaryKey(name Symbol) bool {
	for _, f := range s.PrimaryKey.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// IsForeignKey reports whether name is a column of some foreign key
func (s *Schema) IsForeignKey(name Symbol) bool {
	_, ok := s.ForeignKey(name)
	return ok
}

// ForeignKey returns the foreign key that name belongs to
func (s *Schema) ForeignKey(name Symbol) (ForeignKey, bool) {
	for _, fk := range s.ForeignKeys {
		if fk.Field == name {
			return fk, true
		}
		for _, f := range fk.Fields {
			if f == name {
				return fk, true
			}
		}
	}
	return ForeignKey{}, false
}

// Validate checks that field names are unique and that every key refers to a field
func (s *Schema) Validate() error {
	seen := make(map[Symbol]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Source)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %s", s.Source, f.Name)
		}
		seen[f.Name] = true
	}

	for _, f := range s.PrimaryKey.Fields {
		if !seen[f.Name] {
			return fmt.Errorf("schema %s: primary key field %s is not a field", s.Source, f.Name)
		}
	}

	for _, fk := range s.ForeignKeys {
		if !seen[fk.Field] {
			return fmt.Errorf("schema %s: foreign key field %s is not a field", s.Source, fk.Field)
		}
		for _, name := range fk.Fields {
			if !seen[name] {
				return fmt.Errorf("schema %s: foreign key field %s is not a field", s.Source, name)
			}
		}
	}

	for _, idx := range s.Indices.List {
		for _, f := range idx.Fields {
			if !seen[f.Name] {
				return fmt.Errorf("schema %s: index %s covers unknown field %s", s.Source, idx.Name, f.Name)
			}
		}
	}

	return nil
}
