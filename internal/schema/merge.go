package schema

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrFieldNameMismatch is returned when asked to merge two different fields.
// It signals caller misuse and should not be ignored.
var ErrFieldNameMismatch = errors.New("field name mismatch")

// Merge combines an inferred schema with a hand-authored override.
//
// Fields are merged by name; fields found on one side only are kept as they are.
// The override's primary key, foreign keys and indices replace the inferred ones
// when non-empty.
func Merge(inferred, override Schema) (Schema, error) {
	out := Schema{Source: inferred.Source}
	if override.Source != "" {
		out.Source = override.Source
	}

	overrideFields := make(map[Symbol]Field, len(override.Fields))
	for _, f := range override.Fields {
		overrideFields[f.Name] = f
	}

	merged := make(map[Symbol]bool, len(override.Fields))
	for _, f := range inferred.Fields {
		o, ok := overrideFields[f.Name]
		if !ok {
			out.Fields = append(out.Fields, f)
			continue
		}
		field, err := MergeField(f, o)
		if err != nil {
			return Schema{}, err
		}
		out.Fields = append(out.Fields, field)
		merged[f.Name] = true
	}
	for _, o := range override.Fields {
		if !merged[o.Name] {
			out.Fields = append(out.Fields, o)
			merged[o.Name] = true
		}
	}

	pkNames := inferred.PrimaryKey.Names()
	if override.PrimaryKey.Present() {
		pkNames = override.PrimaryKey.Names()
		out.markPrimaryKey(pkNames)
	}
	out.PrimaryKey = PrimaryKey{Fields: out.resolve(pkNames)}

	out.ForeignKeys = slices.Clone(inferred.ForeignKeys)
	if len(override.ForeignKeys) > 0 {
		out.ForeignKeys = slices.Clone(override.ForeignKeys)
		out.markForeignKeys()
	}

	indices := inferred.Indices.List
	if override.Indices.Count() > 0 {
		indices = override.Indices.List
	}
	for _, idx := range indices {
		names := make([]Symbol, len(idx.Fields))
		for i, f := range idx.Fields {
			names[i] = f.Name
		}
		idx.Fields = out.resolve(names)
		out.Indices.List = append(out.Indices.List, idx)
	}

	return out, nil
}

// MergeField merges one field. The override's type and any metadata it sets win;
// metadata only the inferred side knows is preserved.
func MergeField(inferred, override Field) (Field, error) {
	if inferred.Name != override.Name {
		return Field{}, fmt.Errorf("%w: cannot merge %s into %s", ErrFieldNameMismatch, override.Name, inferred.Name)
	}

	out := Field{Name: inferred.Name, Type: inferred.Type}
	if !override.Type.IsZero() {
		out.Type = override.Type
	}
	out.Meta = mergeMeta(inferred.Meta, override.Meta)

	// A catalog default spelled as a plain string is not a valid member of an
	// enum the override introduces. Defaults the override sets itself are kept,
	// as are expressions and non-string literals.
	if override.Type.IsEnum() && !inferred.Type.Equal(override.Type) && override.Meta.Default == nil {
		if !validEnumDefault(out.Meta.Default, override) {
			out.Meta.Default = nil
		}
	}

	return out, nil
}

func validEnumDefault(def any, override Field) bool {
	switch v := def.(type) {
	case string:
		return false
	case Symbol:
		return override.Type.HasValue(string(v))
	default:
		return true
	}
}

func mergeMeta(inferred, override Meta) Meta {
	out := inferred
	out.CheckConstraints = slices.Clone(inferred.CheckConstraints)

	if override.Source != "" {
		out.Source = override.Source
	}
	if override.Nullable != nil {
		out.Nullable = Bool(*override.Nullable)
	}
	if override.Default != nil {
		out.Default = override.Default
	}
	if override.CheckConstraints != nil {
		out.CheckConstraints = slices.Clone(override.CheckConstraints)
	}
	if override.PrimaryKeyFieldCount > 0 {
		out.PrimaryKeyFieldCount = override.PrimaryKeyFieldCount
	}
	out.IsPrimaryKey = inferred.IsPrimaryKey || override.IsPrimaryKey
	out.IsForeignKey = inferred.IsForeignKey || override.IsForeignKey
	out.AutoIncrement = inferred.AutoIncrement || override.AutoIncrement

	if inferred.Extra != nil || override.Extra != nil {
		out.Extra = make(map[string]any, len(inferred.Extra)+len(override.Extra))
		maps.Copy(out.Extra, inferred.Extra)
		for k, v := range override.Extra {
			if v != nil {
				out.Extra[k] = v
			}
		}
	}

	return out
}

// resolve returns the schema's fields with the given names, in that order.
// Names without a field are kept as bare fields so Validate can report them.
func (s *Schema) resolve(names []Symbol) []Field {
	var fields []Field
	for _, name := range names {
		if f, ok := s.Field(name); ok {
			fields = append(fields, f)
		} else {
			fields = append(fields, Field{Name: name})
		}
	}
	return fields
}

func (s *Schema) markPrimaryKey(names []Symbol) {
	for i := range s.Fields {
		s.Fields[i].Meta.IsPrimaryKey = slices.Contains(names, s.Fields[i].Name)
		s.Fields[i].Meta.PrimaryKeyFieldCount = 0
		if s.Fields[i].Meta.IsPrimaryKey {
			s.Fields[i].Meta.PrimaryKeyFieldCount = len(names)
		}
	}
}

func (s *Schema) markForeignKeys() {
	for i := range s.Fields {
		s.Fields[i].Meta.IsForeignKey = false
	}
	for _, fk := range s.ForeignKeys {
		for i := range s.Fields {
			if s.Fields[i].Name == fk.Field || slices.Contains(fk.Fields, s.Fields[i].Name) {
				s.Fields[i].Meta.IsForeignKey = true
			}
		}
	}
}
