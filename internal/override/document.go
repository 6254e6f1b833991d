// Package override reads hand-authored override schemas. An override refines the
// schema inferred from the database: it can retype fields, add fields, and
// replace the primary key, foreign keys or indices.
package override

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/schemacache/internal/raw"
	"github.com/tordrt/schemacache/internal/schema"
	"github.com/tordrt/schemacache/internal/types"
)

// ErrInvalidOverride is returned for documents that decode but make no sense
var ErrInvalidOverride = errors.New("invalid override")

// document is the on-disk form shared by the YAML and TOML readers
type document struct {
	Source      string          `yaml:"source" toml:"source"`
	Fields      []fieldDoc      `yaml:"fields" toml:"fields"`
	PrimaryKey  []string        `yaml:"primary_key" toml:"primary_key"`
	ForeignKeys []foreignKeyDoc `yaml:"foreign_keys" toml:"foreign_keys"`
	Indices     []indexDoc      `yaml:"indices" toml:"indices"`
}

type fieldDoc struct {
	Name string `yaml:"name" toml:"name"`
	Type string `yaml:"type" toml:"type"`
	// Source is the column name when it differs from the field name
	Source            string         `yaml:"source" toml:"source"`
	Nullable          *bool          `yaml:"nullable" toml:"nullable"`
	Default           any            `yaml:"default" toml:"default"`
	DefaultExpression string         `yaml:"default_expression" toml:"default_expression"`
	CheckConstraints  []string       `yaml:"check_constraints" toml:"check_constraints"`
	AutoIncrement     bool           `yaml:"auto_increment" toml:"auto_increment"`
	Extra             map[string]any `yaml:"extra" toml:"extra"`
}

type foreignKeyDoc struct {
	Field string `yaml:"field" toml:"field"`
	// References is "table" or "table.column"
	References      string `yaml:"references" toml:"references"`
	ReferencedField string `yaml:"referenced_field" toml:"referenced_field"`
	Association     string `yaml:"association" toml:"association"`
	Name            string `yaml:"name" toml:"name"`
	OnDelete        string `yaml:"on_delete" toml:"on_delete"`
	OnUpdate        string `yaml:"on_update" toml:"on_update"`
}

type indexDoc struct {
	Name   string   `yaml:"name" toml:"name"`
	Fields []string `yaml:"fields" toml:"fields"`
	Unique bool     `yaml:"unique" toml:"unique"`
	Type   string   `yaml:"type" toml:"type"`
	Where  string   `yaml:"where" toml:"where"`
}

func (d *document) toSchema() (schema.Schema, error) {
	s := schema.Schema{Source: d.Source}

	seen := make(map[string]bool, len(d.Fields))
	for _, fd := range d.Fields {
		if fd.Name == "" {
			return schema.Schema{}, fmt.Errorf("%w: field without a name", ErrInvalidOverride)
		}
		if seen[fd.Name] {
			return schema.Schema{}, fmt.Errorf("%w: duplicate field %s", ErrInvalidOverride, fd.Name)
		}
		seen[fd.Name] = true

		field, err := fd.toField()
		if err != nil {
			return schema.Schema{}, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		s.Fields = append(s.Fields, field)
	}

	for _, name := range d.PrimaryKey {
		s.PrimaryKey.Fields = append(s.PrimaryKey.Fields, schema.Field{Name: schema.Symbol(name)})
	}

	for _, fd := range d.ForeignKeys {
		fk, err := fd.toForeignKey()
		if err != nil {
			return schema.Schema{}, fmt.Errorf("foreign key %s: %w", fd.Field, err)
		}
		s.ForeignKeys = append(s.ForeignKeys, fk)
	}

	for _, id := range d.Indices {
		if len(id.Fields) == 0 {
			return schema.Schema{}, fmt.Errorf("%w: index %s has no fields", ErrInvalidOverride, id.Name)
		}
		idx := schema.Index{Name: id.Name, Unique: id.Unique, Where: id.Where}
		if id.Type != "" {
			idx.Type = string(raw.ParseIndexType(id.Type))
		}
		for _, name := range id.Fields {
			idx.Fields = append(idx.Fields, schema.Field{Name: schema.Symbol(name)})
		}
		s.Indices.List = append(s.Indices.List, idx)
	}

	return s, nil
}

func (fd fieldDoc) toField() (schema.Field, error) {
	f := schema.Field{
		Name: schema.Symbol(fd.Name),
		Meta: schema.Meta{
			Source:           fd.Source,
			Nullable:         fd.Nullable,
			CheckConstraints: fd.CheckConstraints,
			AutoIncrement:    fd.AutoIncrement,
		},
	}

	if fd.Type != "" {
		t, err := types.Parse(fd.Type)
		if err != nil {
			return schema.Field{}, fmt.Errorf("%w: %w", ErrInvalidOverride, err)
		}
		f.Type = t
	}

	switch {
	case fd.Default != nil && fd.DefaultExpression != "":
		return schema.Field{}, fmt.Errorf("%w: both default and default_expression set", ErrInvalidOverride)
	case fd.DefaultExpression != "":
		f.Meta.Default = schema.Expression(fd.DefaultExpression)
	case fd.Default != nil:
		f.Meta.Default = normalizeValue(fd.Default)
	}

	if fd.Extra != nil {
		f.Meta.Extra = make(map[string]any, len(fd.Extra))
		for k, v := range fd.Extra {
			f.Meta.Extra[k] = normalizeValue(v)
		}
	}

	return f, nil
}

func (fd foreignKeyDoc) toForeignKey() (schema.ForeignKey, error) {
	if fd.Field == "" {
		return schema.ForeignKey{}, fmt.Errorf("%w: foreign key without a field", ErrInvalidOverride)
	}

	table, column, _ := strings.Cut(fd.References, ".")
	if fd.ReferencedField != "" {
		column = fd.ReferencedField
	}
	if column == "" {
		column = "id"
	}
	if table == "" {
		return schema.ForeignKey{}, fmt.Errorf("%w: invalid references %q", ErrInvalidOverride, fd.References)
	}

	association := fd.Association
	if association == "" {
		association = strings.TrimSuffix(fd.Field, "_id")
		if association == "" || association == fd.Field {
			association = table
		}
	}

	return schema.ForeignKey{
		Field:            schema.Symbol(fd.Field),
		ReferencedTable:  table,
		ReferencedField:  schema.Symbol(column),
		AssociationName:  schema.Symbol(association),
		Name:             fd.Name,
		Fields:           []schema.Symbol{schema.Symbol(fd.Field)},
		ReferencedFields: []schema.Symbol{schema.Symbol(column)},
		OnDelete:         string(raw.ParseAction(fd.OnDelete)),
		OnUpdate:         string(raw.ParseAction(fd.OnUpdate)),
	}, nil
}

// normalizeValue maps decoder output onto the value kinds schemas carry.
// YAML yields int and TOML int64; both become int64.
func normalizeValue(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
