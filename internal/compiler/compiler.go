// Package compiler turns a raw table into a normalized schema.
package compiler

import (
	"slices"
	"strings"

	"github.com/tordrt/schemacache/internal/raw"
	"github.com/tordrt/schemacache/internal/schema"
	"github.com/tordrt/schemacache/internal/types"
)

// DefaultAssociationSuffixes are stripped from a foreign key field to name its association
var DefaultAssociationSuffixes = []string{"_id"}

// Compiler compiles raw tables. The zero value is not usable; use New.
type Compiler struct {
	suffixes []string
}

// Option configures a Compiler
type Option func(*Compiler)

// WithAssociationSuffixes replaces the suffixes stripped to derive association names.
// The first matching suffix wins.
func WithAssociationSuffixes(suffixes ...string) Option {
	return func(c *Compiler) {
		c.suffixes = slices.Clone(suffixes)
	}
}

// New creates a compiler
func New(opts ...Option) *Compiler {
	c := &Compiler{suffixes: DefaultAssociationSuffixes}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the schema of t. It is a pure function of t.
func (c *Compiler) Compile(t *raw.Table) schema.Schema {
	v := &visitor{compiler: c, engine: t.Engine}
	for _, n := range raw.Nodes(t) {
		v.visit(n)
	}
	return v.out
}

// visitor carries classification state between nodes. Nodes arrive in the
// order raw.Nodes guarantees, so primary key and foreign key membership are
// known before any column is turned into a field.
type visitor struct {
	compiler *Compiler
	engine   raw.Engine
	out      schema.Schema

	pkNames   []string
	pkSet     map[string]bool
	pkFlagged []string
	fkSet     map[string]bool
	fields    map[string]schema.Field
}

func (v *visitor) visit(n raw.Node) {
	switch n := n.(type) {
	case *raw.Table:
		v.visitTable(n)
	case raw.PrimaryKey:
		v.visitPrimaryKey(n)
	case raw.Column:
		v.visitColumn(n)
	case raw.ForeignKey:
		v.visitForeignKey(n)
	case raw.Index:
		v.visitIndex(n)
	}
}

func (v *visitor) visitTable(t *raw.Table) {
	v.out.Source = t.Name
	v.fields = make(map[string]schema.Field, len(t.Columns))
	v.fkSet = make(map[string]bool)
	for _, col := range t.Columns {
		if col.IsPrimaryKey {
			v.pkFlagged = append(v.pkFlagged, col.Name)
		}
		if col.IsForeignKey {
			v.fkSet[col.Name] = true
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, col := range fk.Columns {
			v.fkSet[col] = true
		}
	}
}

// visitPrimaryKey records the key's columns in declared order. Engines that
// only flag key columns individually fall back to those flags in column order.
func (v *visitor) visitPrimaryKey(pk raw.PrimaryKey) {
	names := v.pkFlagged
	if len(pk.Columns) > 0 {
		names = make([]string, len(pk.Columns))
		for i, col := range pk.Columns {
			names[i] = col.Name
		}
	}

	v.pkSet = make(map[string]bool, len(names))
	for _, name := range names {
		if !v.pkSet[name] {
			v.pkNames = append(v.pkNames, name)
		}
		v.pkSet[name] = true
	}
}

func (v *visitor) visitColumn(col raw.Column) {
	if _, dup := v.fields[col.Name]; dup {
		return
	}

	isPK := v.pkSet[col.Name]
	meta := schema.Meta{
		Source:           col.Name,
		Nullable:         schema.Bool(col.Nullable),
		Default:          convertDefault(col.Default),
		CheckConstraints: slices.Clone(col.CheckConstraints),
		IsPrimaryKey:     isPK,
		IsForeignKey:     v.fkSet[col.Name],
		AutoIncrement:    col.AutoIncrement,
	}
	if isPK {
		meta.PrimaryKeyFieldCount = len(v.pkNames)
	}

	field := schema.Field{
		Name: schema.Symbol(col.Name),
		Type: types.Normalize(v.engine, col.NativeType, types.ColumnMeta{
			EnumValues:    col.EnumValues,
			AutoIncrement: col.AutoIncrement,
		}),
		Meta: meta,
	}

	v.fields[col.Name] = field
	v.out.Fields = append(v.out.Fields, field)

	// the key is complete once its last column has been classified
	if isPK && v.primaryKeyResolved() {
		v.out.PrimaryKey = schema.PrimaryKey{Fields: v.lookup(v.pkNames)}
	}
}

func (v *visitor) primaryKeyResolved() bool {
	for _, name := range v.pkNames {
		if _, ok := v.fields[name]; !ok {
			return false
		}
	}
	return true
}

func (v *visitor) visitForeignKey(fk raw.ForeignKey) {
	if len(fk.Columns) == 0 || len(fk.ReferencedColumns) == 0 {
		return
	}
	if _, ok := v.fields[fk.Columns[0]]; !ok {
		return
	}

	field := schema.Symbol(fk.Columns[0])
	v.out.ForeignKeys = append(v.out.ForeignKeys, schema.ForeignKey{
		Field:            field,
		ReferencedTable:  fk.ReferencedTable,
		ReferencedField:  schema.Symbol(fk.ReferencedColumns[0]),
		AssociationName:  v.compiler.associationName(fk.Columns[0], fk.ReferencedTable),
		Name:             fk.Name,
		Fields:           symbols(fk.Columns),
		ReferencedFields: symbols(fk.ReferencedColumns),
		OnDelete:         string(orNone(fk.OnDelete)),
		OnUpdate:         string(orNone(fk.OnUpdate)),
	})
}

func (v *visitor) visitIndex(idx raw.Index) {
	fields := v.lookup(idx.Columns)
	if len(fields) == 0 {
		return
	}
	v.out.Indices.List = append(v.out.Indices.List, schema.Index{
		Name:   idx.Name,
		Fields: fields,
		Unique: idx.Unique,
		Type:   string(idx.Type),
		Where:  idx.Where,
	})
}

// lookup resolves column names to compiled fields, keeping their order and
// skipping names that are not columns (e.g. expression index parts).
func (v *visitor) lookup(names []string) []schema.Field {
	var fields []schema.Field
	for _, name := range names {
		if f, ok := v.fields[name]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func (c *Compiler) associationName(field, referencedTable string) schema.Symbol {
	for _, suffix := range c.suffixes {
		if suffix == "" || !strings.HasSuffix(field, suffix) {
			continue
		}
		if name := strings.TrimSuffix(field, suffix); name != "" {
			return schema.Symbol(name)
		}
	}
	return schema.Symbol(referencedTable)
}

func convertDefault(def any) any {
	if expr, ok := def.(raw.Expression); ok {
		return schema.Expression(expr)
	}
	return def
}

func orNone(a raw.Action) raw.Action {
	if a == "" {
		return raw.ActionNone
	}
	return a
}

func symbols(names []string) []schema.Symbol {
	out := make([]schema.Symbol, len(names))
	for i, n := range names {
		out[i] = schema.Symbol(n)
	}
	return out
}
