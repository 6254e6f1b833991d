package cache

import (
	"encoding/json"
	"fmt"

	"github.com/tordrt/schemacache/internal/schema"
	"github.com/tordrt/schemacache/internal/types"
)

// Value kinds of the {kind, value} envelope. Plain JSON cannot tell a symbol from
// a string, an expression from a literal or an integer from a float.
const (
	kindNil     = "nil"
	kindSymbol  = "symbol"
	kindExpr    = "expr"
	kindString  = "string"
	kindStrings = "strings"
	kindInt     = "int"
	kindFloat   = "float"
	kindBool    = "bool"
	kindList    = "list"
	kindMap     = "map"
	kindType    = "type"
)

type envelope struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

type typeDoc struct {
	Kind   string   `json:"kind"`
	Elem   *typeDoc `json:"elem,omitempty"`
	Values []string `json:"values,omitempty"`
}

type metaDoc struct {
	Source               string              `json:"source"`
	Nullable             *bool               `json:"nullable"`
	Default              envelope            `json:"default"`
	CheckConstraints     []string            `json:"check_constraints"`
	IsPrimaryKey         bool                `json:"is_primary_key"`
	IsForeignKey         bool                `json:"is_foreign_key"`
	PrimaryKeyFieldCount int                 `json:"primary_key_field_count"`
	AutoIncrement        bool                `json:"auto_increment"`
	Extra                map[string]envelope `json:"extra"`
}

type fieldDoc struct {
	Name string  `json:"name"`
	Type typeDoc `json:"type"`
	Meta metaDoc `json:"meta"`
}

type foreignKeyDoc struct {
	Field            string   `json:"field"`
	ReferencedTable  string   `json:"referenced_table"`
	ReferencedField  string   `json:"referenced_field"`
	AssociationName  string   `json:"association_name"`
	Name             string   `json:"name"`
	Fields           []string `json:"fields"`
	ReferencedFields []string `json:"referenced_fields"`
	OnDelete         string   `json:"on_delete"`
	OnUpdate         string   `json:"on_update"`
}

type indexDoc struct {
	Name   string     `json:"name"`
	Fields []fieldDoc `json:"fields"`
	Unique bool       `json:"unique"`
	Type   string     `json:"type"`
	Where  string     `json:"where"`
}

type schemaDoc struct {
	Source      string          `json:"source"`
	PrimaryKey  []fieldDoc      `json:"primary_key"`
	ForeignKeys []foreignKeyDoc `json:"foreign_keys"`
	Fields      []fieldDoc      `json:"fields"`
	Indices     []indexDoc      `json:"indices"`
}

// Marshal serializes a schema. Integers of any width decode as int64.
func Marshal(s schema.Schema) ([]byte, error) {
	doc, err := encodeSchema(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Unmarshal is the inverse of Marshal
func Unmarshal(data []byte) (schema.Schema, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return schema.Schema{}, err
	}
	return decodeSchema(doc)
}

func encodeSchema(s schema.Schema) (schemaDoc, error) {
	doc := schemaDoc{Source: s.Source}
	var err error

	if doc.PrimaryKey, err = encodeFields(s.PrimaryKey.Fields); err != nil {
		return schemaDoc{}, fmt.Errorf("primary key: %w", err)
	}
	if doc.Fields, err = encodeFields(s.Fields); err != nil {
		return schemaDoc{}, err
	}

	if s.ForeignKeys != nil {
		doc.ForeignKeys = make([]foreignKeyDoc, len(s.ForeignKeys))
	}
	for i, fk := range s.ForeignKeys {
		doc.ForeignKeys[i] = foreignKeyDoc{
			Field:            string(fk.Field),
			ReferencedTable:  fk.ReferencedTable,
			ReferencedField:  string(fk.ReferencedField),
			AssociationName:  string(fk.AssociationName),
			Name:             fk.Name,
			Fields:           fromSymbols(fk.Fields),
			ReferencedFields: fromSymbols(fk.ReferencedFields),
			OnDelete:         fk.OnDelete,
			OnUpdate:         fk.OnUpdate,
		}
	}

	if s.Indices.List != nil {
		doc.Indices = make([]indexDoc, len(s.Indices.List))
	}
	for i, idx := range s.Indices.List {
		fields, err := encodeFields(idx.Fields)
		if err != nil {
			return schemaDoc{}, fmt.Errorf("index %s: %w", idx.Name, err)
		}
		doc.Indices[i] = indexDoc{Name: idx.Name, Fields: fields, Unique: idx.Unique, Type: idx.Type, Where: idx.Where}
	}

	return doc, nil
}

func decodeSchema(doc schemaDoc) (schema.Schema, error) {
	s := schema.Schema{Source: doc.Source}
	var err error

	if s.PrimaryKey.Fields, err = decodeFields(doc.PrimaryKey); err != nil {
		return schema.Schema{}, fmt.Errorf("primary key: %w", err)
	}
	if s.Fields, err = decodeFields(doc.Fields); err != nil {
		return schema.Schema{}, err
	}

	if doc.ForeignKeys != nil {
		s.ForeignKeys = make([]schema.ForeignKey, len(doc.ForeignKeys))
	}
	for i, fk := range doc.ForeignKeys {
		s.ForeignKeys[i] = schema.ForeignKey{
			Field:            schema.Symbol(fk.Field),
			ReferencedTable:  fk.ReferencedTable,
			ReferencedField:  schema.Symbol(fk.ReferencedField),
			AssociationName:  schema.Symbol(fk.AssociationName),
			Name:             fk.Name,
			Fields:           toSymbols(fk.Fields),
			ReferencedFields: toSymbols(fk.ReferencedFields),
			OnDelete:         fk.OnDelete,
			OnUpdate:         fk.OnUpdate,
		}
	}

	if doc.Indices != nil {
		s.Indices.List = make([]schema.Index, len(doc.Indices))
	}
	for i, idx := range doc.Indices {
		fields, err := decodeFields(idx.Fields)
		if err != nil {
			return schema.Schema{}, fmt.Errorf("index %s: %w", idx.Name, err)
		}
		s.Indices.List[i] = schema.Index{Name: idx.Name, Fields: fields, Unique: idx.Unique, Type: idx.Type, Where: idx.Where}
	}

	return s, nil
}

func encodeFields(fields []schema.Field) ([]fieldDoc, error) {
	if fields == nil {
		return nil, nil
	}
	docs := make([]fieldDoc, len(fields))
	for i, f := range fields {
		meta, err := encodeMeta(f.Meta)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		docs[i] = fieldDoc{Name: string(f.Name), Type: encodeType(f.Type), Meta: meta}
	}
	return docs, nil
}

func decodeFields(docs []fieldDoc) ([]schema.Field, error) {
	if docs == nil {
		return nil, nil
	}
	fields := make([]schema.Field, len(docs))
	for i, d := range docs {
		meta, err := decodeMeta(d.Meta)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", d.Name, err)
		}
		fields[i] = schema.Field{Name: schema.Symbol(d.Name), Type: decodeType(d.Type), Meta: meta}
	}
	return fields, nil
}

func encodeMeta(m schema.Meta) (metaDoc, error) {
	def, err := encodeValue(m.Default)
	if err != nil {
		return metaDoc{}, fmt.Errorf("default: %w", err)
	}

	doc := metaDoc{
		Source:               m.Source,
		Nullable:             m.Nullable,
		Default:              def,
		CheckConstraints:     m.CheckConstraints,
		IsPrimaryKey:         m.IsPrimaryKey,
		IsForeignKey:         m.IsForeignKey,
		PrimaryKeyFieldCount: m.PrimaryKeyFieldCount,
		AutoIncrement:        m.AutoIncrement,
	}
	if m.Extra != nil {
		doc.Extra = make(map[string]envelope, len(m.Extra))
		for k, v := range m.Extra {
			if doc.Extra[k], err = encodeValue(v); err != nil {
				return metaDoc{}, fmt.Errorf("extra %s: %w", k, err)
			}
		}
	}
	return doc, nil
}

func decodeMeta(doc metaDoc) (schema.Meta, error) {
	def, err := decodeValue(doc.Default)
	if err != nil {
		return schema.Meta{}, fmt.Errorf("default: %w", err)
	}

	m := schema.Meta{
		Source:               doc.Source,
		Nullable:             doc.Nullable,
		Default:              def,
		CheckConstraints:     doc.CheckConstraints,
		IsPrimaryKey:         doc.IsPrimaryKey,
		IsForeignKey:         doc.IsForeignKey,
		PrimaryKeyFieldCount: doc.PrimaryKeyFieldCount,
		AutoIncrement:        doc.AutoIncrement,
	}
	if doc.Extra != nil {
		m.Extra = make(map[string]any, len(doc.Extra))
		for k, env := range doc.Extra {
			if m.Extra[k], err = decodeValue(env); err != nil {
				return schema.Meta{}, fmt.Errorf("extra %s: %w", k, err)
			}
		}
	}
	return m, nil
}

func encodeType(t types.CanonicalType) typeDoc {
	doc := typeDoc{Kind: string(t.Kind), Values: t.Values}
	if t.Elem != nil {
		elem := encodeType(*t.Elem)
		doc.Elem = &elem
	}
	return doc
}

func decodeType(doc typeDoc) types.CanonicalType {
	t := types.CanonicalType{Kind: types.Kind(doc.Kind), Values: doc.Values}
	if doc.Elem != nil {
		elem := decodeType(*doc.Elem)
		t.Elem = &elem
	}
	return t
}

// encodeValue tags a metadata value with its kind
func encodeValue(v any) (envelope, error) {
	var kind string
	var payload any

	switch v := v.(type) {
	case nil:
		return envelope{Kind: kindNil}, nil
	case schema.Symbol:
		kind, payload = kindSymbol, string(v)
	case schema.Expression:
		kind, payload = kindExpr, string(v)
	case string:
		kind, payload = kindString, v
	case []string:
		kind, payload = kindStrings, v
	case int:
		kind, payload = kindInt, int64(v)
	case int32:
		kind, payload = kindInt, int64(v)
	case int64:
		kind, payload = kindInt, v
	case float32:
		kind, payload = kindFloat, float64(v)
	case float64:
		kind, payload = kindFloat, v
	case bool:
		kind, payload = kindBool, v
	case types.CanonicalType:
		kind, payload = kindType, encodeType(v)
	case []any:
		items := make([]envelope, len(v))
		for i, item := range v {
			env, err := encodeValue(item)
			if err != nil {
				return envelope{}, err
			}
			items[i] = env
		}
		kind, payload = kindList, items
	case map[string]any:
		entries := make(map[string]envelope, len(v))
		for k, item := range v {
			env, err := encodeValue(item)
			if err != nil {
				return envelope{}, err
			}
			entries[k] = env
		}
		kind, payload = kindMap, entries
	default:
		return envelope{}, fmt.Errorf("cannot encode value of type %T", v)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, err
	}
	return envelope{Kind: kind, Value: raw}, nil
}

func decodeValue(env envelope) (any, error) {
	switch env.Kind {
	case kindNil, "":
		return nil, nil
	case kindSymbol:
		s, err := decodeAs[string](env)
		return schema.Symbol(s), err
	case kindExpr:
		s, err := decodeAs[string](env)
		return schema.Expression(s), err
	case kindString:
		return decodeAs[string](env)
	case kindStrings:
		return decodeAs[[]string](env)
	case kindInt:
		return decodeAs[int64](env)
	case kindFloat:
		return decodeAs[float64](env)
	case kindBool:
		return decodeAs[bool](env)
	case kindType:
		doc, err := decodeAs[typeDoc](env)
		return decodeType(doc), err
	case kindList:
		items, err := decodeAs[[]envelope](env)
		if err != nil {
			return nil, err
		}
		list := make([]any, len(items))
		for i, item := range items {
			if list[i], err = decodeValue(item); err != nil {
				return nil, err
			}
		}
		return list, nil
	case kindMap:
		entries, err := decodeAs[map[string]envelope](env)
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(entries))
		for k, item := range entries {
			if m[k], err = decodeValue(item); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", env.Kind)
	}
}

func decodeAs[T any](env envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Value, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return v, nil
}

func fromSymbols(symbols []schema.Symbol) []string {
	if symbols == nil {
		return nil
	}
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = string(s)
	}
	return out
}

func toSymbols(names []string) []schema.Symbol {
	if names == nil {
		return nil
	}
	out := make([]schema.Symbol, len(names))
	for i, n := range names {
		out[i] = schema.Symbol(n)
	}
	return out
}
