// Package types maps engine-native column type spellings onto a small closed set
// of engine-independent canonical types.
package types

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the tag of a canonical type
type Kind string

const (
	Integer       Kind = "integer"
	Float         Kind = "float"
	Decimal       Kind = "decimal"
	String        Kind = "string"
	Boolean       Kind = "boolean"
	Binary        Kind = "binary"
	Date          Kind = "date"
	Time          Kind = "time"
	NaiveDatetime Kind = "naive_datetime"
	UTCDatetime   Kind = "utc_datetime"
	UUID          Kind = "uuid"
	Map           Kind = "map"
	Array         Kind = "array"
	Enum          Kind = "enum"
	Unknown       Kind = "unknown"
)

var scalarKinds = map[string]Kind{
	string(Integer):       Integer,
	string(Float):         Float,
	string(Decimal):       Decimal,
	string(String):        String,
	string(Boolean):       Boolean,
	string(Binary):        Binary,
	string(Date):          Date,
	string(Time):          Time,
	string(NaiveDatetime): NaiveDatetime,
	string(UTCDatetime):   UTCDatetime,
	string(UUID):          UUID,
	string(Map):           Map,
	string(Unknown):       Unknown,
}

// CanonicalType is an engine-independent column type.
// Elem is set only for arrays and Values only for enums.
type CanonicalType struct {
	Kind   Kind
	Elem   *CanonicalType
	Values []string
}

// Of returns the scalar canonical type of the given kind
func Of(kind Kind) CanonicalType {
	return CanonicalType{Kind: kind}
}

// ArrayOf returns array(elem)
func ArrayOf(elem CanonicalType) CanonicalType {
	return CanonicalType{Kind: Array, Elem: &elem}
}

// EnumOf returns an enumerated type over the given values
func EnumOf(values ...string) CanonicalType {
	return CanonicalType{Kind: Enum, Values: slices.Clone(values)}
}

// IsZero reports whether the type was never set
func (t CanonicalType) IsZero() bool {
	return t.Kind == ""
}

// IsEnum reports whether t is an enumerated type
func (t CanonicalType) IsEnum() bool {
	return t.Kind == Enum
}

// HasValue reports whether v is one of the enum's values
func (t CanonicalType) HasValue(v string) bool {
	return slices.Contains(t.Values, v)
}

// Equal reports whether two canonical types are structurally equal
func (t CanonicalType) Equal(o CanonicalType) bool {
	if t.Kind != o.Kind || !slices.Equal(t.Values, o.Values) {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == nil && o.Elem == nil
	}
	return t.Elem.Equal(*o.Elem)
}

// String renders the type as integer, array(string), enum(a,b) and so on.
// Parse accepts the same syntax.
func (t CanonicalType) String() string {
	switch t.Kind {
	case Array:
		if t.Elem == nil {
			return "array(unknown)"
		}
		return "array(" + t.Elem.String() + ")"
	case Enum:
		return "enum(" + strings.Join(t.Values, ",") + ")"
	case "":
		return string(Unknown)
	default:
		return string(t.Kind)
	}
}

// Parse reads the syntax produced by String
func Parse(s string) (CanonicalType, error) {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "(")
	if open < 0 {
		if kind, ok := scalarKinds[strings.ToLower(s)]; ok {
			return Of(kind), nil
		}
		return CanonicalType{}, fmt.Errorf("unknown canonical type %q", s)
	}

	if !strings.HasSuffix(s, ")") {
		return CanonicalType{}, fmt.Errorf("unbalanced parentheses in type %q", s)
	}
	name := strings.ToLower(strings.TrimSpace(s[:open]))
	inner := s[open+1 : len(s)-1]

	switch Kind(name) {
	case Array:
		elem, err := Parse(inner)
		if err != nil {
			return CanonicalType{}, fmt.Errorf("invalid array element: %w", err)
		}
		return ArrayOf(elem), nil
	case Enum:
		values := splitValues(inner)
		if len(values) == 0 {
			return CanonicalType{}, fmt.Errorf("enum type %q has no values", s)
		}
		return EnumOf(values...), nil
	default:
		return CanonicalType{}, fmt.Errorf("type %q does not take parameters", name)
	}
}

// splitValues splits a comma separated value list, dropping surrounding quotes
func splitValues(list string) []string {
	var values []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if len(part) >= 2 && (part[0] == '\'' || part[0] == '"') && part[len(part)-1] == part[0] {
			part = part[1 : len(part)-1]
		}
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
