package types

import (
	"regexp"
	"strings"

	"github.com/tordrt/schemacache/internal/raw"
)

// ColumnMeta carries the catalog facts that influence normalization
type ColumnMeta struct {
	EnumValues    []string
	AutoIncrement bool
}

var (
	parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)
	arraySuffix   = regexp.MustCompile(`\[\d*\]$`)
)

// words dropped from a spelling before lookup
var typeNoise = map[string]bool{
	"unsigned":       true,
	"signed":         true,
	"zerofill":       true,
	"autoincrement":  true,
	"auto_increment": true,
}

var nativeTypes = map[string]Kind{
	// integers and serials
	"int": Integer, "integer": Integer, "int2": Integer, "int4": Integer, "int8": Integer,
	"smallint": Integer, "bigint": Integer, "tinyint": Integer, "mediumint": Integer,
	"serial": Integer, "serial2": Integer, "serial4": Integer, "serial8": Integer,
	"smallserial": Integer, "bigserial": Integer, "year": Integer,

	"real": Float, "float": Float, "float4": Float, "float8": Float,
	"double": Float, "double precision": Float,

	"numeric": Decimal, "decimal": Decimal, "dec": Decimal, "fixed": Decimal, "money": Decimal,

	"text": String, "varchar": String, "character varying": String, "char": String,
	"character": String, "bpchar": String, "citext": String, "name": String,
	"nvarchar": String, "nchar": String, "clob": String, "string": String,
	"tinytext": String, "mediumtext": String, "longtext": String,
	"inet": String, "cidr": String, "macaddr": String, "xml": String,

	"bool": Boolean, "boolean": Boolean,

	"bytea": Binary, "blob": Binary, "tinyblob": Binary, "mediumblob": Binary,
	"longblob": Binary, "binary": Binary, "varbinary": Binary,

	"date": Date,

	"time": Time, "timetz": Time, "time without time zone": Time, "time with time zone": Time,

	"timestamp": NaiveDatetime, "timestamp without time zone": NaiveDatetime,
	"datetime": NaiveDatetime, "smalldatetime": NaiveDatetime, "datetime2": NaiveDatetime,
	"naive_datetime": NaiveDatetime,

	"timestamptz": UTCDatetime, "timestamp with time zone": UTCDatetime,
	"datetimeoffset": UTCDatetime, "utc_datetime": UTCDatetime,

	"uuid": UUID, "uniqueidentifier": UUID, "guid": UUID, "binary_id": UUID,
	"uuid_text": UUID, "uuid_blob": UUID,

	"json": Map, "jsonb": Map, "hstore": Map, "map": Map,
}

// Normalize maps an engine's spelling of a column type to its canonical type.
// It never fails: spellings it does not recognise become unknown. Enum labels in
// meta apply to the element type of an array spelling.
func Normalize(engine raw.Engine, native string, meta ColumnMeta) CanonicalType {
	native = strings.TrimSpace(native)

	// indices into native only; lowercasing may change byte lengths
	if loc := arraySuffix.FindStringIndex(native); loc != nil {
		return ArrayOf(Normalize(engine, native[:loc[0]], meta))
	}
	if len(meta.EnumValues) > 0 {
		return EnumOf(meta.EnumValues...)
	}

	spelling := strings.ToLower(native)
	switch spelling {
	case "":
		return Of(Unknown)
	case "array":
		return ArrayOf(Of(Unknown))
	}
	if len(native) > len("enum(") && strings.EqualFold(native[:len("enum(")], "enum(") && strings.HasSuffix(native, ")") {
		if values := splitValues(native[len("enum(") : len(native)-1]); len(values) > 0 {
			return EnumOf(values...)
		}
		return Of(Unknown)
	}

	base, args := splitSpelling(spelling)

	switch engine {
	case raw.EngineMySQL:
		if (base == "tinyint" || base == "bit") && args == "1" {
			return Of(Boolean)
		}
		// MySQL TIMESTAMP values are stored as UTC
		if base == "timestamp" {
			return Of(UTCDatetime)
		}
	case raw.EngineSQLite:
		if kind, ok := nativeTypes[base]; ok {
			return Of(kind)
		}
		return sqliteAffinity(base)
	}

	if kind, ok := nativeTypes[base]; ok {
		return Of(kind)
	}
	return Of(Unknown)
}

// splitSpelling drops parenthesised modifiers and noise words, returning the base
// spelling and the first modifier list, e.g. "int(11) unsigned" -> "int", "11".
func splitSpelling(spelling string) (base, args string) {
	if m := parenthetical.FindString(spelling); m != "" {
		args = strings.TrimSpace(m)
		args = strings.TrimSuffix(strings.TrimPrefix(args, "("), ")")
	}
	stripped := parenthetical.ReplaceAllString(spelling, "")

	var words []string
	for _, w := range strings.Fields(stripped) {
		if !typeNoise[w] {
			words = append(words, w)
		}
	}
	return strings.Join(words, " "), strings.TrimSpace(args)
}

// sqliteAffinity applies SQLite's declared-type affinity rules
func sqliteAffinity(base string) CanonicalType {
	upper := strings.ToUpper(base)
	switch {
	case strings.Contains(upper, "INT"):
		return Of(Integer)
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"), strings.Contains(upper, "TEXT"):
		return Of(String)
	case strings.Contains(upper, "BLOB"):
		return Of(Binary)
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"):
		return Of(Float)
	default:
		return Of(Unknown)
	}
}
