// Package formatter renders normalized schemas for people and LLM prompts.
package formatter

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemacache/internal/schema"
)

const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Formatter renders a set of table schemas
type Formatter interface {
	Format(schemas []schema.Schema) error
}

// formatDefault renders a default so expressions read differently from literals
func formatDefault(v any) string {
	switch v := v.(type) {
	case schema.Expression:
		return string(v)
	case schema.Symbol:
		return ":" + string(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return fmt.Sprint(v)
	}
}

func fieldNames(fields []schema.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f.Name)
	}
	return strings.Join(names, ", ")
}

// constraints lists the facts worth showing next to a field's type
func constraints(s *schema.Schema, f schema.Field) []string {
	var out []string
	if s.IsPrimaryKey(f.Name) {
		out = append(out, "PK")
	}
	if f.Meta.AutoIncrement {
		out = append(out, "AUTO_INCREMENT")
	}
	if f.Meta.Nullable != nil && !*f.Meta.Nullable {
		out = append(out, "NOT NULL")
	}
	if f.Meta.Default != nil {
		out = append(out, "DEFAULT "+formatDefault(f.Meta.Default))
	}
	out = append(out, f.Meta.CheckConstraints...)
	return out
}

func foreignKeyTarget(fk schema.ForeignKey) string {
	fields := fk.ReferencedFields
	if len(fields) == 0 {
		fields = []schema.Symbol{fk.ReferencedField}
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return fk.ReferencedTable + "." + strings.Join(names, ", ")
}

func foreignKeySource(fk schema.ForeignKey) string {
	if len(fk.Fields) == 0 {
		return string(fk.Field)
	}
	names := make([]string, len(fk.Fields))
	for i, f := range fk.Fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func actions(fk schema.ForeignKey) string {
	var parts []string
	if fk.OnDelete != "" && fk.OnDelete != "none" {
		parts = append(parts, "on delete "+fk.OnDelete)
	}
	if fk.OnUpdate != "" && fk.OnUpdate != "none" {
		parts = append(parts, "on update "+fk.OnUpdate)
	}
	return strings.Join(parts, ", ")
}
