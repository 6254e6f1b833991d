package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemacache/internal/schema"
)

// TextFormatter formats schemas as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schemas in compact text format
func (f *TextFormatter) Format(schemas []schema.Schema) error {
	for i := range schemas {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.FormatTable(&schemas[i])
	}
	return nil
}

// FormatTable writes a single table
func (f *TextFormatter) FormatTable(s *schema.Schema) {
	pkStr := ""
	if s.PrimaryKey.Present() {
		pkStr = fmt.Sprintf(" (PK: %s)", fieldNames(s.PrimaryKey.Fields))
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", s.Source, pkStr)

	for _, field := range s.Fields {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatField(s, field))
	}

	if len(s.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  FOREIGN KEYS:")
		for _, fk := range s.ForeignKeys {
			line := fmt.Sprintf("    %s → %s as %s", foreignKeySource(fk), foreignKeyTarget(fk), fk.AssociationName)
			if a := actions(fk); a != "" {
				line += " (" + a + ")"
			}
			_, _ = fmt.Fprintln(f.writer, line)
		}
	}

	if s.Indices.Count() > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range s.Indices.List {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", formatIndex(idx))
		}
	}
}

func (f *TextFormatter) formatField(s *schema.Schema, field schema.Field) string {
	parts := []string{string(field.Name) + ":", field.Type.String()}
	parts = append(parts, constraints(s, field)...)
	return strings.Join(parts, " ")
}

func formatIndex(idx schema.Index) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%s (%s)", idx.Name, fieldNames(idx.Fields))
	if idx.Unique {
		b.WriteString(" UNIQUE")
	}
	if idx.Type != "" && idx.Type != "btree" {
		b.WriteString(" USING " + strings.ToUpper(idx.Type))
	}
	if idx.Where != "" {
		b.WriteString(" WHERE " + idx.Where)
	}
	return b.String()
}
