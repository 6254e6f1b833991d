package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemacache/internal/schema"
)

// MarkdownFormatter formats schemas as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schemas in markdown format
func (f *MarkdownFormatter) Format(schemas []schema.Schema) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for i := range schemas {
		f.FormatTable(&schemas[i])
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(s *schema.Schema) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", s.Source)

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, field := range s.Fields {
		typeStr := "`" + field.Type.String() + "`"
		if c := constraints(s, field); len(c) > 0 {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", field.Name, typeStr, strings.Join(c, ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", field.Name, typeStr)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(s.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range s.ForeignKeys {
			line := fmt.Sprintf("- %s → %s (`%s`)", foreignKeySource(fk), foreignKeyTarget(fk), fk.AssociationName)
			if a := actions(fk); a != "" {
				line += ", " + a
			}
			_, _ = fmt.Fprintln(f.writer, line)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if s.Indices.Count() > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Indexes")
		_, _ = fmt.Fprintln(f.writer)
		for _, idx := range s.Indices.List {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", formatIndex(idx))
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}
