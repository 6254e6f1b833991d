package formatter

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/tordrt/schemacache/internal/schema"
)

// MultiFileFormatter writes one file per table plus an overview into a directory
type MultiFileFormatter struct {
	fs           afero.Fs
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(fs afero.Fs, outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		fs:           fs,
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the schemas to multiple files
func (f *MultiFileFormatter) Format(schemas []schema.Schema) error {
	if err := f.fs.MkdirAll(f.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(w io.Writer) { f.writeOverview(w, schemas) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for i := range schemas {
		s := &schemas[i]
		if err := f.writeFile(s.Source, func(w io.Writer) { f.writeTable(w, s, schemas) }); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", s.Source, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeFile(name string, render func(w io.Writer)) error {
	file, err := f.fs.Create(filepath.Join(f.OutputDir, name+f.getFileExtension()))
	if err != nil {
		return err
	}
	render(file)
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, schemas []schema.Schema) {
	sorted := slices.Clone(schemas)
	slices.SortFunc(sorted, func(a, b schema.Schema) int {
		return strings.Compare(a.Source, b.Source)
	})

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<table_name>%s`\n\n", f.getFileExtension())
		_, _ = fmt.Fprintf(w, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(w, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", f.getFileExtension())
	}

	for _, s := range sorted {
		line := s.Source
		if f.OutputFormat == FormatMarkdown {
			line = "- **" + s.Source + "**"
		}
		if targets := referencedTables(s); len(targets) > 0 {
			line += fmt.Sprintf(" (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func (f *MultiFileFormatter) writeTable(w io.Writer, s *schema.Schema, all []schema.Schema) {
	if f.OutputFormat != FormatMarkdown {
		NewTextFormatter(w).FormatTable(s)
		if incoming := findIncomingReferences(s.Source, all); len(incoming) > 0 {
			_, _ = fmt.Fprintln(w)
			_, _ = fmt.Fprintln(w, "  REFERENCED BY:")
			for _, ref := range incoming {
				_, _ = fmt.Fprintf(w, "    %s\n", ref)
			}
		}
		return
	}

	NewMarkdownFormatter(w).FormatTable(s)
	if incoming := findIncomingReferences(s.Source, all); len(incoming) > 0 {
		_, _ = fmt.Fprintf(w, "### Referenced by\n\n")
		for _, ref := range incoming {
			_, _ = fmt.Fprintf(w, "- %s\n", ref)
		}
		_, _ = fmt.Fprintln(w)
	}
}

// findIncomingReferences finds all foreign keys pointing to this table
func findIncomingReferences(table string, all []schema.Schema) []string {
	var incoming []string
	for _, s := range all {
		for _, fk := range s.ForeignKeys {
			if fk.ReferencedTable == table {
				incoming = append(incoming, fmt.Sprintf("%s.%s → %s", s.Source, foreignKeySource(fk), foreignKeyTarget(fk)))
			}
		}
	}
	return incoming
}

func referencedTables(s schema.Schema) []string {
	var targets []string
	for _, fk := range s.ForeignKeys {
		if !slices.Contains(targets, fk.ReferencedTable) {
			targets = append(targets, fk.ReferencedTable)
		}
	}
	return targets
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
