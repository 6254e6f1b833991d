package db

import (
	"slices"
	"testing"

	"github.com/tordrt/schemacache/internal/raw"
)

// verifyColumns checks that a table has exactly the expected columns, in order
func verifyColumns(t *testing.T, table *raw.Table, expectedColumns []string) {
	t.Helper()

	var names []string
	for _, col := range table.Columns {
		names = append(names, col.Name)
	}
	if !slices.Equal(names, expectedColumns) {
		t.Errorf("Expected columns %v in %s table, got %v", expectedColumns, table.Name, names)
	}
}

// verifyPrimaryKey checks that a table has the expected primary key in key order
func verifyPrimaryKey(t *testing.T, table *raw.Table, expectedPK []string) {
	t.Helper()

	var names []string
	for _, col := range table.PrimaryKey.Columns {
		names = append(names, col.Name)
	}
	if !slices.Equal(names, expectedPK) {
		t.Errorf("Expected primary key %v on %s, got %v", expectedPK, table.Name, names)
		return
	}

	for _, name := range expectedPK {
		col, _ := table.Column(name)
		if !col.IsPrimaryKey {
			t.Errorf("Expected column %s.%s to be flagged as primary key", table.Name, name)
		}
	}
}

// verifyForeignKey checks that one constraint maps columns onto referenced columns
func verifyForeignKey(t *testing.T, table *raw.Table, columns []string, referencedTable string, referencedColumns []string) {
	t.Helper()

	for _, fk := range table.ForeignKeys {
		if !slices.Equal(fk.Columns, columns) {
			continue
		}
		if fk.ReferencedTable != referencedTable || !slices.Equal(fk.ReferencedColumns, referencedColumns) {
			t.Errorf("Expected %v -> %s%v, got %v -> %s%v",
				columns, referencedTable, referencedColumns, fk.Columns, fk.ReferencedTable, fk.ReferencedColumns)
		}
		for _, name := range columns {
			col, _ := table.Column(name)
			if !col.IsForeignKey {
				t.Errorf("Expected column %s.%s to be flagged as foreign key", table.Name, name)
			}
		}
		return
	}

	t.Errorf("Expected foreign key on %v in %s table", columns, table.Name)
}

// verifyIndex checks that an index exists with the given columns in order
func verifyIndex(t *testing.T, table *raw.Table, indexName string, expectedColumns []string) raw.Index {
	t.Helper()

	for _, idx := range table.Indices {
		if idx.Name != indexName {
			continue
		}
		if !slices.Equal(idx.Columns, expectedColumns) {
			t.Errorf("Expected index %s on %v, got %v", indexName, expectedColumns, idx.Columns)
		}
		return idx
	}

	t.Errorf("Expected index %s not found in %s table", indexName, table.Name)
	return raw.Index{}
}

// verifyEnumValues checks the labels reported for an enum column
func verifyEnumValues(t *testing.T, table *raw.Table, columnName string, expectedValues []string) {
	t.Helper()

	col, ok := table.Column(columnName)
	if !ok {
		t.Errorf("Column %s not found in %s table", columnName, table.Name)
		return
	}
	if !slices.Equal(col.EnumValues, expectedValues) {
		t.Errorf("Expected enum values %v for %s.%s, got %v", expectedValues, table.Name, columnName, col.EnumValues)
	}
}
