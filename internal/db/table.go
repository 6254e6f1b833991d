package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/schemacache/internal/raw"
)

// fkRow is one column pair of a foreign key constraint as catalogs list them
type fkRow struct {
	key              string // groups rows of one constraint
	name             string
	column           string
	referencedTable  string
	referencedColumn string
	onDelete         string
	onUpdate         string
}

// groupForeignKeys folds per-column rows into one ForeignKey per constraint,
// keeping constraints in first-seen order and columns in row order.
func groupForeignKeys(rows []fkRow) []raw.ForeignKey {
	var fks []raw.ForeignKey
	index := make(map[string]int)

	for _, row := range rows {
		i, ok := index[row.key]
		if !ok {
			i = len(fks)
			index[row.key] = i
			fks = append(fks, raw.ForeignKey{
				Name:            row.name,
				ReferencedTable: row.referencedTable,
				OnDelete:        raw.ParseAction(row.onDelete),
				OnUpdate:        raw.ParseAction(row.onUpdate),
			})
		}
		fks[i].Columns = append(fks[i].Columns, row.column)
		fks[i].ReferencedColumns = append(fks[i].ReferencedColumns, row.referencedColumn)
	}

	return fks
}

// assemble fills the key parts of t and flags the member columns
func assemble(t *raw.Table, pkName string, pkColumns []string, fks []raw.ForeignKey, checks []string) {
	inPK := make(map[string]bool, len(pkColumns))
	for _, name := range pkColumns {
		inPK[name] = true
	}
	inFK := make(map[string]bool)
	for _, fk := range fks {
		for _, name := range fk.Columns {
			inFK[name] = true
		}
	}

	for i := range t.Columns {
		col := &t.Columns[i]
		col.IsPrimaryKey = col.IsPrimaryKey || inPK[col.Name]
		col.IsForeignKey = col.IsForeignKey || inFK[col.Name]
		col.CheckConstraints = checksMentioning(checks, col.Name)
	}

	t.PrimaryKey = raw.PrimaryKey{Name: pkName}
	for _, name := range pkColumns {
		if col, ok := t.Column(name); ok {
			t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, col)
		}
	}
	t.ForeignKeys = fks
}

// listTables runs a single-column table name query on a database/sql handle
func listTables(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, classify(rows.Err())
}
