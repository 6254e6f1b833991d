package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tordrt/schemacache/internal/raw"
)

func init() {
	Register(raw.EngineSQLite, openSQLite)
}

func openSQLite(ctx context.Context, dsn string, _ Options) (Introspector, error) {
	client, err := NewSQLiteClient(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLiteExtractor(client), nil
}

// SQLiteExtractor reads table metadata through SQLite's pragma functions
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// Engine implements Introspector
func (e *SQLiteExtractor) Engine() raw.Engine {
	return raw.EngineSQLite
}

// Close closes the underlying database
func (e *SQLiteExtractor) Close() error {
	return e.client.Close()
}

// IntrospectTable implements Introspector
func (e *SQLiteExtractor) IntrospectTable(ctx context.Context, tableName string) (*raw.Table, error) {
	table, err := e.extractTable(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect sqlite table %s: %w", tableName, classify(err))
	}
	return table, nil
}

// ListTables implements Introspector
func (e *SQLiteExtractor) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	return listTables(ctx, e.client.GetDB(), query)
}

func (e *SQLiteExtractor) extractTable(ctx context.Context, tableName string) (*raw.Table, error) {
	createSQL, err := e.tableDefinition(ctx, tableName)
	if err != nil {
		return nil, err
	}

	table := &raw.Table{Name: tableName, Engine: raw.EngineSQLite}

	var pkColumns []string
	table.Columns, pkColumns, err = e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}

	fks, err := e.extractForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}

	table.Indices, err = e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}

	markRowidAlias(table.Columns, pkColumns)
	assemble(table, "", pkColumns, fks, sqliteCheckClauses(createSQL))
	return table, nil
}

// tableDefinition returns the CREATE statement stored for the table
func (e *SQLiteExtractor) tableDefinition(ctx context.Context, tableName string) (string, error) {
	query := `
		SELECT COALESCE(sql, '')
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name = ?
	`

	var createSQL string
	err := e.client.GetDB().QueryRowContext(ctx, query, tableName).Scan(&createSQL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTableNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up table: %w", err)
	}
	return createSQL, nil
}

// extractColumns returns the columns and the primary key column names in key order
func (e *SQLiteExtractor) extractColumns(ctx context.Context, tableName string) ([]raw.Column, []string, error) {
	query := `
		SELECT cid, name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type keyPart struct {
		position int
		name     string
	}
	var columns []raw.Column
	var keyParts []keyPart

	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, err
		}

		col := raw.Column{
			Name:       name,
			NativeType: colType,
			Nullable:   notNull == 0,
		}
		if defaultValue.Valid {
			col.Default = parseDefault(&defaultValue.String)
		}
		if pk > 0 {
			keyParts = append(keyParts, keyPart{position: pk, name: name})
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	slices.SortFunc(keyParts, func(a, b keyPart) int { return a.position - b.position })
	pkColumns := make([]string, len(keyParts))
	for i, part := range keyParts {
		pkColumns[i] = part.name
	}

	return columns, pkColumns, nil
}

// markRowidAlias flags a lone INTEGER PRIMARY KEY, which aliases the rowid and
// is assigned automatically.
func markRowidAlias(columns []raw.Column, pkColumns []string) {
	if len(pkColumns) != 1 {
		return
	}
	for i := range columns {
		if columns[i].Name == pkColumns[0] && strings.EqualFold(strings.TrimSpace(columns[i].NativeType), "INTEGER") {
			columns[i].AutoIncrement = true
		}
	}
}

func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]raw.ForeignKey, error) {
	query := `
		SELECT id, seq, "table", "from", "to", on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fkRows []fkRow
	var implicit []int // rows that reference the parent's primary key without naming it
	for rows.Next() {
		var id, seq int
		var row fkRow
		var to sql.NullString

		if err := rows.Scan(&id, &seq, &row.referencedTable, &row.column, &to, &row.onUpdate, &row.onDelete); err != nil {
			return nil, err
		}

		row.key = strconv.Itoa(id)
		if to.Valid {
			row.referencedColumn = to.String
		} else {
			row.referencedColumn = strconv.Itoa(seq)
			implicit = append(implicit, len(fkRows))
		}
		fkRows = append(fkRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, i := range implicit {
		_, parentPK, err := e.extractColumns(ctx, fkRows[i].referencedTable)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve key of %s: %w", fkRows[i].referencedTable, err)
		}
		seq, _ := strconv.Atoi(fkRows[i].referencedColumn)
		fkRows[i].referencedColumn = ""
		if seq < len(parentPK) {
			fkRows[i].referencedColumn = parentPK[seq]
		}
	}

	return groupForeignKeys(fkRows), nil
}

func (e *SQLiteExtractor) extractIndexes(ctx context.Context, tableName string) ([]raw.Index, error) {
	query := `
		SELECT name, "unique", origin, partial
		FROM pragma_index_list(?)
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type indexEntry struct {
		name    string
		unique  bool
		partial bool
	}
	var entries []indexEntry

	for rows.Next() {
		var name, origin string
		var unique, partial int

		if err := rows.Scan(&name, &unique, &origin, &partial); err != nil {
			return nil, err
		}

		// the primary key is reported separately
		if origin == "pk" {
			continue
		}
		entries = append(entries, indexEntry{name: name, unique: unique == 1, partial: partial == 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	var indexes []raw.Index
	for _, entry := range entries {
		columns, err := e.indexColumns(ctx, entry.name)
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			continue
		}

		idx := raw.Index{
			Name:    entry.name,
			Columns: columns,
			Unique:  entry.unique,
			Type:    raw.IndexBTree,
		}
		if entry.partial {
			if idx.Where, err = e.indexPredicate(ctx, entry.name); err != nil {
				return nil, err
			}
		}
		indexes = append(indexes, idx)
	}

	return indexes, nil
}

// indexColumns lists an index's named columns by sequence number; expression
// parts have no name and are left out.
func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	query := `
		SELECT name
		FROM pragma_index_info(?)
		ORDER BY seqno
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, indexName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var colName sql.NullString
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}

func (e *SQLiteExtractor) indexPredicate(ctx context.Context, indexName string) (string, error) {
	query := `
		SELECT COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'index' AND name = ?
	`

	var createSQL string
	if err := e.client.GetDB().QueryRowContext(ctx, query, indexName).Scan(&createSQL); err != nil {
		return "", err
	}
	return partialWhere(createSQL), nil
}
