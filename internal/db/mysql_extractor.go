package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/schemacache/internal/raw"
)

// returned by servers older than 8.0.16, which lack check_constraints
const mysqlUnknownTable = 1109

func init() {
	Register(raw.EngineMySQL, openMySQL)
}

func openMySQL(ctx context.Context, dsn string, opts Options) (Introspector, error) {
	client, err := NewMySQLClient(ctx, dsn)
	if err != nil {
		return nil, err
	}

	schemaName := opts.SchemaName
	if schemaName == "" {
		schemaName = client.DatabaseName()
	}
	if schemaName == "" {
		_ = client.Close()
		return nil, errors.New("no database selected: name one in the DSN or the schema option")
	}

	return NewMySQLExtractor(client, schemaName), nil
}

// MySQLExtractor reads table metadata from MySQL's information_schema
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// Engine implements Introspector
func (e *MySQLExtractor) Engine() raw.Engine {
	return raw.EngineMySQL
}

// Close closes the underlying database
func (e *MySQLExtractor) Close() error {
	return e.client.Close()
}

// IntrospectTable implements Introspector
func (e *MySQLExtractor) IntrospectTable(ctx context.Context, tableName string) (*raw.Table, error) {
	table, err := e.extractTable(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect mysql table %s.%s: %w", e.schemaName, tableName, classify(err))
	}
	return table, nil
}

// ListTables implements Introspector
func (e *MySQLExtractor) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	return listTables(ctx, e.client.GetDB(), query, e.schemaName)
}

func (e *MySQLExtractor) extractTable(ctx context.Context, tableName string) (*raw.Table, error) {
	exists, err := e.tableExists(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up table: %w", err)
	}
	if !exists {
		return nil, ErrTableNotFound
	}

	table := &raw.Table{Name: tableName, Engine: raw.EngineMySQL}

	table.Columns, err = e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}

	pkColumns, err := e.extractPrimaryKey(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract primary key: %w", err)
	}

	fks, err := e.extractForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}

	checks, err := e.extractCheckConstraints(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract check constraints: %w", err)
	}

	table.Indices, err = e.extractIndexes(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract indexes: %w", err)
	}

	pkName := ""
	if len(pkColumns) > 0 {
		pkName = "PRIMARY"
	}
	assemble(table, pkName, pkColumns, fks, checks)
	return table, nil
}

func (e *MySQLExtractor) tableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?
	`

	var count int
	if err := e.client.GetDB().QueryRowContext(ctx, query, e.schemaName, tableName).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]raw.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.extra
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []raw.Column
	for rows.Next() {
		var col raw.Column
		var dataType, nullable, extra string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.NativeType, &dataType, &nullable, &defaultVal, &extra); err != nil {
			return nil, err
		}

		col.Nullable = nullable == "YES"
		col.Default = parseMySQLDefault(defaultVal, dataType, extra)
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		if strings.EqualFold(dataType, "enum") {
			col.EnumValues = parseEnumValues(col.NativeType)
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// parseEnumValues reads the labels of a column type such as enum('a','it''s').
// Commas inside labels are kept.
func parseEnumValues(columnType string) []string {
	start := strings.Index(columnType, "(")
	end := strings.LastIndex(columnType, ")")
	if start == -1 || end <= start {
		return nil
	}

	var values []string
	var current strings.Builder
	inQuote := false
	list := columnType[start+1 : end]

	for i := 0; i < len(list); i++ {
		c := list[i]
		switch {
		case inQuote && c == '\'' && i+1 < len(list) && list[i+1] == '\'':
			current.WriteByte('\'')
			i++
		case c == '\'':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			values = append(values, current.String())
			current.Reset()
		case inQuote:
			current.WriteByte(c)
		}
	}
	if strings.Contains(list, "'") {
		values = append(values, current.String())
	}

	return values
}

func (e *MySQLExtractor) extractPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]raw.ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.table_schema
			AND rc.table_name = kcu.table_name
			AND rc.constraint_name = kcu.constraint_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fkRows []fkRow
	for rows.Next() {
		var row fkRow
		if err := rows.Scan(&row.name, &row.column, &row.referencedTable, &row.referencedColumn, &row.onDelete, &row.onUpdate); err != nil {
			return nil, err
		}
		row.key = row.name
		fkRows = append(fkRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groupForeignKeys(fkRows), nil
}

func (e *MySQLExtractor) extractCheckConstraints(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
			ON cc.constraint_schema = tc.constraint_schema
			AND cc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type = 'CHECK'
		ORDER BY tc.constraint_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlUnknownTable {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var checks []string
	for rows.Next() {
		var clause string
		if err := rows.Scan(&clause); err != nil {
			return nil, err
		}
		checks = append(checks, "CHECK ("+clause+")")
	}

	return checks, rows.Err()
}

// extractIndexes groups information_schema.statistics rows per index, keeping
// seq_in_index order. Functional key parts have no column name and are skipped.
func (e *MySQLExtractor) extractIndexes(ctx context.Context, tableName string) ([]raw.Index, error) {
	query := `
		SELECT
			s.index_name,
			s.non_unique,
			s.column_name,
			s.index_type
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		ORDER BY s.index_name, s.seq_in_index
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []raw.Index
	for rows.Next() {
		var name, indexType string
		var nonUnique int
		var column sql.NullString

		if err := rows.Scan(&name, &nonUnique, &column, &indexType); err != nil {
			return nil, err
		}

		if len(indexes) == 0 || indexes[len(indexes)-1].Name != name {
			indexes = append(indexes, raw.Index{
				Name:   name,
				Unique: nonUnique == 0,
				Type:   raw.ParseIndexType(indexType),
			})
		}
		if column.Valid {
			last := &indexes[len(indexes)-1]
			last.Columns = append(last.Columns, column.String)
		}
	}

	return indexes, rows.Err()
}
