package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/schemacache/internal/raw"
)

const (
	varcharType           = "varchar"
	defaultPostgresSchema = "public"
)

func init() {
	Register(raw.EnginePostgres, openPostgres)
}

func openPostgres(ctx context.Context, dsn string, opts Options) (Introspector, error) {
	client, err := NewPostgresClient(ctx, dsn)
	if err != nil {
		return nil, err
	}
	schemaName := opts.SchemaName
	if schemaName == "" {
		schemaName = defaultPostgresSchema
	}
	return NewPostgresExtractor(client, schemaName), nil
}

// PostgresExtractor reads table metadata from the PostgreSQL catalogs
type PostgresExtractor struct {
	client *PostgresClient
	schema string
}

// NewPostgresExtractor creates an extractor for tables in schemaName
func NewPostgresExtractor(client *PostgresClient, schemaName string) *PostgresExtractor {
	return &PostgresExtractor{
		client: client,
		schema: schemaName,
	}
}

// Engine implements Introspector
func (e *PostgresExtractor) Engine() raw.Engine {
	return raw.EnginePostgres
}

// Close closes the underlying connection
func (e *PostgresExtractor) Close() error {
	return e.client.Close(context.Background())
}

// IntrospectTable implements Introspector
func (e *PostgresExtractor) IntrospectTable(ctx context.Context, tableName string) (*raw.Table, error) {
	table, err := e.extractTable(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect postgres table %s.%s: %w", e.schema, tableName, classify(err))
	}
	return table, nil
}

// ListTables implements Introspector
func (e *PostgresExtractor) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list postgres tables in %s: %w", e.schema, classify(err))
	}
	defer rows.Close()

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

func (e *PostgresExtractor) extractTable(ctx context.Context, tableName string) (*raw.Table, error) {
	exists, err := e.tableExists(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up table: %w", err)
	}
	if !exists {
		return nil, ErrTableNotFound
	}

	table := &raw.Table{Name: tableName, Engine: raw.EnginePostgres}

	table.Columns, err = e.extractColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}

	pkName, pkColumns, err := e.extractPrimaryKey(ctx, tableName)
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

	assemble(table, pkName, pkColumns, fks, checks)
	return table, nil
}

func (e *PostgresExtractor) tableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = $1
				AND c.relname = $2
				AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
		)
	`

	var exists bool
	err := e.client.GetConnection().QueryRow(ctx, query, e.schema, tableName).Scan(&exists)
	return exists, err
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("char(%d)", *charMaxLength)
		}
		return "char"
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[], "_int4" for integer[])
		if len(udtName) > 0 && udtName[0] == '_' {
			return normalizeUdtName(udtName[1:]) + "[]"
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
// enumCandidate returns the user-defined type a column may take its enum labels
// from: the column's own type, or the element type of an array column.
func enumCandidate(dataType, udtName string) (string, bool) {
	switch dataType {
	case "USER-DEFINED":
		return udtName, true
	case "ARRAY":
		if elem, ok := strings.CutPrefix(udtName, "_"); ok && elem != "" {
			return elem, true
		}
	}
	return "", false
}

func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

func (e *PostgresExtractor) extractColumns(ctx context.Context, tableName string) ([]raw.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.is_identity = 'YES' AS is_identity
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []raw.Column
	var enumTypes []string
	// enum candidate per column, by index
	var columnTypes []string

	for rows.Next() {
		var col raw.Column
		var dataType, udtName, nullable string
		var defaultVal *string
		var charMaxLength *int
		var identity bool

		if err := rows.Scan(&col.Name, &dataType, &udtName, &nullable, &defaultVal, &charMaxLength, &identity); err != nil {
			return nil, err
		}

		col.NativeType = normalizePostgresType(dataType, udtName, charMaxLength)
		col.Nullable = nullable == "YES"
		col.Default = parseDefault(defaultVal)
		col.AutoIncrement = identity || (defaultVal != nil && strings.HasPrefix(*defaultVal, "nextval("))

		typeName, ok := enumCandidate(dataType, udtName)
		if ok {
			enumTypes = append(enumTypes, typeName)
		}

		columns = append(columns, col)
		columnTypes = append(columnTypes, typeName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(enumTypes) > 0 {
		enumValuesMap, err := e.extractEnumValuesMap(ctx, enumTypes)
		if err != nil {
			return nil, err
		}
		for i := range columns {
			if values, ok := enumValuesMap[columnTypes[i]]; ok {
				columns[i].EnumValues = values
			}
		}
	}

	return columns, nil
}

// extractEnumValuesMap extracts enum labels in sort order for several enum types at once
func (e *PostgresExtractor) extractEnumValuesMap(ctx context.Context, enumTypeNames []string) (map[string][]string, error) {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1 AND t.typname = ANY($2)
		ORDER BY t.typname, e.enumsortorder
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, enumTypeNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var typName, enumLabel string
		if err := rows.Scan(&typName, &enumLabel); err != nil {
			return nil, err
		}
		result[typName] = append(result[typName], enumLabel)
	}

	return result, rows.Err()
}

func (e *PostgresExtractor) extractPrimaryKey(ctx context.Context, tableName string) (string, []string, error) {
	query := `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
			AND kcu.table_name = tc.table_name
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	var name string
	var columns []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&name, &colName); err != nil {
			return "", nil, err
		}
		columns = append(columns, colName)
	}

	return name, columns, rows.Err()
}

// extractForeignKeys reads pg_constraint directly; information_schema cannot pair
// the columns of a composite key with their referenced columns reliably.
func (e *PostgresExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]raw.ForeignKey, error) {
	query := `
		SELECT
			con.conname,
			att.attname,
			ref.relname,
			refatt.attname,
			con.confdeltype::text,
			con.confupdtype::text
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class ref ON ref.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
		JOIN pg_attribute refatt ON refatt.attrelid = con.confrelid AND refatt.attnum = k.refattnum
		WHERE con.contype = 'f'
			AND n.nspname = $1
			AND t.relname = $2
		ORDER BY con.conname, k.ord
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
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

func (e *PostgresExtractor) extractCheckConstraints(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE con.contype = 'c'
			AND n.nspname = $1
			AND t.relname = $2
		ORDER BY con.conname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []string
	for rows.Next() {
		var def string
		if err := rows.Scan(&def); err != nil {
			return nil, err
		}
		checks = append(checks, def)
	}

	return checks, rows.Err()
}

// extractIndexes lists secondary indexes with their key columns in index order.
// Expression keys are reported as their definition text.
func (e *PostgresExtractor) extractIndexes(ctx context.Context, tableName string) ([]raw.Index, error) {
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			am.amname AS method,
			COALESCE(pg_get_expr(ix.indpred, ix.indrelid), '') AS predicate,
			ARRAY(
				SELECT COALESCE(a.attname::text, pg_get_indexdef(ix.indexrelid, k.ord::int, true))
				FROM unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
				LEFT JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
				WHERE k.ord <= ix.indnkeyatts
				ORDER BY k.ord
			) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
		ORDER BY i.relname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []raw.Index
	for rows.Next() {
		var idx raw.Index
		var method string
		if err := rows.Scan(&idx.Name, &idx.Unique, &method, &idx.Where, &idx.Columns); err != nil {
			return nil, err
		}
		idx.Type = raw.ParseIndexType(method)
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}
