package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemacache/internal/raw"
)

var sqliteFixture = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		score REAL DEFAULT 0.5,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE memberships (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL,
		tenant TEXT,
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE grants (
		tenant TEXT,
		member INTEGER,
		role INTEGER,
		FOREIGN KEY (member, role) REFERENCES memberships(user_id, role_id)
	)`,
	`CREATE TABLE notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER REFERENCES users,
		body
	)`,
	`CREATE INDEX users_status_email_index ON users (status, email)`,
	`CREATE INDEX users_active_index ON users (email) WHERE status = 'active'`,
	`CREATE INDEX users_lower_email_index ON users (lower(email))`,
}

func setupSQLite(t *testing.T) Introspector {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	conn, err := sql.Open(sqliteDriverName, path)
	require.NoError(t, err)
	for _, stmt := range sqliteFixture {
		_, err := conn.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, conn.Close())

	introspector, err := Open(ctx, raw.EngineSQLite, path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := introspector.Close(); err != nil {
			t.Errorf("failed to close introspector: %v", err)
		}
	})

	return introspector
}

func TestSQLiteIntrospectTable(t *testing.T) {
	introspector := setupSQLite(t)
	ctx := context.Background()

	assert.Equal(t, raw.EngineSQLite, introspector.Engine())

	table, err := introspector.IntrospectTable(ctx, "users")
	require.NoError(t, err)

	assert.Equal(t, "users", table.Name)
	assert.Equal(t, raw.EngineSQLite, table.Engine)
	verifyColumns(t, table, []string{"id", "email", "status", "score", "created_at"})
	verifyPrimaryKey(t, table, []string{"id"})

	id, _ := table.Column("id")
	assert.True(t, id.AutoIncrement)
	assert.Equal(t, "INTEGER", id.NativeType)

	email, _ := table.Column("email")
	assert.False(t, email.Nullable)
	assert.Empty(t, email.CheckConstraints)

	status, _ := table.Column("status")
	assert.Equal(t, "active", status.Default)
	assert.Equal(t, []string{"CHECK (status IN ('active', 'inactive'))"}, status.CheckConstraints)

	score, _ := table.Column("score")
	assert.True(t, score.Nullable)
	assert.Equal(t, 0.5, score.Default)

	createdAt, _ := table.Column("created_at")
	assert.Equal(t, raw.Expression("CURRENT_TIMESTAMP"), createdAt.Default)

	assert.Empty(t, table.ForeignKeys)
}

func TestSQLiteIndexes(t *testing.T) {
	introspector := setupSQLite(t)

	table, err := introspector.IntrospectTable(context.Background(), "users")
	require.NoError(t, err)

	// the expression-only index has no named column and is left out
	require.Len(t, table.Indices, 3)
	assert.Equal(t, "sqlite_autoindex_users_1", table.Indices[0].Name)
	assert.True(t, table.Indices[0].Unique)

	active := verifyIndex(t, table, "users_active_index", []string{"email"})
	assert.Equal(t, "status = 'active'", active.Where)
	assert.False(t, active.Unique)

	composite := verifyIndex(t, table, "users_status_email_index", []string{"status", "email"})
	assert.Equal(t, raw.IndexBTree, composite.Type)
	assert.Empty(t, composite.Where)
}

func TestSQLiteCompositeKeys(t *testing.T) {
	introspector := setupSQLite(t)
	ctx := context.Background()

	memberships, err := introspector.IntrospectTable(ctx, "memberships")
	require.NoError(t, err)

	verifyPrimaryKey(t, memberships, []string{"user_id", "role_id"})
	assert.True(t, memberships.PrimaryKey.Composite())
	verifyForeignKey(t, memberships, []string{"user_id"}, "users", []string{"id"})
	assert.Equal(t, raw.ActionCascade, memberships.ForeignKeys[0].OnDelete)
	assert.Equal(t, raw.ActionNone, memberships.ForeignKeys[0].OnUpdate)

	userID, _ := memberships.Column("user_id")
	assert.False(t, userID.AutoIncrement)

	grants, err := introspector.IntrospectTable(ctx, "grants")
	require.NoError(t, err)

	require.Len(t, grants.ForeignKeys, 1)
	verifyForeignKey(t, grants, []string{"member", "role"}, "memberships", []string{"user_id", "role_id"})
	assert.False(t, grants.PrimaryKey.Composite())
	assert.Empty(t, grants.PrimaryKey.Columns)
}

func TestSQLiteImplicitReference(t *testing.T) {
	introspector := setupSQLite(t)

	notes, err := introspector.IntrospectTable(context.Background(), "notes")
	require.NoError(t, err)

	verifyForeignKey(t, notes, []string{"user_id"}, "users", []string{"id"})

	id, _ := notes.Column("id")
	assert.True(t, id.AutoIncrement)

	body, _ := notes.Column("body")
	assert.Empty(t, body.NativeType)
}

func TestSQLiteTableNotFound(t *testing.T) {
	introspector := setupSQLite(t)

	_, err := introspector.IntrospectTable(context.Background(), "ghosts")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestSQLiteListTables(t *testing.T) {
	introspector := setupSQLite(t)

	tables, err := introspector.ListTables(context.Background())
	require.NoError(t, err)
	// sqlite_sequence exists because notes uses AUTOINCREMENT
	assert.Equal(t, []string{"grants", "memberships", "notes", "users"}, tables)
}
