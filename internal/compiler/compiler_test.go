package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemacache/internal/raw"
	"github.com/tordrt/schemacache/internal/schema"
)

func postsTable() *raw.Table {
	id := raw.Column{Name: "id", NativeType: "bigserial", IsPrimaryKey: true, AutoIncrement: true,
		Default: raw.Expression("nextval('posts_id_seq'::regclass)")}
	title := raw.Column{Name: "title", NativeType: "character varying(200)", CheckConstraints: []string{"CHECK (char_length(title) > 0)"}}
	body := raw.Column{Name: "body", NativeType: "text", Nullable: true}
	userID := raw.Column{Name: "user_id", NativeType: "integer", IsForeignKey: true}
	tags := raw.Column{Name: "tags", NativeType: "text[]", Nullable: true, Default: "{}"}

	return &raw.Table{
		Name:       "posts",
		Engine:     raw.EnginePostgres,
		Columns:    []raw.Column{id, title, body, userID, tags},
		PrimaryKey: raw.PrimaryKey{Name: "posts_pkey", Columns: []raw.Column{id}},
		ForeignKeys: []raw.ForeignKey{{
			Name:              "posts_user_id_fkey",
			Columns:           []string{"user_id"},
			ReferencedTable:   "users",
			ReferencedColumns: []string{"id"},
			OnDelete:          raw.ActionCascade,
		}},
		Indices: []raw.Index{
			{Name: "posts_user_id_title_index", Columns: []string{"user_id", "title"}, Type: raw.IndexBTree},
			{Name: "posts_tags_index", Columns: []string{"tags"}, Type: raw.IndexGIN},
			{Name: "posts_lower_title_index", Columns: []string{"lower(title)"}, Type: raw.IndexBTree},
		},
	}
}

func TestCompileSinglePrimaryKey(t *testing.T) {
	table := &raw.Table{
		Name:   "users",
		Engine: raw.EngineSQLite,
		Columns: []raw.Column{
			{Name: "id", NativeType: "INTEGER", IsPrimaryKey: true, AutoIncrement: true},
			{Name: "name", NativeType: "TEXT"},
			{Name: "email", NativeType: "TEXT"},
		},
		PrimaryKey: raw.PrimaryKey{Columns: []raw.Column{{Name: "id", NativeType: "INTEGER"}}},
	}

	s := New().Compile(table)

	assert.False(t, s.PrimaryKey.Composite())
	require.Len(t, s.PrimaryKey.Fields, 1)
	assert.Equal(t, schema.Symbol("id"), s.PrimaryKey.Fields[0].Name)
	assert.Equal(t, "integer", s.PrimaryKey.Fields[0].Type.String())
	assert.Equal(t, 1, s.PrimaryKey.Fields[0].Meta.PrimaryKeyFieldCount)
	assert.True(t, s.PrimaryKey.Fields[0].Meta.AutoIncrement)
	assert.Equal(t, []schema.Symbol{"id", "name", "email"}, s.FieldNames())
	require.NoError(t, s.Validate())
}

func TestCompileCompositePrimaryKey(t *testing.T) {
	roleID := raw.Column{Name: "role_id", NativeType: "integer"}
	userID := raw.Column{Name: "user_id", NativeType: "integer"}
	table := &raw.Table{
		Name:   "memberships",
		Engine: raw.EnginePostgres,
		// declared key order differs from column order
		Columns:    []raw.Column{roleID, userID, {Name: "granted_at", NativeType: "timestamp with time zone"}},
		PrimaryKey: raw.PrimaryKey{Columns: []raw.Column{userID, roleID}},
	}

	s := New().Compile(table)

	assert.True(t, s.PrimaryKey.Composite())
	assert.Equal(t, []schema.Symbol{"user_id", "role_id"}, s.PrimaryKey.Names())
	for _, f := range s.PrimaryKey.Fields {
		assert.True(t, f.Meta.IsPrimaryKey)
		assert.Equal(t, 2, f.Meta.PrimaryKeyFieldCount)
	}

	grantedAt, _ := s.Field("granted_at")
	assert.False(t, grantedAt.Meta.IsPrimaryKey)
	assert.Zero(t, grantedAt.Meta.PrimaryKeyFieldCount)
}

func TestCompileForeignKey(t *testing.T) {
	s := New().Compile(postsTable())

	require.Len(t, s.ForeignKeys, 1)
	fk := s.ForeignKeys[0]
	assert.Equal(t, schema.Symbol("user_id"), fk.Field)
	assert.Equal(t, "users", fk.ReferencedTable)
	assert.Equal(t, schema.Symbol("id"), fk.ReferencedField)
	assert.Equal(t, schema.Symbol("user"), fk.AssociationName)
	assert.Equal(t, "cascade", fk.OnDelete)
	assert.Equal(t, "none", fk.OnUpdate)

	userID, _ := s.Field("user_id")
	assert.True(t, userID.Meta.IsForeignKey)
	assert.True(t, s.IsForeignKey("user_id"))
}

func TestCompileCompositeForeignKey(t *testing.T) {
	table := &raw.Table{
		Name:   "grants",
		Engine: raw.EngineSQLite,
		Columns: []raw.Column{
			{Name: "tenant", NativeType: "TEXT"},
			{Name: "member", NativeType: "INTEGER"},
		},
		ForeignKeys: []raw.ForeignKey{{
			Columns:           []string{"tenant", "member"},
			ReferencedTable:   "memberships",
			ReferencedColumns: []string{"tenant_id", "user_id"},
		}},
	}

	s := New().Compile(table)

	require.Len(t, s.ForeignKeys, 1)
	fk := s.ForeignKeys[0]
	assert.True(t, fk.Composite())
	assert.Equal(t, schema.Symbol("tenant"), fk.Field)
	assert.Equal(t, schema.Symbol("tenant_id"), fk.ReferencedField)
	assert.Equal(t, []schema.Symbol{"tenant", "member"}, fk.Fields)
	// no suffix to strip
	assert.Equal(t, schema.Symbol("memberships"), fk.AssociationName)

	member, _ := s.Field("member")
	assert.True(t, member.Meta.IsForeignKey)
}

func TestCompileAssociationSuffixes(t *testing.T) {
	table := &raw.Table{
		Name:        "docs",
		Engine:      raw.EnginePostgres,
		Columns:     []raw.Column{{Name: "ownerUuid", NativeType: "uuid"}},
		ForeignKeys: []raw.ForeignKey{{Columns: []string{"ownerUuid"}, ReferencedTable: "users", ReferencedColumns: []string{"uuid"}}},
	}

	s := New(WithAssociationSuffixes("_id", "Uuid")).Compile(table)
	assert.Equal(t, schema.Symbol("owner"), s.ForeignKeys[0].AssociationName)
}

func TestCompileClassificationIgnoresNames(t *testing.T) {
	table := &raw.Table{
		Name:   "events",
		Engine: raw.EnginePostgres,
		Columns: []raw.Column{
			{Name: "id", NativeType: "integer"},
			{Name: "foo_id", NativeType: "integer"},
			{Name: "seq", NativeType: "integer"},
		},
		PrimaryKey: raw.PrimaryKey{Columns: []raw.Column{{Name: "seq"}}},
	}

	s := New().Compile(table)

	id, _ := s.Field("id")
	assert.False(t, id.Meta.IsPrimaryKey)
	assert.False(t, s.IsPrimaryKey("id"))

	fooID, _ := s.Field("foo_id")
	assert.False(t, fooID.Meta.IsForeignKey)
	assert.False(t, s.IsForeignKey("foo_id"))
	assert.Empty(t, s.ForeignKeys)

	assert.Equal(t, []schema.Symbol{"seq"}, s.PrimaryKey.Names())
}

func TestCompileIndices(t *testing.T) {
	s := New().Compile(postsTable())

	// the expression index resolves to no field and is dropped
	assert.Equal(t, 2, s.Indices.Count())

	idx, ok := s.Indices.Find("posts_user_id_title_index")
	require.True(t, ok)
	assert.Equal(t, []schema.Symbol{"user_id", "title"}, []schema.Symbol{idx.Fields[0].Name, idx.Fields[1].Name})
	assert.Equal(t, "btree", idx.Type)

	gin, _ := s.Indices.Find("posts_tags_index")
	assert.Equal(t, "gin", gin.Type)
	assert.Equal(t, "array(string)", gin.Fields[0].Type.String())
}

func TestCompileMeta(t *testing.T) {
	s := New().Compile(postsTable())

	id, _ := s.Field("id")
	assert.Equal(t, schema.Expression("nextval('posts_id_seq'::regclass)"), id.Meta.Default)
	assert.Equal(t, "integer", id.Type.String())

	title, _ := s.Field("title")
	assert.Equal(t, []string{"CHECK (char_length(title) > 0)"}, title.Meta.CheckConstraints)
	assert.False(t, *title.Meta.Nullable)
	assert.Equal(t, "title", title.Meta.Source)

	body, _ := s.Field("body")
	assert.True(t, *body.Meta.Nullable)
}

func TestCompileDeterministic(t *testing.T) {
	c := New()
	first := c.Compile(postsTable())
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, c.Compile(postsTable())); diff != "" {
			t.Fatalf("Compile() not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestCompileDoesNotAliasRawTable(t *testing.T) {
	table := postsTable()
	s := New().Compile(table)

	table.Columns[1].CheckConstraints[0] = "mutated"

	title, _ := s.Field("title")
	assert.Equal(t, "CHECK (char_length(title) > 0)", title.Meta.CheckConstraints[0])
}

func TestCompileEmptyTable(t *testing.T) {
	s := New().Compile(&raw.Table{Name: "empty", Engine: raw.EnginePostgres})

	assert.Equal(t, "empty", s.Source)
	assert.Empty(t, s.Fields)
	assert.False(t, s.PrimaryKey.Present())
	assert.NoError(t, s.Validate())
}
