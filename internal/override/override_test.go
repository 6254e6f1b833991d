package override

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemacache/internal/schema"
	"github.com/tordrt/schemacache/internal/types"
)

const usersYAML = `
source: users
fields:
  - name: status
    type: enum(active, inactive)
    default: active
  - name: settings
    type: map
    nullable: true
    default: {theme: dark, retries: 3}
    extra:
      redact: true
      tags: [a, 1]
  - name: created_at
    type: utc_datetime
    default_expression: now()
    check_constraints: ["CHECK (created_at > '2000-01-01')"]
  - name: scores
    type: array(array(float))
primary_key: [id]
foreign_keys:
  - field: org_id
    references: orgs.uuid
    on_delete: set_null
  - field: owner
    references: users
indices:
  - name: users_status_index
    fields: [status]
    type: hash
`

const usersTOML = `
source = "users"
primary_key = ["id"]

[[fields]]
name = "status"
type = "enum(active, inactive)"
default = "active"

[[fields]]
name = "settings"
type = "map"
nullable = true
default = { theme = "dark", retries = 3 }

[fields.extra]
redact = true
tags = ["a", 1]

[[fields]]
name = "created_at"
type = "utc_datetime"
default_expression = "now()"
check_constraints = ["CHECK (created_at > '2000-01-01')"]

[[fields]]
name = "scores"
type = "array(array(float))"

[[foreign_keys]]
field = "org_id"
references = "orgs.uuid"
on_delete = "set_null"

[[foreign_keys]]
field = "owner"
references = "users"

[[indices]]
name = "users_status_index"
fields = ["status"]
type = "hash"
`

func wantUsers() schema.Schema {
	return schema.Schema{
		Source:     "users",
		PrimaryKey: schema.PrimaryKey{Fields: []schema.Field{{Name: "id"}}},
		ForeignKeys: []schema.ForeignKey{
			{
				Field: "org_id", ReferencedTable: "orgs", ReferencedField: "uuid", AssociationName: "org",
				Fields: []schema.Symbol{"org_id"}, ReferencedFields: []schema.Symbol{"uuid"},
				OnDelete: "set_null", OnUpdate: "none",
			},
			{
				Field: "owner", ReferencedTable: "users", ReferencedField: "id", AssociationName: "users",
				Fields: []schema.Symbol{"owner"}, ReferencedFields: []schema.Symbol{"id"},
				OnDelete: "none", OnUpdate: "none",
			},
		},
		Fields: []schema.Field{
			{Name: "status", Type: types.EnumOf("active", "inactive"), Meta: schema.Meta{Default: "active"}},
			{Name: "settings", Type: types.Of(types.Map), Meta: schema.Meta{
				Nullable: schema.Bool(true),
				Default:  map[string]any{"theme": "dark", "retries": int64(3)},
				Extra:    map[string]any{"redact": true, "tags": []any{"a", int64(1)}},
			}},
			{Name: "created_at", Type: types.Of(types.UTCDatetime), Meta: schema.Meta{
				Default:          schema.Expression("now()"),
				CheckConstraints: []string{"CHECK (created_at > '2000-01-01')"},
			}},
			{Name: "scores", Type: types.ArrayOf(types.ArrayOf(types.Of(types.Float)))},
		},
		Indices: schema.Indices{List: []schema.Index{
			{Name: "users_status_index", Fields: []schema.Field{{Name: "status"}}, Type: "hash"},
		}},
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{name: "yaml", data: usersYAML, format: FormatYAML},
		{name: "toml", data: usersTOML, format: FormatTOML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data), tt.format)
			require.NoError(t, err)
			if diff := cmp.Diff(wantUsers(), got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   error
	}{
		{name: "unknown yaml key", data: "fields:\n  - name: a\n    nulable: true\n", format: FormatYAML},
		{name: "unknown toml key", data: "[[fields]]\nname = \"a\"\nnulable = true\n", format: FormatTOML, want: ErrInvalidOverride},
		{name: "bad type", data: "fields:\n  - name: a\n    type: varchar(20)\n", format: FormatYAML, want: ErrInvalidOverride},
		{name: "unnamed field", data: "fields:\n  - type: integer\n", format: FormatYAML, want: ErrInvalidOverride},
		{name: "duplicate field", data: "fields:\n  - name: a\n  - name: a\n", format: FormatYAML, want: ErrInvalidOverride},
		{name: "both defaults", data: "fields:\n  - name: a\n    default: 1\n    default_expression: now()\n", format: FormatYAML, want: ErrInvalidOverride},
		{name: "foreign key without table", data: "foreign_keys:\n  - field: a\n    references: .id\n", format: FormatYAML, want: ErrInvalidOverride},
		{name: "index without fields", data: "indices:\n  - name: empty\n", format: FormatYAML, want: ErrInvalidOverride},
		{name: "unknown format", data: "{}", format: Format("json"), want: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format)
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	s, err := Decode(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, s.Fields)
	assert.False(t, s.PrimaryKey.Present())
}

func TestOverrideMergesOntoInferred(t *testing.T) {
	override, err := Decode([]byte("fields:\n  - name: status\n    type: enum(active, inactive)\n"), FormatYAML)
	require.NoError(t, err)

	inferred := schema.Schema{Source: "users", Fields: []schema.Field{{
		Name: "status",
		Type: types.Of(types.String),
		Meta: schema.Meta{Source: "status", Nullable: schema.Bool(false), Default: "active"},
	}}}

	merged, err := schema.Merge(inferred, override)
	require.NoError(t, err)

	status, _ := merged.Field("status")
	assert.Equal(t, "enum(active,inactive)", status.Type.String())
	assert.Nil(t, status.Meta.Default)
	assert.False(t, *status.Meta.Nullable)
}

func TestDirLookup(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/overrides/users.yml", []byte(usersYAML), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/overrides/orgs.toml", []byte("source = \"organizations\"\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/overrides/broken.yaml", []byte("fields: {"), 0o644))

	dir := NewDir(fs, "/overrides")

	users, err := dir.Lookup("users")
	require.NoError(t, err)
	require.NotNil(t, users)
	assert.Len(t, users.Fields, 4)

	orgs, err := dir.Lookup("orgs")
	require.NoError(t, err)
	require.NotNil(t, orgs)
	assert.Equal(t, "organizations", orgs.Source)

	missing, err := dir.Lookup("posts")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = dir.Lookup("broken")
	assert.Error(t, err)

	none, err := NewDir(fs, "").Lookup("users")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/overrides/users.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
