package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tordrt/schemacache/internal/types"
)

func TestSchemaAccessors(t *testing.T) {
	s := usersSchema()

	assert.Equal(t, []Symbol{"id", "status", "org_id"}, s.FieldNames())

	f, ok := s.Field("status")
	assert.True(t, ok)
	assert.Equal(t, "string", f.Type.String())

	_, ok = s.Field("missing")
	assert.False(t, ok)

	assert.True(t, s.IsPrimaryKey("id"))
	assert.False(t, s.IsPrimaryKey("org_id"))
	assert.True(t, s.IsForeignKey("org_id"))
	assert.False(t, s.IsForeignKey("id"))

	fk, ok := s.ForeignKey("org_id")
	assert.True(t, ok)
	assert.Equal(t, Symbol("org"), fk.AssociationName)
	assert.False(t, fk.Composite())

	assert.True(t, s.PrimaryKey.Present())
	assert.False(t, s.PrimaryKey.Composite())
	assert.False(t, PrimaryKey{}.Present())
}

func TestIndices(t *testing.T) {
	a := Field{Name: "a", Type: types.Of(types.Integer)}
	b := Field{Name: "b", Type: types.Of(types.String)}
	c := Field{Name: "c", Type: types.Of(types.Date)}

	ix := Indices{List: []Index{
		{Name: "idx_a", Fields: []Field{a}},
		{Name: "uniq_b_c", Fields: []Field{b, c}, Unique: true},
		{Name: "idx_c_a", Fields: []Field{c, a}},
	}}

	assert.Equal(t, 3, ix.Count())
	assert.Equal(t, 1, ix.Unique().Count())
	assert.Equal(t, 2, ix.Composite().Count())
	assert.Equal(t, 2, ix.ByField("a").Count())
	assert.Equal(t, 0, ix.ByField("z").Count())

	idx, ok := ix.Find("idx_c_a")
	assert.True(t, ok)
	assert.Equal(t, Symbol("c"), idx.Fields[0].Name)
	assert.Equal(t, Symbol("a"), idx.Fields[1].Name)

	_, ok = ix.Find("nope")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Schema)
		wantErr bool
	}{
		{name: "valid", mutate: func(s *Schema) {}},
		{
			name:    "duplicate field",
			mutate:  func(s *Schema) { s.Fields = append(s.Fields, Field{Name: "id"}) },
			wantErr: true,
		},
		{
			name:    "empty field name",
			mutate:  func(s *Schema) { s.Fields = append(s.Fields, Field{}) },
			wantErr: true,
		},
		{
			name:    "primary key on unknown field",
			mutate:  func(s *Schema) { s.PrimaryKey.Fields = []Field{{Name: "ghost"}} },
			wantErr: true,
		},
		{
			name:    "foreign key on unknown field",
			mutate:  func(s *Schema) { s.ForeignKeys[0].Field = "ghost" },
			wantErr: true,
		},
		{
			name:    "index on unknown field",
			mutate:  func(s *Schema) { s.Indices.List[0].Fields = []Field{{Name: "ghost"}} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := usersSchema()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
