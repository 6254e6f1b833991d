// Package raw holds table metadata exactly as a database engine reports it,
// before any type normalization.
package raw

// Engine identifies a database engine
type Engine string

const (
	EngineSQLite   Engine = "sqlite"
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
)

// Action is a referential action of a foreign key
type Action string

const (
	ActionNone       Action = "none"
	ActionRestrict   Action = "restrict"
	ActionCascade    Action = "cascade"
	ActionSetNull    Action = "set_null"
	ActionSetDefault Action = "set_default"
)

// IndexType is the access method of an index
type IndexType string

const (
	IndexBTree   IndexType = "btree"
	IndexHash    IndexType = "hash"
	IndexGIN     IndexType = "gin"
	IndexGiST    IndexType = "gist"
	IndexBRIN    IndexType = "brin"
	IndexUnknown IndexType = "unknown"
)

// Expression is a column default that is an SQL expression rather than a literal,
// e.g. now() or nextval('users_id_seq'::regclass).
type Expression string

// Table represents a database table
type Table struct {
	Name        string
	Engine      Engine
	Columns     []Column
	PrimaryKey  PrimaryKey
	ForeignKeys []ForeignKey
	Indices     []Index
}

// Column represents a table column
type Column struct {
	Name             string
	NativeType       string
	Nullable         bool
	Default          any // nil, string, int64, float64, bool or Expression
	IsPrimaryKey     bool
	IsForeignKey     bool
	CheckConstraints []string
	AutoIncrement    bool
	EnumValues       []string
}

// PrimaryKey represents the primary key constraint of a table
type PrimaryKey struct {
	Name    string
	Columns []Column
}

// Composite reports whether the key spans more than one column
func (pk PrimaryKey) Composite() bool {
	return len(pk.Columns) > 1
}

// ForeignKey represents one foreign key constraint, possibly spanning several columns
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          Action
	OnUpdate          Action
}

// Index represents a database index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Type    IndexType
	Where   string
}

// Column returns the column with the given name
func (t *Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ParseAction maps an engine's spelling of a referential action
func ParseAction(s string) Action {
	switch normalizeWord(s) {
	case "CASCADE", "C":
		return ActionCascade
	case "RESTRICT", "R":
		return ActionRestrict
	case "SET NULL", "N":
		return ActionSetNull
	case "SET DEFAULT", "D":
		return ActionSetDefault
	default:
		return ActionNone
	}
}

// ParseIndexType maps an access method name to an IndexType
func ParseIndexType(s string) IndexType {
	switch normalizeWord(s) {
	case "BTREE", "":
		return IndexBTree
	case "HASH":
		return IndexHash
	case "GIN":
		return IndexGIN
	case "GIST":
		return IndexGiST
	case "BRIN":
		return IndexBRIN
	default:
		return IndexUnknown
	}
}
