package raw

import "strings"

// Node is one part of a raw table. The set of implementations is closed:
// *Table, PrimaryKey, Column, ForeignKey and Index.
type Node interface {
	node()
}

func (*Table) node()     {}
func (PrimaryKey) node() {}
func (Column) node()     {}
func (ForeignKey) node() {}
func (Index) node()      {}

// Nodes enumerates the parts of a table in dependency order: the table itself,
// its primary key, its columns, its foreign keys and finally its indices.
// Later parts may rely on classifications made while visiting earlier ones.
func Nodes(t *Table) []Node {
	nodes := make([]Node, 0, 2+len(t.Columns)+len(t.ForeignKeys)+len(t.Indices))
	nodes = append(nodes, t, t.PrimaryKey)
	for _, col := range t.Columns {
		nodes = append(nodes, col)
	}
	for _, fk := range t.ForeignKeys {
		nodes = append(nodes, fk)
	}
	for _, idx := range t.Indices {
		nodes = append(nodes, idx)
	}
	return nodes
}

func normalizeWord(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(strings.ReplaceAll(s, "_", " "))), " ")
}
