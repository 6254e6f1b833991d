package schema

// Index represents a database index
type Index struct {
	Name   string
	Fields []Field
	Unique bool
	Type   string
	Where  string
}

// Composite reports whether the index spans more than one field
func (idx Index) Composite() bool {
	return len(idx.Fields) > 1
}

// Covers reports whether the index includes the named field
func (idx Index) Covers(name Symbol) bool {
	for _, f := range idx.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Indices owns the indices of a table
type Indices struct {
	List []Index
}

// Count returns the number of indices
func (ix Indices) Count() int {
	return len(ix.List)
}

// Unique returns the unique indices
func (ix Indices) Unique() Indices {
	return ix.filter(func(idx Index) bool { return idx.Unique })
}

// Composite returns the indices spanning more than one field
func (ix Indices) Composite() Indices {
	return ix.filter(Index.Composite)
}

// ByField returns the indices that cover the named field
func (ix Indices) ByField(name Symbol) Indices {
	return ix.filter(func(idx Index) bool { return idx.Covers(name) })
}

// Find returns the index with the given name
func (ix Indices) Find(name string) (Index, bool) {
	for _, idx := range ix.List {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

func (ix Indices) filter(keep func(Index) bool) Indices {
	var out []Index
	for _, idx := range ix.List {
		if keep(idx) {
			out = append(out, idx)
		}
	}
	return Indices{List: out}
}
