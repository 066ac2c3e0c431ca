// Package schema holds the value types and builders for column schemas and
// tag-value rows. It is pure data: no I/O, no locking.
package schema

import "sort"

// ColType enumerates the scalar types a column can hold. The numeric values
// double as the on-wire tag, so they must never be reassigned.
type ColType uint8

const (
	ColBool ColType = iota + 1
	ColTinyInt
	ColSmallInt
	ColInt
	ColBigInt
	ColFloat
	ColDouble
	ColTimestamp
	ColBinary
	ColNChar
)

// IsVarData reports whether a column of this type carries a variable-length
// payload with an embedded length prefix.
func (t ColType) IsVarData() bool {
	return t == ColBinary || t == ColNChar
}

func (t ColType) String() string {
	switch t {
	case ColBool:
		return "bool"
	case ColTinyInt:
		return "tinyint"
	case ColSmallInt:
		return "smallint"
	case ColInt:
		return "int"
	case ColBigInt:
		return "bigint"
	case ColFloat:
		return "float"
	case ColDouble:
		return "double"
	case ColTimestamp:
		return "timestamp"
	case ColBinary:
		return "binary"
	case ColNChar:
		return "nchar"
	default:
		return "unknown"
	}
}

// Column describes one column of a schema: its identity, type and storage
// width.
type Column struct {
	ColID uint16
	Type  ColType
	Bytes uint16
}

// Schema is an ordered, versioned set of columns. Column order is the wire
// and row order; ColID is the lookup key.
type Schema struct {
	Version int32
	Columns []Column
}

// NCols returns the number of columns in the schema.
func (s *Schema) NCols() int {
	if s == nil {
		return 0
	}
	return len(s.Columns)
}

// RowBytes returns the maximum encoded row width implied by this schema:
// the sum of every column's declared byte width.
func (s *Schema) RowBytes() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, c := range s.Columns {
		total += int(c.Bytes)
	}
	return total
}

// ColAt returns the column at a fixed schema position, used to resolve the
// designated tag-index column (index 0 of a tag schema).
func (s *Schema) ColAt(i int) (Column, bool) {
	if s == nil || i < 0 || i >= len(s.Columns) {
		return Column{}, false
	}
	return s.Columns[i], true
}

// ColByID finds a column by its ColID.
func (s *Schema) ColByID(colID uint16) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	for _, c := range s.Columns {
		if c.ColID == colID {
			return c, true
		}
	}
	return Column{}, false
}

// Dup returns a deep, independent copy of the schema.
func (s *Schema) Dup() *Schema {
	if s == nil {
		return nil
	}
	cols := make([]Column, len(s.Columns))
	copy(cols, s.Columns)
	return &Schema{Version: s.Version, Columns: cols}
}

// Builder accumulates columns for a schema under construction.
type Builder struct {
	version int32
	columns []Column
}

// NewBuilder starts a schema builder at the given version.
func NewBuilder(version int32) *Builder {
	return &Builder{version: version}
}

// AddColumn appends one column definition to the schema under construction.
func (b *Builder) AddColumn(colID uint16, typ ColType, bytes uint16) *Builder {
	b.columns = append(b.columns, Column{ColID: colID, Type: typ, Bytes: bytes})
	return b
}

// Build finalizes the schema. Columns are kept in the order they were added;
// the caller is responsible for putting the designated tag-index column
// first when building a tag schema.
func (b *Builder) Build() *Schema {
	cols := make([]Column, len(b.columns))
	copy(cols, b.columns)
	return &Schema{Version: b.version, Columns: cols}
}

// History is the bounded, newest-last sequence of schema versions a
// non-child table carries. Capacity is fixed at construction time
// (MaxSchemasPerTable in the registry config).
type History struct {
	cap   int
	items []*Schema
}

// NewHistory creates an empty history with the given capacity.
func NewHistory(capacity int) *History {
	return &History{cap: capacity}
}

// Newest returns the most recently appended schema, or nil if the history
// is empty.
func (h *History) Newest() *Schema {
	if h == nil || len(h.items) == 0 {
		return nil
	}
	return h.items[len(h.items)-1]
}

// ByVersion performs a binary search for the exact version requested, since
// versions are strictly increasing across the sequence.
func (h *History) ByVersion(v int32) (*Schema, bool) {
	if h == nil {
		return nil, false
	}
	i := sort.Search(len(h.items), func(i int) bool {
		return h.items[i].Version >= v
	})
	if i < len(h.items) && h.items[i].Version == v {
		return h.items[i], true
	}
	return nil, false
}

// Append admits a new schema version, FIFO-evicting the oldest entry when
// the history is already at capacity. The caller must ensure versions are
// strictly increasing; Append does not itself validate that.
func (h *History) Append(s *Schema) {
	if len(h.items) >= h.cap {
		h.items = h.items[1:]
	}
	h.items = append(h.items, s)
}

// Len returns the number of schema versions currently retained.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.items)
}

// All returns the retained schema versions, oldest first. Callers must not
// mutate the returned slice.
func (h *History) All() []*Schema {
	if h == nil {
		return nil
	}
	return h.items
}
