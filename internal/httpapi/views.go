package httpapi

import (
	"tsdbmeta/pkg/meta"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/table"
)

// ColumnView renders one schema.Column for introspection.
type ColumnView struct {
	ColID uint16 `json:"col_id"`
	Type  string `json:"type"`
	Bytes uint16 `json:"bytes"`
}

// SchemaView renders one schema.Schema.
type SchemaView struct {
	Version int32        `json:"version"`
	Columns []ColumnView `json:"columns"`
}

func newSchemaView(s *schema.Schema) *SchemaView {
	if s == nil {
		return nil
	}
	v := &SchemaView{Version: s.Version, Columns: make([]ColumnView, 0, len(s.Columns))}
	for _, c := range s.Columns {
		v.Columns = append(v.Columns, ColumnView{ColID: c.ColID, Type: c.Type.String(), Bytes: c.Bytes})
	}
	return v
}

// TableView renders one table.Table for introspection. Fields meaningless
// for a given Kind are omitted from the JSON output.
type TableView struct {
	UID       uint64      `json:"uid"`
	TID       uint32      `json:"tid,omitempty"`
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	SuperUID  uint64      `json:"super_uid,omitempty"`
	SQL       string      `json:"sql,omitempty"`
	Schema    *SchemaView `json:"schema,omitempty"`
	TagSchema *SchemaView `json:"tag_schema,omitempty"`
	RefCount  int32       `json:"ref_count"`
}

func newTableView(r *meta.Registry, t *table.Table) TableView {
	v := TableView{
		UID:      t.UID(),
		TID:      t.TID(),
		Name:     t.Name(),
		Kind:     t.Kind().String(),
		RefCount: t.RefCount(),
	}
	switch t.Kind() {
	case schema.KindChild:
		v.SuperUID = t.SuperUID()
	case schema.KindStream:
		v.SQL = t.SQL()
	}
	v.Schema = newSchemaView(r.GetSchema(t))
	v.TagSchema = newSchemaView(r.GetTagSchema(t))
	return v
}

// StatsView renders the registry-wide counters of spec §3.
type StatsView struct {
	ShardID     uint32 `json:"shard_id"`
	NTables     int    `json:"n_tables"`
	NSupers     int    `json:"n_supers"`
	MaxCols     int    `json:"max_cols"`
	MaxRowBytes int    `json:"max_row_bytes"`
}
