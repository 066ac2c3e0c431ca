// Package table implements the Table object of spec §4.2: the in-memory
// representation of one row of the registry, in its four variants (Normal,
// Super, Child, Stream).
package table

import (
	"sync"
	"sync/atomic"

	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/tablecfg"
)

// Table is one entry of the registry. Which fields are meaningful depends
// on Kind, mirroring the original's single STable struct reused across
// variants rather than a Go sum type — the registry and tag-index both need
// to hold *Table uniformly regardless of kind.
type Table struct {
	kind schema.TableKind
	uid  uint64
	tid  uint32
	name string

	mu      sync.RWMutex
	history *schema.History // Normal, Stream, Super: column schema versions

	tagSchema *schema.Schema // Super: tag column layout
	tagIndex  *TagIndex      // Super: index on the designated tag column

	superUID uint64 // Child: uid of owning Super
	pSuper   *Table // Child: resolved link, set by reorg/createTable
	tagRow   *schema.TagRow // Child: this table's tag values

	sql string // Stream: source query text

	refCount atomic.Int32
}

// New constructs a Table from a validated Cfg. historyCap bounds the schema
// history kept for Normal/Stream/Super tables (spec §3's "bounded,
// FIFO-evicting" history) and must be at least 1 for those kinds; it is
// ignored for Child.
//
// The caller must have already called cfg.Validate(); New does not
// re-validate kind-specific field presence.
func New(cfg *tablecfg.Cfg, historyCap int) *Table {
	t := &Table{
		kind: cfg.Kind,
		uid:  cfg.UID,
		tid:  cfg.TID,
		name: cfg.Name,
	}
	t.refCount.Store(1)

	switch cfg.Kind {
	case schema.KindNormal, schema.KindStream:
		t.history = schema.NewHistory(historyCap)
		t.history.Append(cfg.Schema)
		t.sql = cfg.SQL
	case schema.KindSuper:
		t.history = schema.NewHistory(historyCap)
		t.history.Append(cfg.Schema)
		t.tagSchema = cfg.TagSchema
		t.tagIndex = NewTagIndex()
	case schema.KindChild:
		t.superUID = cfg.SuperUID
		if cfg.TagValues != nil {
			t.tagRow = cfg.TagValues.Dup()
		}
	}
	return t
}

func (t *Table) Kind() schema.TableKind { return t.kind }
func (t *Table) UID() uint64            { return t.uid }
func (t *Table) TID() uint32            { return t.tid }

func (t *Table) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *Table) SetName(name string) {
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
}

// SQL returns the source query text of a Stream table.
func (t *Table) SQL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sql
}

// Schema returns the newest column schema of a Normal, Stream or Super
// table; nil for a Child.
func (t *Table) Schema() *schema.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.history == nil {
		return nil
	}
	return t.history.Newest()
}

// SchemaByVersion returns the column schema with the given version, if still
// retained in history.
func (t *Table) SchemaByVersion(version int32) (*schema.Schema, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.history == nil {
		return nil, false
	}
	return t.history.ByVersion(version)
}

// SchemaHistory returns every column schema version currently retained,
// oldest first. Used by the action-log encoder so a restart recovers the
// whole bounded history, not just the newest version.
func (t *Table) SchemaHistory() []*schema.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.history == nil {
		return nil
	}
	return t.history.All()
}

// PushSchema appends a new column schema version, evicting the oldest if
// history is at capacity (spec §3, §4.3 updateTable).
func (t *Table) PushSchema(s *schema.Schema) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history.Append(s)
}

// TagSchema returns the tag column layout of a Super table.
func (t *Table) TagSchema() *schema.Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tagSchema
}

// SetTagSchema replaces the tag column layout, used when updateTable raises
// the tag-schema version (spec §4.3).
func (t *Table) SetTagSchema(s *schema.Schema) {
	t.mu.Lock()
	t.tagSchema = s
	t.mu.Unlock()
}

// TagIndex returns the Super table's secondary index.
func (t *Table) TagIndex() *TagIndex { return t.tagIndex }

// SuperUID returns the uid of this Child's owning Super.
func (t *Table) SuperUID() uint64 { return t.superUID }

// Super returns the resolved parent link, nil until createTable/reorg sets
// it via SetSuper.
func (t *Table) Super() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pSuper
}

// SetSuper resolves the Child's parent link.
func (t *Table) SetSuper(super *Table) {
	t.mu.Lock()
	t.pSuper = super
	t.mu.Unlock()
}

// TagValue returns the raw bytes stored for colID on a Child's tag row.
func (t *Table) TagValue(colID uint16) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.tagRow == nil {
		return nil, false
	}
	return t.tagRow.Get(colID)
}

// TagRow returns a copy of the Child's full tag-value row.
func (t *Table) TagRow() *schema.TagRow {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.tagRow == nil {
		return nil
	}
	return t.tagRow.Dup()
}

// SetTagValue overwrites one tag column's value on the Child's row.
func (t *Table) SetTagValue(colID uint16, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tagRow == nil {
		t.tagRow = schema.NewTagRow(nil)
	}
	t.tagRow.Set(colID, value)
}

// Ref increments the reference count (spec §4.2's ref-counted destroy).
func (t *Table) Ref() int32 { return t.refCount.Add(1) }

// Unref decrements the reference count and reports whether it reached zero,
// meaning the caller is now responsible for destroying t (and, if t is a
// Child, unref'ing its Super in turn — see spec §9).
func (t *Table) Unref() bool {
	return t.refCount.Add(-1) == 0
}

// RefCount returns the current reference count, for tests and introspection.
func (t *Table) RefCount() int32 { return t.refCount.Load() }

// ValidateKind returns dberrors.ErrInvalidTableType if t is not one of the
// given kinds. Helper for callers that branch on kind.
func (t *Table) ValidateKind(op string, kinds ...schema.TableKind) error {
	for _, k := range kinds {
		if t.kind == k {
			return nil
		}
	}
	return dberrors.InvalidArgf(op, dberrors.ErrInvalidTableType)
}
