package meta

import (
	"tsdbmeta/pkg/actionlog"
	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/table"
	"tsdbmeta/pkg/tablecfg"
)

// RestoreTable decodes one action-log record's payload into a Table and
// registers it without emitting a new action and without touching any
// Super's tag-index (spec §4.5's restore callback): index registration is
// deferred to Reorg because the Super a Child names may not be registered
// yet.
//
// dec.Schemas carries the table's full retained history, oldest first;
// table.New seeds the history with the oldest entry and the remaining
// entries are replayed through PushSchema in order, so a restart recovers
// every version still within MaxSchemasPerTable rather than only the last
// one written.
//
// The action log is a flat append sequence, not a compacting key-value
// store: a table updated more than once before a restart has one UpdateMeta
// record per update, and every one of them replays here. If uid already
// names a registered table — the prior replay of an earlier UpdateMeta for
// the same table — that stale registration is torn down first, so the
// fresher decode replaces it in tables[]/superList instead of piling up a
// second entry and inflating NTables/SuperCount.
func (r *Registry) RestoreTable(dec *actionlog.DecodedTable) error {
	if stale, ok := r.getByUid(dec.UID); ok {
		r.removeFromMeta(stale, false)
	}

	cfg := tablecfg.New(dec.Kind, dec.UID, dec.TID)
	cfg.SetName(dec.Name, false)
	if len(dec.Schemas) > 0 {
		cfg.SetSchema(dec.Schemas[0], false)
	}
	if dec.TagSchema != nil {
		cfg.SetTagSchema(dec.TagSchema, false)
	}
	if dec.Kind == schema.KindChild {
		cfg.SetSuperUID(dec.SuperUID)
		if dec.TagValues != nil {
			cfg.SetTagValues(dec.TagValues, false)
		}
	}
	if dec.SQL != "" {
		cfg.SetSQL(dec.SQL, false)
	}

	t := table.New(cfg, r.cfg.MaxSchemasPerTable)
	if len(dec.Schemas) > 1 {
		for _, s := range dec.Schemas[1:] {
			t.PushSchema(s)
		}
	}
	return r.addToMeta(t, false)
}

// RestoreDrop removes uid during a restore replay, mirroring a DropMeta
// record without touching the action log (the record being replayed is
// itself the DropMeta entry). A missing uid is not an error: it may never
// have been restored if its UpdateMeta record preceded a log truncation.
func (r *Registry) RestoreDrop(uid uint64) {
	t, ok := r.getByUid(uid)
	if !ok {
		return
	}
	r.removeFromMeta(t, t.Kind() == schema.KindChild)
}

// Reorg rebuilds every Child's link into its Super's tag-index after a full
// restore pass (spec §4.4, §4.5). Must run once, after every record has
// been replayed via RestoreTable.
func (r *Registry) Reorg() error {
	const op = "meta.Reorg"
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tables {
		if t == nil || t.Kind() != schema.KindChild {
			continue
		}
		if err := r.addToIndex(t); err != nil {
			return dberrors.New(dberrors.Corruption, op, err)
		}
	}
	return nil
}

// Close releases every table held by the registry: clears tables[] and
// drains superList. There is no manual free in Go; this exists to mirror
// the original's tsdbCloseMeta shape and to give callers a deterministic
// point at which the registry is empty.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tables {
		r.tables[i] = nil
	}
	r.superList = nil
	r.uidMap = make(map[uint64]*table.Table)
	r.nTables = 0
	r.maxCols = 0
	r.maxRowBytes = 0
}
