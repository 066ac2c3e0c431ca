package meta

import (
	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/table"
)

// tagIndexKey projects a Child's tag-value row onto its Super's designated
// tag column (index 0 of the tag schema), per spec §3/§4.3.
func tagIndexKey(super, child *table.Table) ([]byte, bool) {
	tagSchema := super.TagSchema()
	col, ok := tagSchema.ColAt(0)
	if !ok {
		return nil, false
	}
	return child.TagValue(col.ColID)
}

// addToIndex resolves child's Super, links child.pSuper, inserts child into
// the Super's tag-index under its current tag key, and bumps the Super's
// reference count (spec §4.3).
func (r *Registry) addToIndex(child *table.Table) error {
	const op = "meta.addToIndex"
	super, ok := r.uidMap[child.SuperUID()]
	if !ok {
		return dberrors.NotFoundf(op)
	}
	child.SetSuper(super)

	key, ok := tagIndexKey(super, child)
	if !ok {
		key = nil
	}
	super.TagIndex().Insert(key, child)
	super.Ref()
	return nil
}

// removeFromIndex deletes child's own entry from its Super's tag-index,
// disambiguating by identity among nodes that share the same key (spec
// §4.3, §9).
func (r *Registry) removeFromIndex(child *table.Table) {
	super := child.Super()
	if super == nil {
		return
	}
	key, ok := tagIndexKey(super, child)
	if !ok {
		key = nil
	}
	super.TagIndex().Remove(key, child)
}

// addToMeta registers t into the registry's structures. When t is a Super
// it is appended to superList; otherwise it occupies tables[t.TID()], and
// if t is a Child and registerIndex is set, addToIndex links it first.
// Failure at any step rolls back whatever was already done (spec §4.3).
func (r *Registry) addToMeta(t *table.Table, registerIndex bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addToMetaLocked(t, registerIndex)
}

func (r *Registry) addToMetaLocked(t *table.Table, registerIndex bool) error {
	const op = "meta.addToMeta"

	if t.Kind() == schema.KindSuper {
		r.superList = append(r.superList, t)
	} else {
		if t.Kind() == schema.KindChild && registerIndex {
			if err := r.addToIndex(t); err != nil {
				return err
			}
		}
		if int(t.TID()) <= 0 || int(t.TID()) >= len(r.tables) {
			r.rollbackAddLocked(t, registerIndex)
			return dberrors.InvalidArgf(op, dberrors.ErrInvalidTableID)
		}
		r.tables[t.TID()] = t
		r.nTables++
	}

	r.uidMap[t.UID()] = t

	if t.Kind() != schema.KindChild {
		s := t.Schema()
		if s.NCols() > r.maxCols {
			r.maxCols = s.NCols()
		}
		if s.RowBytes() > r.maxRowBytes {
			r.maxRowBytes = s.RowBytes()
		}
	}

	return nil
}

// rollbackAddLocked undoes the superList/tables[]/index effects of a
// partially completed addToMeta. Must be called with mu held.
func (r *Registry) rollbackAddLocked(t *table.Table, hadIndex bool) {
	if t.Kind() == schema.KindSuper {
		r.detachSuperLocked(t)
		return
	}
	if t.Kind() == schema.KindChild && hadIndex {
		r.removeFromIndex(t)
	}
}

func (r *Registry) detachSuperLocked(t *table.Table) bool {
	for i := len(r.superList) - 1; i >= 0; i-- {
		if r.superList[i] == t {
			r.superList = append(r.superList[:i], r.superList[i+1:]...)
			return true
		}
	}
	return false
}

// removeFromMeta detaches t from every structural representation, then
// drops one reference (which may destroy t). removeIndex controls whether
// a Child is also unlinked from its Super's tag-index. Recomputes
// maxCols/maxRowBytes only when t held one of the current maxima (spec
// §4.3).
func (r *Registry) removeFromMeta(t *table.Table, removeIndex bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromMetaLocked(t, removeIndex)
}

func (r *Registry) removeFromMetaLocked(t *table.Table, removeIndex bool) {
	var cols, rowBytes int
	if t.Kind() != schema.KindChild {
		s := t.Schema()
		cols = s.NCols()
		rowBytes = s.RowBytes()
	}

	if t.Kind() == schema.KindSuper {
		r.detachSuperLocked(t)
	} else {
		if int(t.TID()) > 0 && int(t.TID()) < len(r.tables) {
			r.tables[t.TID()] = nil
		}
		if t.Kind() == schema.KindChild && removeIndex {
			r.removeFromIndex(t)
		}
		r.nTables--
	}

	delete(r.uidMap, t.UID())

	if cols == r.maxCols || rowBytes == r.maxRowBytes {
		r.recomputeMaximaLocked()
	}

	if t.Unref() && t.Kind() == schema.KindChild {
		// A Child's one reference on its Super (acquired in addToIndex) is
		// released here; reaching zero leaves the Super for GC.
		if super := t.Super(); super != nil {
			super.Unref()
		}
	}
}

func (r *Registry) recomputeMaximaLocked() {
	maxCols, maxRowBytes := 0, 0
	for _, t := range r.tables {
		if t == nil || t.Kind() == schema.KindChild {
			continue
		}
		s := t.Schema()
		if s.NCols() > maxCols {
			maxCols = s.NCols()
		}
		if s.RowBytes() > maxRowBytes {
			maxRowBytes = s.RowBytes()
		}
	}
	for _, s := range r.superList {
		sc := s.Schema()
		if sc.NCols() > maxCols {
			maxCols = sc.NCols()
		}
		if sc.RowBytes() > maxRowBytes {
			maxRowBytes = sc.RowBytes()
		}
	}
	r.maxCols = maxCols
	r.maxRowBytes = maxRowBytes
}
