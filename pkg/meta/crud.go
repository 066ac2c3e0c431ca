package meta

import (
	"tsdbmeta/pkg/actionlog"
	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/table"
	"tsdbmeta/pkg/tablecfg"
)

// CreateTable implements spec §4.3's createTable: reject a duplicate uid,
// resolve or synthesize the Super for a Child, construct the table(s),
// register them, and emit UpdateMeta action(s) with a newly synthesized
// Super preceding its Child.
//
// Per the open question resolved in SPEC_FULL.md §9, registration happens
// before the action-log append, matching the original's observed (not
// necessarily intentional) crash-window behavior.
func (r *Registry) CreateTable(cfg *tablecfg.Cfg) (*table.Table, error) {
	const op = "meta.CreateTable"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, exists := r.getByUid(cfg.UID); exists {
		return nil, dberrors.AlreadyExistsf(op)
	}

	var super *table.Table
	newSuper := false

	if cfg.Kind == schema.KindChild {
		existing, ok := r.getByUid(cfg.SuperUID)
		if !ok {
			newSuper = true
			super = table.New(cfg.AsSuperCfg(), r.cfg.MaxSchemasPerTable)
		} else {
			if existing.Kind() != schema.KindSuper || existing.UID() != cfg.SuperUID {
				return nil, dberrors.InvalidArgf(op, dberrors.ErrInvalidTableType)
			}
			super = existing
			if _, err := r.UpdateTable(super, cfg); err != nil {
				return nil, err
			}
		}
	}

	t := table.New(cfg, r.cfg.MaxSchemasPerTable)

	if newSuper {
		if err := r.addToMeta(super, true); err != nil {
			return nil, err
		}
	}
	if err := r.addToMeta(t, true); err != nil {
		if newSuper {
			r.removeFromMeta(super, false)
		}
		return nil, err
	}

	if newSuper {
		if err := r.sink.Append(actionlog.Record{Act: actionlog.UpdateMeta, UID: super.UID(), Payload: actionlog.EncodeTable(super)}); err != nil {
			return nil, dberrors.New(dberrors.System, op, err)
		}
	}
	if err := r.sink.Append(actionlog.Record{Act: actionlog.UpdateMeta, UID: t.UID(), Payload: actionlog.EncodeTable(t)}); err != nil {
		return nil, dberrors.New(dberrors.System, op, err)
	}

	return t, nil
}

// DropTable implements spec §4.3's dropTable: resolve by uid, invoke the
// continuous-query drop hook for a Stream, drop every Child of a Super
// first (each with its own DropMeta record), then remove the table itself.
func (r *Registry) DropTable(uid uint64) error {
	const op = "meta.DropTable"

	t, ok := r.getByUid(uid)
	if !ok {
		return dberrors.NotFoundf(op)
	}

	if t.Kind() == schema.KindStream && r.cqDropFunc != nil {
		r.cqDropFunc(t.UID())
	}

	if t.Kind() == schema.KindSuper {
		var children []*table.Table
		t.TagIndex().Each(func(child *table.Table) bool {
			children = append(children, child)
			return true
		})
		for _, child := range children {
			if err := r.sink.Append(actionlog.Record{Act: actionlog.DropMeta, UID: child.UID()}); err != nil {
				return dberrors.New(dberrors.System, op, err)
			}
			r.removeFromMeta(child, false)
		}
	}

	if err := r.sink.Append(actionlog.Record{Act: actionlog.DropMeta, UID: t.UID()}); err != nil {
		return dberrors.New(dberrors.System, op, err)
	}
	r.removeFromMeta(t, true)
	return nil
}

// UpdateTable implements spec §4.3's updateTable: valid on non-Child
// tables only. Replaces the tag schema if cfg carries a strictly newer
// version (Super only), appends a newer column schema to history, and
// updates the registry's running maxima. Emits an UpdateMeta record only
// if something changed.
func (r *Registry) UpdateTable(t *table.Table, cfg *tablecfg.Cfg) (bool, error) {
	const op = "meta.UpdateTable"
	if t.Kind() == schema.KindChild {
		return false, dberrors.InvalidArgf(op, dberrors.ErrInvalidTableType)
	}
	if !r.quiescence.Quiesced(t.UID()) {
		return false, dberrors.New(dberrors.System, op, dberrors.ErrQuiescenceViolation)
	}

	changed := false

	if t.Kind() == schema.KindSuper && cfg.TagSchema != nil {
		if cur := t.TagSchema(); cur == nil || cfg.TagSchema.Version > cur.Version {
			t.SetTagSchema(cfg.TagSchema)
			changed = true
		}
	}

	if cfg.Schema != nil {
		if cur := t.Schema(); cur == nil || cfg.Schema.Version > cur.Version {
			t.PushSchema(cfg.Schema)
			r.bumpMaximaFor(t)
			changed = true
		}
	}

	if changed {
		if err := r.sink.Append(actionlog.Record{Act: actionlog.UpdateMeta, UID: t.UID(), Payload: actionlog.EncodeTable(t)}); err != nil {
			return changed, dberrors.New(dberrors.System, op, err)
		}
	}
	return changed, nil
}

func (r *Registry) bumpMaximaFor(t *table.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := t.Schema()
	if s.NCols() > r.maxCols {
		r.maxCols = s.NCols()
	}
	if s.RowBytes() > r.maxRowBytes {
		r.maxRowBytes = s.RowBytes()
	}
}

// UpdateTagValue implements spec §4.3's updateTagValue.
func (r *Registry) UpdateTagValue(msg *schema.DecodedTagUpdate) error {
	const op = "meta.UpdateTagValue"

	child, ok := r.getByUid(msg.UID)
	if !ok || child.TID() != msg.TID {
		return dberrors.NotFoundf(op)
	}
	if child.Kind() != schema.KindChild {
		return dberrors.InvalidArgf(op, dberrors.ErrInvalidAction)
	}

	super := child.Super()
	if super == nil {
		return dberrors.NotFoundf(op)
	}

	if !r.quiescence.Quiesced(child.UID()) {
		return dberrors.New(dberrors.System, op, dberrors.ErrQuiescenceViolation)
	}

	tagSchema := super.TagSchema()
	localVersion := int32(0)
	if tagSchema != nil {
		localVersion = tagSchema.Version
	}

	switch {
	case localVersion < msg.TVersion:
		if r.configFunc == nil {
			return dberrors.StaleVersionf(op)
		}
		buf, err := r.configFunc(r.cfg.ShardID, child.TID())
		if err != nil {
			return dberrors.New(dberrors.System, op, err)
		}
		dec, err := schema.DecodeCreateTableMsg(buf)
		if err != nil {
			return dberrors.InvalidArgf(op, err)
		}
		freshCfg := tablecfg.FromDecodedCreate(dec)
		if _, err := r.UpdateTable(super, freshCfg); err != nil {
			return err
		}
		tagSchema = super.TagSchema()
	case localVersion > msg.TVersion:
		return dberrors.StaleVersionf(op)
	}

	col, ok := tagSchema.ColByID(msg.ColID)
	if !ok {
		return dberrors.InvalidArgf(op, dberrors.ErrInvalidAction)
	}

	designated, _ := tagSchema.ColAt(0)
	isDesignated := designated.ColID == col.ColID

	if isDesignated {
		r.removeFromIndexLocked(child)
		child.SetTagValue(col.ColID, msg.Data)
		r.addToIndexLocked(child)
	} else {
		child.SetTagValue(col.ColID, msg.Data)
	}

	return nil
}

func (r *Registry) removeFromIndexLocked(child *table.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromIndex(child)
}

func (r *Registry) addToIndexLocked(child *table.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.addToIndex(child)
}
