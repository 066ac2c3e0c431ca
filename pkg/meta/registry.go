// Package meta implements the Meta registry of spec §4.3: the shard-wide
// container of Table objects, kept consistent across four coupled
// representations (tables[] by tid, uidMap by uid, superList, and each
// Super's tag-index) under a single reader/writer lock.
package meta

import (
	"sync"

	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/table"
)

// Config carries the registry's tunables, matching the original's
// STsdbCfg fields this component cares about.
type Config struct {
	ShardID            uint32
	MaxTables          uint32
	MaxSchemasPerTable int
	MaxNameLen         int
}

// Registry is the Meta of spec §3/§4.3.
type Registry struct {
	cfg Config

	mu        sync.RWMutex
	tables    []*table.Table // dense array by tid; index 0 reserved
	uidMap    map[uint64]*table.Table
	superList []*table.Table
	nTables   int

	maxCols     int
	maxRowBytes int

	sink       ActionSink
	configFunc ConfigFunc
	cqDropFunc CQDropFunc

	quiescence *quiescenceGuard
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithActionSink attaches the action log adapter that receives every
// UpdateMeta/DropMeta record the registry emits.
func WithActionSink(sink ActionSink) Option {
	return func(r *Registry) { r.sink = sink }
}

// WithConfigFunc attaches the configFunc collaborator of spec §6.
func WithConfigFunc(fn ConfigFunc) Option {
	return func(r *Registry) { r.configFunc = fn }
}

// WithCQDropFunc attaches the cqDropFunc collaborator of spec §6.
func WithCQDropFunc(fn CQDropFunc) Option {
	return func(r *Registry) { r.cqDropFunc = fn }
}

// New constructs an empty Registry sized to cfg.MaxTables.
func New(cfg Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:        cfg,
		tables:     make([]*table.Table, cfg.MaxTables),
		uidMap:     make(map[uint64]*table.Table),
		sink:       nopSink{},
		quiescence: newQuiescenceGuard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AttachSink sets the action sink that receives every subsequent
// UpdateMeta/DropMeta record. Used by the persistence driver once restore
// and reorg have finished, so replay itself never re-emits what it reads.
func (r *Registry) AttachSink(sink ActionSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Quiescence exposes the registry's quiescence guard so callers can
// bracket content mutations (row writes, queries) per spec §5.
func (r *Registry) Quiescence() *quiescenceGuard { return r.quiescence }

// ShardID returns the shard identifier this registry was configured with.
func (r *Registry) ShardID() uint32 { return r.cfg.ShardID }

// NTables returns the number of non-super tables currently registered.
func (r *Registry) NTables() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nTables
}

// SuperCount returns the number of super tables currently registered.
func (r *Registry) SuperCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.superList)
}

// MaxCols and MaxRowBytes return the running maxima used by the write path
// to size buffers (spec §3).
func (r *Registry) MaxCols() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxCols
}

func (r *Registry) MaxRowBytes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxRowBytes
}

// getByUid probes uidMap. Safe for concurrent callers holding only a
// reference to the registry, per spec §4.3's lock-free lookup note, since
// it only takes the shared lock briefly to read the map.
func (r *Registry) getByUid(uid uint64) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.uidMap[uid]
	return t, ok
}

// GetByUid is the exported form of getByUid.
func (r *Registry) GetByUid(uid uint64) (*table.Table, bool) {
	return r.getByUid(uid)
}

// AllTables returns every registered table (non-super and super alike), in
// no particular order. Callers must not mutate the slice's tables; it is a
// snapshot of the pointers held at call time.
func (r *Registry) AllTables() []*table.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*table.Table, 0, r.nTables+len(r.superList))
	for _, t := range r.tables {
		if t != nil {
			out = append(out, t)
		}
	}
	out = append(out, r.superList...)
	return out
}

// GetByTid returns the table registered at tid, if any.
func (r *Registry) GetByTid(tid uint32) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tid == 0 || int(tid) >= len(r.tables) {
		return nil, false
	}
	t := r.tables[tid]
	return t, t != nil
}

// getSchema returns the newest schema of t, or of its Super for a Child
// (spec §4.3).
func (r *Registry) getSchema(t *table.Table) *schema.Schema {
	if t.Kind() == schema.KindChild {
		super := t.Super()
		if super == nil {
			return nil
		}
		return super.Schema()
	}
	return t.Schema()
}

// GetSchema is the exported form of getSchema.
func (r *Registry) GetSchema(t *table.Table) *schema.Schema { return r.getSchema(t) }

// GetSchemaByVersion binary-searches the (Super's, for Child) schema
// history for exact version v.
func (r *Registry) GetSchemaByVersion(t *table.Table, v int32) (*schema.Schema, bool) {
	target := t
	if t.Kind() == schema.KindChild {
		target = t.Super()
		if target == nil {
			return nil, false
		}
	}
	return target.SchemaByVersion(v)
}

// GetTagSchema returns the Super's tag schema, directly or through pSuper
// for a Child; nil for a table outside the Super/Child family.
func (r *Registry) GetTagSchema(t *table.Table) *schema.Schema {
	switch t.Kind() {
	case schema.KindSuper:
		return t.TagSchema()
	case schema.KindChild:
		super := t.Super()
		if super == nil {
			return nil
		}
		return super.TagSchema()
	default:
		return nil
	}
}

// GetTagValue locates colID in t's tag schema then fetches its value from
// t's tag-value row (t must be a Child). It fails the precondition if
// (expectedType, expectedBytes) disagree with the schema, and rejects
// variable-length payloads whose embedded length is not strictly less than
// the schema width (spec §4.3).
func (r *Registry) GetTagValue(t *table.Table, colID uint16, expectedType schema.ColType, expectedBytes uint16) ([]byte, error) {
	const op = "meta.GetTagValue"
	if err := t.ValidateKind(op, schema.KindChild); err != nil {
		return nil, err
	}
	tagSchema := r.GetTagSchema(t)
	if tagSchema == nil {
		return nil, dberrors.NotFoundf(op)
	}
	col, ok := tagSchema.ColByID(colID)
	if !ok {
		return nil, dberrors.NotFoundf(op)
	}
	if col.Type != expectedType || col.Bytes != expectedBytes {
		return nil, dberrors.InvalidArgf(op, dberrors.ErrInvalidAction)
	}
	val, ok := t.TagValue(colID)
	if !ok {
		return nil, nil
	}
	if col.Type.IsVarData() && len(val) >= int(col.Bytes) {
		return nil, dberrors.Corruptionf(op, dberrors.ErrFileCorrupted)
	}
	return val, nil
}
