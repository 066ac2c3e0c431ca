// Package tablecfg implements the TableCfg builder described in spec §4.1:
// a value that collects the fields needed to construct a Table, tracking
// which fields it owns so teardown frees only what it allocated.
package tablecfg

import (
	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
)

// InvalidSuperUID is the sentinel value meaning "no super table"; a Child
// config with this SuperUID is rejected.
const InvalidSuperUID = ^uint64(0)

// SuperTID is the tid every Super table carries: Super tables have no slot
// in the registry's dense array (spec §3), so there is no real tid to give
// them.
const SuperTID uint32 = 0

// Cfg is the builder-style configuration descriptor of spec §4.1.
type Cfg struct {
	Kind   schema.TableKind
	UID    uint64
	TID    uint32
	Name   string
	Schema *schema.Schema

	TagSchema *schema.Schema
	SuperName string
	SuperUID  uint64
	TagValues *schema.TagRow

	SQL string

	// owned tracks which pointer-typed fields this Cfg duplicated rather
	// than borrowed, mirroring the original's per-field dup flags; only
	// owned fields are released by Release.
	owned map[string]bool
}

// New starts a config descriptor for the given kind, uid and tid. tid is
// ignored by the factory when a Super table is implicitly created.
func New(kind schema.TableKind, uid uint64, tid uint32) *Cfg {
	return &Cfg{
		Kind:     kind,
		UID:      uid,
		TID:      tid,
		SuperUID: InvalidSuperUID,
		owned:    make(map[string]bool),
	}
}

// SetName sets the table name; dup indicates this Cfg should be considered
// the sole owner of the copy. In Go, strings are always independent, but
// the flag is still tracked so Release's behavior matches the dup/borrow
// ownership distinction the rest of the builder follows.
func (c *Cfg) SetName(name string, dup bool) *Cfg {
	c.Name = name
	c.owned["name"] = dup
	return c
}

// SetSchema attaches the column schema. A Child config carries one too, to
// seed an implicitly created Super; the Child table itself keeps no schema.
// Nothing is checked here; Validate checks that a schema is present.
func (c *Cfg) SetSchema(s *schema.Schema, dup bool) *Cfg {
	if dup {
		c.Schema = s.Dup()
	} else {
		c.Schema = s
	}
	c.owned["schema"] = dup
	return c
}

// SetTagSchema attaches the tag schema. Only meaningful for Child (sets the
// Super's tag schema on creation) and Super (direct) configs; a Normal or
// Stream config that calls this is invalid and rejected by Validate.
func (c *Cfg) SetTagSchema(s *schema.Schema, dup bool) *Cfg {
	if dup {
		c.TagSchema = s.Dup()
	} else {
		c.TagSchema = s
	}
	c.owned["tagSchema"] = dup
	return c
}

// SetSuperName sets the name used when implicitly creating a Super table
// for a Child.
func (c *Cfg) SetSuperName(name string, dup bool) *Cfg {
	c.SuperName = name
	c.owned["superName"] = dup
	return c
}

// SetSuperUID sets the uid of the Child's Super table.
func (c *Cfg) SetSuperUID(uid uint64) *Cfg {
	c.SuperUID = uid
	return c
}

// SetTagValues attaches the tag-value row (Child only).
func (c *Cfg) SetTagValues(row *schema.TagRow, dup bool) *Cfg {
	if dup {
		c.TagValues = row.Dup()
	} else {
		c.TagValues = row
	}
	c.owned["tagValues"] = dup
	return c
}

// SetSQL attaches the source query text (Stream only).
func (c *Cfg) SetSQL(sql string, dup bool) *Cfg {
	c.SQL = sql
	c.owned["sql"] = dup
	return c
}

// Validate rejects field combinations that don't belong to c.Kind, per
// spec §4.1's table of applicability.
func (c *Cfg) Validate() error {
	const op = "tablecfg.Validate"
	switch c.Kind {
	case schema.KindNormal:
		if c.Name == "" {
			return dberrors.InvalidArgf(op, errMissingName)
		}
		if c.Schema == nil {
			return dberrors.InvalidArgf(op, errMissingSchema)
		}
		if c.TagSchema != nil {
			return dberrors.InvalidArgf(op, errUnexpectedTagSchema)
		}
	case schema.KindStream:
		if c.Name == "" {
			return dberrors.InvalidArgf(op, errMissingName)
		}
		if c.Schema == nil {
			return dberrors.InvalidArgf(op, errMissingSchema)
		}
		if c.SQL == "" {
			return dberrors.InvalidArgf(op, errMissingSQL)
		}
		if c.TagSchema != nil {
			return dberrors.InvalidArgf(op, errUnexpectedTagSchema)
		}
	case schema.KindChild:
		if c.Name == "" {
			return dberrors.InvalidArgf(op, errMissingName)
		}
		if c.Schema == nil {
			// Needed to seed the implicitly-created Super's row schema
			// (spec §4.2), even though the Child itself keeps no schema.
			return dberrors.InvalidArgf(op, errMissingSchema)
		}
		if c.SuperUID == InvalidSuperUID {
			return dberrors.InvalidArgf(op, errMissingSuperUID)
		}
		if c.SuperName == "" {
			return dberrors.InvalidArgf(op, errMissingSuperName)
		}
	case schema.KindSuper:
		if c.SuperName == "" {
			return dberrors.InvalidArgf(op, errMissingSuperName)
		}
		if c.Schema == nil {
			return dberrors.InvalidArgf(op, errMissingSchema)
		}
		if c.TagSchema == nil {
			return dberrors.InvalidArgf(op, errMissingTagSchema)
		}
	default:
		return dberrors.InvalidArgf(op, errUnknownKind)
	}
	return nil
}

// Release drops references to every field this Cfg owns. Borrowed fields
// are left alone since the caller still owns them. In Go there is no
// manual free, so Release's only real job is to break the Cfg's retention
// of owned byte buffers/rows so they can be GC'd promptly; it exists to
// mirror tsdbClearTableCfg's shape for readers coming from the original.
func (c *Cfg) Release() {
	if c.owned["name"] {
		c.Name = ""
	}
	if c.owned["schema"] {
		c.Schema = nil
	}
	if c.owned["tagSchema"] {
		c.TagSchema = nil
	}
	if c.owned["superName"] {
		c.SuperName = ""
	}
	if c.owned["tagValues"] {
		c.TagValues = nil
	}
	if c.owned["sql"] {
		c.SQL = ""
	}
}

// AsSuperCfg derives the config used to synthesize c's Super table when a
// Child arrives whose superUid has no existing registration (spec §4.2,
// §4.3 createTable step 2). It is the Go analogue of calling
// newTable(cfg, asSuper=true): the same underlying fields, reinterpreted
// with Super's identity and shape.
func (c *Cfg) AsSuperCfg() *Cfg {
	super := New(schema.KindSuper, c.SuperUID, SuperTID)
	super.SetName(c.SuperName, false)
	if c.Schema != nil {
		super.SetSchema(c.Schema, true)
	}
	if c.TagSchema != nil {
		super.SetTagSchema(c.TagSchema, true)
	}
	return super
}

// FromDecodedCreate builds a Cfg from a decoded CreateTableMsg.
func FromDecodedCreate(d *schema.DecodedCreate) *Cfg {
	c := New(d.Kind, d.UID, d.TID)
	c.SetName(d.Name, false)
	if d.Schema != nil {
		c.SetSchema(d.Schema, false)
	}
	if d.TagSchema != nil {
		c.SetTagSchema(d.TagSchema, false)
	}
	if d.SuperName != "" {
		c.SetSuperName(d.SuperName, false)
	}
	if d.SuperUID != 0 {
		c.SetSuperUID(d.SuperUID)
	}
	if d.TagValues != nil {
		c.SetTagValues(d.TagValues, false)
	}
	if d.SQL != "" {
		c.SetSQL(d.SQL, false)
	}
	return c
}
