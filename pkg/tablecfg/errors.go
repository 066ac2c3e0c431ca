package tablecfg

import "errors"

var (
	errMissingName         = errors.New("tablecfg: name is required")
	errMissingSchema       = errors.New("tablecfg: schema is required")
	errMissingSQL          = errors.New("tablecfg: sql is required for a stream table")
	errMissingSuperUID     = errors.New("tablecfg: superUid is required for a child table")
	errMissingSuperName    = errors.New("tablecfg: superName is required")
	errMissingTagSchema    = errors.New("tablecfg: tagSchema is required for a super table")
	errUnexpectedTagSchema = errors.New("tablecfg: tagSchema is only valid on child or super tables")
	errUnknownKind         = errors.New("tablecfg: unknown table kind")
)
