package persistence

import (
	"sync/atomic"

	"tsdbmeta/pkg/actionlog"
	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/meta"
)

// logSeq hands out the monotonically increasing sequence number stamped
// onto every appended record (spec §4.5). Seeded from the highest sequence
// number observed during restore, so numbering stays monotonic across a
// reopen rather than restarting at zero.
type logSeq struct {
	n atomic.Uint64
}

func newLogSeq(init uint64) *logSeq {
	ls := &logSeq{}
	ls.n.Store(init)
	return ls
}

func (ls *logSeq) next() uint64 {
	return ls.n.Add(1)
}

// sink adapts a KVLogStore into a meta.ActionSink by stamping each record
// with the next log sequence number and framing it through actionlog.Encode
// before appending.
type sink struct {
	log KVLogStore
	seq *logSeq
}

func (s *sink) Append(rec actionlog.Record) error {
	rec.Seq = s.seq.next()
	return s.log.Append(actionlog.Encode(rec))
}

// Driver is the persistence driver of spec §4.5, bound to one Registry and
// one KVLogStore for the lifetime of an open repository.
type Driver struct {
	log      KVLogStore
	registry *meta.Registry
}

// Open opens the META log under rootDir, replays it into registry via the
// restore callback, then runs the reorg pass, and finally attaches the log
// as registry's action sink for subsequent mutations. bufSize sizes the
// log's write buffer (the config's max_log_segment_bytes); 0 uses bufio's
// default.
//
// registry must not yet have an action sink attached (spec §4.5's open
// binds the registry to the log store for its whole open lifetime).
func Open(rootDir string, registry *meta.Registry, bufSize int) (*Driver, error) {
	const op = "persistence.Open"

	log, err := OpenFileLogStore(rootDir, bufSize)
	if err != nil {
		return nil, dberrors.New(dberrors.System, op, err)
	}

	maxSeq, err := restore(registry, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	if err := registry.Reorg(); err != nil {
		log.Close()
		return nil, err
	}

	registry.AttachSink(&sink{log: log, seq: newLogSeq(maxSeq)})

	return &Driver{log: log, registry: registry}, nil
}

// restore implements spec §4.5's restore callback: validates each record's
// checksum, decodes it, and applies it to registry without emitting a new
// action. A DropMeta record removes whatever the prior UpdateMeta record
// for that uid had restored. It returns the highest sequence number seen,
// so the driver's sink can resume numbering from there.
func restore(registry *meta.Registry, log KVLogStore) (uint64, error) {
	const op = "persistence.restore"
	var maxSeq uint64
	err := log.Replay(func(raw []byte) error {
		rec, err := actionlog.Decode(raw)
		if err != nil {
			return err
		}
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
		switch rec.Act {
		case actionlog.UpdateMeta:
			dec, err := actionlog.DecodeTable(rec.Payload)
			if err != nil {
				return err
			}
			return registry.RestoreTable(dec)
		case actionlog.DropMeta:
			registry.RestoreDrop(rec.UID)
			return nil
		default:
			return dberrors.Corruptionf(op, dberrors.ErrInvalidAction)
		}
	})
	return maxSeq, err
}

// Close closes the META log and releases every table the registry holds
// (spec §4.5's close: "closes the log, frees every tables[] entry, drains
// superList freeing each Super").
func (d *Driver) Close() error {
	d.registry.Close()
	return d.log.Close()
}
