package meta

import "tsdbmeta/pkg/actionlog"

// ActionSink is the narrow interface the registry needs from the action
// log adapter (spec §4.4): append one record. The persistence driver's sink
// type satisfies it once a log store is attached, and writes each record
// straight to the log store; no pending in-memory action list is kept.
type ActionSink interface {
	Append(rec actionlog.Record) error
}

// ConfigFunc is the configFunc collaborator of spec §6: given a shard id
// and tid, returns a fresh CreateTableMsg payload describing that table's
// current configuration, used to bootstrap a newer tag schema when a
// tag-value update arrives ahead of it.
type ConfigFunc func(shardID uint32, tid uint32) ([]byte, error)

// CQDropFunc is the cqDropFunc collaborator of spec §6: notifies the
// continuous-query subsystem that a Stream table's handle has been dropped.
type CQDropFunc func(handle uint64)

// nopSink discards every record; used when a Registry is built without a
// persistence driver attached (e.g. in tests that only exercise in-memory
// behavior).
type nopSink struct{}

func (nopSink) Append(actionlog.Record) error { return nil }
