package meta

import "github.com/zhangyunhao116/skipset"

// quiescenceGuard enforces the per-table quiescence contract of spec §5:
// updateTable/updateTagValue may only run on a table with no in-flight
// query or commit. The original only documents this as a code comment and
// trusts the caller; this tracks active holders explicitly so a violation
// is rejected instead of silently corrupting state.
type quiescenceGuard struct {
	active *skipset.FuncSet[uint64]
}

func newQuiescenceGuard() *quiescenceGuard {
	return &quiescenceGuard{
		active: skipset.NewFunc[uint64](func(a, b uint64) bool { return a < b }),
	}
}

// BeginActivity marks uid as having an in-flight query or commit. Callers
// outside the registry (the row/column data store, query execution) are
// expected to bracket their access with BeginActivity/EndActivity.
func (g *quiescenceGuard) BeginActivity(uid uint64) {
	g.active.Add(uid)
}

// EndActivity clears the in-flight marker for uid.
func (g *quiescenceGuard) EndActivity(uid uint64) {
	g.active.Remove(uid)
}

// Quiesced reports whether uid currently has no in-flight activity, i.e.
// whether a content mutation on it is safe to perform.
func (g *quiescenceGuard) Quiesced(uid uint64) bool {
	return !g.active.Contains(uid)
}
