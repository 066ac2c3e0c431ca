package table

import (
	"bytes"
	"sync"

	"github.com/zhangyunhao116/skipmap"
)

// TagIndex is the per-Super secondary index on the designated tag column,
// described in spec §3/§4.3. It is built on skipmap.FuncMap, a concurrent
// ordered-map primitive keyed by the raw tag-index bytes.
//
// The original keeps no key in the skip-list node, only the child pointer,
// so removal by key requires scanning every node with that key and
// comparing identity (spec §9). Bucketing children by key reproduces that
// exact trade-off: Insert appends to the bucket for a key, Remove scans the
// bucket and identity-compares.
type TagIndex struct {
	m *skipmap.FuncMap[string, *bucket]
}

type bucket struct {
	mu       sync.Mutex
	children []*Table
}

// NewTagIndex creates an empty tag-index. The comparator is a plain byte
// comparison; ordering by column type/width is not required for point
// lookups (the only access pattern spec §4.3 names), only a consistent
// total order, which bytes.Compare already provides.
func NewTagIndex() *TagIndex {
	return &TagIndex{
		m: skipmap.NewFunc[string, *bucket](func(a, b string) bool {
			return bytes.Compare([]byte(a), []byte(b)) < 0
		}),
	}
}

// Insert adds child under key, creating the bucket if this is the first
// child with that tag value.
func (ti *TagIndex) Insert(key []byte, child *Table) {
	k := string(key)
	b, _ := ti.m.LoadOrStore(k, &bucket{})
	b.mu.Lock()
	b.children = append(b.children, child)
	b.mu.Unlock()
}

// Remove deletes the exact child entry stored under key, identity-comparing
// against every child sharing that key the way the original's skip-list
// scan does. Reports whether an entry was removed.
func (ti *TagIndex) Remove(key []byte, child *Table) bool {
	k := string(key)
	b, ok := ti.m.Load(k)
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.children {
		if c == child {
			b.children = append(b.children[:i], b.children[i+1:]...)
			removed := true
			if len(b.children) == 0 {
				ti.m.Delete(k)
			}
			return removed
		}
	}
	return false
}

// Lookup returns any one child registered under key (spec's testable
// property only requires "probing...yields c"; multiple children may share
// a key).
func (ti *TagIndex) Lookup(key []byte) (*Table, bool) {
	b, ok := ti.m.Load(string(key))
	if !ok {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.children) == 0 {
		return nil, false
	}
	return b.children[0], true
}

// Size returns the total number of child entries across all keys.
func (ti *TagIndex) Size() int {
	n := 0
	ti.m.Range(func(_ string, b *bucket) bool {
		b.mu.Lock()
		n += len(b.children)
		b.mu.Unlock()
		return true
	})
	return n
}

// Each calls fn once per indexed child, in index order, stopping early if
// fn returns false. Used by dropTable to enumerate and drop every Child of
// a Super.
func (ti *TagIndex) Each(fn func(child *Table) bool) {
	ti.m.Range(func(_ string, b *bucket) bool {
		b.mu.Lock()
		snapshot := append([]*Table{}, b.children...)
		b.mu.Unlock()
		for _, c := range snapshot {
			if !fn(c) {
				return false
			}
		}
		return true
	})
}
