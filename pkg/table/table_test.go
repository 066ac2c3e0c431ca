package table

import (
	"testing"

	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/tablecfg"
)

func newNormalCfg(uid uint64, tid uint32) *tablecfg.Cfg {
	b := schema.NewBuilder(1)
	b.AddColumn(0, schema.ColTimestamp, 8)
	b.AddColumn(1, schema.ColInt, 4)
	cfg := tablecfg.New(schema.KindNormal, uid, tid)
	cfg.SetName("sensors", false)
	cfg.SetSchema(b.Build(), false)
	return cfg
}

func TestNewNormalTable(t *testing.T) {
	cfg := newNormalCfg(1, 1)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	tbl := New(cfg, 4)
	if tbl.Kind() != schema.KindNormal {
		t.Fatalf("expected KindNormal, got %v", tbl.Kind())
	}
	if tbl.Name() != "sensors" {
		t.Fatalf("expected name sensors, got %q", tbl.Name())
	}
	if tbl.Schema() == nil || tbl.Schema().NCols() != 2 {
		t.Fatalf("expected 2-column schema, got %+v", tbl.Schema())
	}
	if tbl.RefCount() != 1 {
		t.Fatalf("expected refcount 1, got %d", tbl.RefCount())
	}
}

func TestPushSchemaEvictsOldest(t *testing.T) {
	cfg := newNormalCfg(1, 1)
	tbl := New(cfg, 2)

	v2 := schema.NewBuilder(2)
	v2.AddColumn(0, schema.ColTimestamp, 8)
	tbl.PushSchema(v2.Build())

	v3 := schema.NewBuilder(3)
	v3.AddColumn(0, schema.ColTimestamp, 8)
	tbl.PushSchema(v3.Build())

	if _, ok := tbl.SchemaByVersion(1); ok {
		t.Fatal("expected version 1 to be evicted")
	}
	if s, ok := tbl.SchemaByVersion(3); !ok || s.Version != 3 {
		t.Fatalf("expected version 3 to be retained, got %+v ok=%v", s, ok)
	}
}

func TestRefUnref(t *testing.T) {
	cfg := newNormalCfg(1, 1)
	tbl := New(cfg, 4)

	tbl.Ref()
	if tbl.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", tbl.RefCount())
	}
	if tbl.Unref() {
		t.Fatal("did not expect refcount to reach zero")
	}
	if !tbl.Unref() {
		t.Fatal("expected refcount to reach zero")
	}
}

func newSuperCfg(uid uint64) *tablecfg.Cfg {
	tb := schema.NewBuilder(1)
	tb.AddColumn(10, schema.ColBinary, 16)
	rb := schema.NewBuilder(1)
	rb.AddColumn(0, schema.ColTimestamp, 8)
	cfg := tablecfg.New(schema.KindSuper, uid, 0)
	cfg.SetSuperName("meters", false)
	cfg.SetSchema(rb.Build(), false)
	cfg.SetTagSchema(tb.Build(), false)
	return cfg
}

func TestSuperTagIndex(t *testing.T) {
	cfg := newSuperCfg(100)
	super := New(cfg, 0)
	if super.TagIndex() == nil {
		t.Fatal("expected a tag index on a super table")
	}

	childCfg := tablecfg.New(schema.KindChild, 200, 2)
	childCfg.SetName("meter-1", false)
	childCfg.SetSuperUID(100)
	childCfg.SetSuperName("meters", false)
	child := New(childCfg, 0)
	child.SetSuper(super)

	key := []byte("zone-a")
	super.TagIndex().Insert(key, child)

	got, ok := super.TagIndex().Lookup(key)
	if !ok || got != child {
		t.Fatalf("expected lookup to find child, got %v ok=%v", got, ok)
	}
	if super.TagIndex().Size() != 1 {
		t.Fatalf("expected size 1, got %d", super.TagIndex().Size())
	}

	if !super.TagIndex().Remove(key, child) {
		t.Fatal("expected remove to succeed")
	}
	if _, ok := super.TagIndex().Lookup(key); ok {
		t.Fatal("expected lookup to miss after remove")
	}
}

func TestChildTagValues(t *testing.T) {
	childCfg := tablecfg.New(schema.KindChild, 200, 2)
	childCfg.SetName("meter-1", false)
	childCfg.SetSuperUID(100)
	childCfg.SetSuperName("meters", false)
	childCfg.SetTagValues(schema.NewTagRow(map[uint16][]byte{10: []byte("zone-a")}), false)
	child := New(childCfg, 0)

	v, ok := child.TagValue(10)
	if !ok || string(v) != "zone-a" {
		t.Fatalf("expected zone-a, got %q ok=%v", v, ok)
	}

	child.SetTagValue(10, []byte("zone-b"))
	v, ok = child.TagValue(10)
	if !ok || string(v) != "zone-b" {
		t.Fatalf("expected zone-b after update, got %q ok=%v", v, ok)
	}
}
