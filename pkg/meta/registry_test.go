package meta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/tablecfg"
)

func testConfig() Config {
	return Config{ShardID: 1, MaxTables: 64, MaxSchemasPerTable: 4, MaxNameLen: 64}
}

func childCfg(uid uint64, tid uint32, superUID uint64, tagVal string) *tablecfg.Cfg {
	rb := schema.NewBuilder(1)
	rb.AddColumn(0, schema.ColTimestamp, 8)
	c := tablecfg.New(schema.KindChild, uid, tid)
	c.SetName("meter", false)
	c.SetSchema(rb.Build(), false)
	c.SetSuperUID(superUID)
	c.SetSuperName("meters", false)
	tb := schema.NewBuilder(1)
	tb.AddColumn(10, schema.ColNChar, 16)
	c.SetTagSchema(tb.Build(), false)
	c.SetTagValues(schema.NewTagRow(map[uint16][]byte{10: []byte(tagVal)}), false)
	return c
}

func TestCreateTableImplicitSuper(t *testing.T) {
	r := New(testConfig())

	tbl, err := r.CreateTable(childCfg(200, 2, 100, "zone-a"))
	require.NoError(t, err)
	require.Equal(t, schema.KindChild, tbl.Kind())

	super, ok := r.GetByUid(100)
	require.True(t, ok)
	require.Equal(t, schema.KindSuper, super.Kind())
	require.Equal(t, int32(2), super.RefCount(), "addToIndex bumps the super's ref on top of its construction ref")

	got, ok := super.TagIndex().Lookup([]byte("zone-a"))
	require.True(t, ok)
	require.Same(t, tbl, got)
}

func TestCreateTableRejectsDuplicateUID(t *testing.T) {
	r := New(testConfig())
	_, err := r.CreateTable(childCfg(200, 2, 100, "zone-a"))
	require.NoError(t, err)

	_, err = r.CreateTable(childCfg(200, 3, 100, "zone-b"))
	require.Error(t, err)
	require.True(t, dberrors.Is(err, dberrors.AlreadyExists))
}

func TestUpdateTagValueReindexesOnDesignatedColumnChange(t *testing.T) {
	r := New(testConfig())
	child, err := r.CreateTable(childCfg(200, 2, 100, "zone-a"))
	require.NoError(t, err)
	super, _ := r.GetByUid(100)

	err = r.UpdateTagValue(&schema.DecodedTagUpdate{
		UID: child.UID(), TID: child.TID(), TVersion: 1,
		ColID: 10, Type: schema.ColNChar, Width: 16, Data: []byte("zone-b"),
	})
	require.NoError(t, err)

	_, ok := super.TagIndex().Lookup([]byte("zone-a"))
	require.False(t, ok, "old key should no longer resolve")

	got, ok := super.TagIndex().Lookup([]byte("zone-b"))
	require.True(t, ok)
	require.Same(t, child, got)
}

func TestUpdateTableEvictsOldestSchemaVersion(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSchemasPerTable = 2
	r := New(cfg)

	rb := schema.NewBuilder(1)
	rb.AddColumn(0, schema.ColTimestamp, 8)
	normal := tablecfg.New(schema.KindNormal, 1, 1)
	normal.SetName("sensors", false)
	normal.SetSchema(rb.Build(), false)
	tbl, err := r.CreateTable(normal)
	require.NoError(t, err)

	for v := int32(2); v <= 3; v++ {
		b := schema.NewBuilder(v)
		b.AddColumn(0, schema.ColTimestamp, 8)
		update := tablecfg.New(schema.KindNormal, 1, 1)
		update.SetSchema(b.Build(), false)
		changed, err := r.UpdateTable(tbl, update)
		require.NoError(t, err)
		require.True(t, changed)
	}

	_, ok := r.GetSchemaByVersion(tbl, 1)
	require.False(t, ok, "version 1 should have been evicted")
	s, ok := r.GetSchemaByVersion(tbl, 3)
	require.True(t, ok)
	require.Equal(t, int32(3), s.Version)
}

func TestUpdateTagValueRejectsStaleVersion(t *testing.T) {
	r := New(testConfig())
	child, err := r.CreateTable(childCfg(200, 2, 100, "zone-a"))
	require.NoError(t, err)

	err = r.UpdateTagValue(&schema.DecodedTagUpdate{
		UID: child.UID(), TID: child.TID(), TVersion: 0,
		ColID: 10, Type: schema.ColNChar, Width: 16, Data: []byte("zone-b"),
	})
	require.Error(t, err)
	require.True(t, dberrors.Is(err, dberrors.StaleVersion))
}

func TestDropTableRemovesChildrenOfSuper(t *testing.T) {
	r := New(testConfig())
	child, err := r.CreateTable(childCfg(200, 2, 100, "zone-a"))
	require.NoError(t, err)
	super, _ := r.GetByUid(100)

	err = r.DropTable(super.UID())
	require.NoError(t, err)

	_, ok := r.GetByUid(super.UID())
	require.False(t, ok)
	_, ok = r.GetByUid(child.UID())
	require.False(t, ok)
}

func TestQuiescenceGuardBlocksUpdateTable(t *testing.T) {
	r := New(testConfig())
	rb := schema.NewBuilder(1)
	rb.AddColumn(0, schema.ColTimestamp, 8)
	normal := tablecfg.New(schema.KindNormal, 1, 1)
	normal.SetName("sensors", false)
	normal.SetSchema(rb.Build(), false)
	tbl, err := r.CreateTable(normal)
	require.NoError(t, err)

	r.Quiescence().BeginActivity(tbl.UID())
	defer r.Quiescence().EndActivity(tbl.UID())

	b := schema.NewBuilder(2)
	b.AddColumn(0, schema.ColTimestamp, 8)
	update := tablecfg.New(schema.KindNormal, 1, 1)
	update.SetSchema(b.Build(), false)
	_, err = r.UpdateTable(tbl, update)
	require.Error(t, err)
}
