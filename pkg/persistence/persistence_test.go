package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tsdbmeta/pkg/meta"
	"tsdbmeta/pkg/schema"
	"tsdbmeta/pkg/tablecfg"
)

func newChildCfg(uid uint64, tid uint32, superUID uint64) *tablecfg.Cfg {
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
	c.SetTagValues(schema.NewTagRow(map[uint16][]byte{10: []byte("zone-a")}), false)
	return c
}

func TestOpenRestoresAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := meta.Config{ShardID: 1, MaxTables: 64, MaxSchemasPerTable: 4, MaxNameLen: 64}

	registry := meta.New(cfg)
	driver, err := Open(dir, registry, 0)
	require.NoError(t, err)

	_, err = registry.CreateTable(newChildCfg(200, 2, 100))
	require.NoError(t, err)
	require.NoError(t, driver.Close())

	reopened := meta.New(cfg)
	driver2, err := Open(dir, reopened, 0)
	require.NoError(t, err)
	defer driver2.Close()

	child, ok := reopened.GetByUid(200)
	require.True(t, ok)
	require.Equal(t, schema.KindChild, child.Kind())

	super, ok := reopened.GetByUid(100)
	require.True(t, ok)
	require.Same(t, super, child.Super(), "reorg should have relinked the child to its super")

	got, ok := super.TagIndex().Lookup([]byte("zone-a"))
	require.True(t, ok)
	require.Same(t, child, got)
}

func newNormalCfg(uid uint64, tid uint32) *tablecfg.Cfg {
	rb := schema.NewBuilder(1)
	rb.AddColumn(0, schema.ColTimestamp, 8)
	c := tablecfg.New(schema.KindNormal, uid, tid)
	c.SetName("sensors", false)
	c.SetSchema(rb.Build(), false)
	return c
}

// TestOpenReplaysRepeatedUpdatesWithoutInflatingCounts covers spec §8
// scenario 6: a table updated multiple times (scenario 4) survives a
// restart (scenario 6) with its full schema history intact and without
// each replayed UpdateMeta record counting as a second table.
func TestOpenReplaysRepeatedUpdatesWithoutInflatingCounts(t *testing.T) {
	dir := t.TempDir()
	cfg := meta.Config{ShardID: 1, MaxTables: 64, MaxSchemasPerTable: 2, MaxNameLen: 64}

	registry := meta.New(cfg)
	driver, err := Open(dir, registry, 0)
	require.NoError(t, err)

	tbl, err := registry.CreateTable(newNormalCfg(1, 1))
	require.NoError(t, err)

	for v := int32(2); v <= 3; v++ {
		b := schema.NewBuilder(v)
		b.AddColumn(0, schema.ColTimestamp, 8)
		update := tablecfg.New(schema.KindNormal, 1, 1)
		update.SetSchema(b.Build(), false)
		changed, err := registry.UpdateTable(tbl, update)
		require.NoError(t, err)
		require.True(t, changed)
	}
	require.Equal(t, 1, registry.NTables())
	require.NoError(t, driver.Close())

	reopened := meta.New(cfg)
	driver2, err := Open(dir, reopened, 0)
	require.NoError(t, err)
	defer driver2.Close()

	require.Equal(t, 1, reopened.NTables(), "three UpdateMeta records for one uid must not register as three tables")

	restored, ok := reopened.GetByUid(1)
	require.True(t, ok)
	_, ok = reopened.GetSchemaByVersion(restored, 1)
	require.False(t, ok, "version 1 should have been FIFO-evicted before the restart")
	s, ok := reopened.GetSchemaByVersion(restored, 3)
	require.True(t, ok)
	require.Equal(t, int32(3), s.Version)
}

func TestOpenReplaysDropMeta(t *testing.T) {
	dir := t.TempDir()
	cfg := meta.Config{ShardID: 1, MaxTables: 64, MaxSchemasPerTable: 4, MaxNameLen: 64}

	registry := meta.New(cfg)
	driver, err := Open(dir, registry, 0)
	require.NoError(t, err)

	_, err = registry.CreateTable(newChildCfg(200, 2, 100))
	require.NoError(t, err)
	require.NoError(t, registry.DropTable(200))
	require.NoError(t, driver.Close())

	reopened := meta.New(cfg)
	driver2, err := Open(dir, reopened, 0)
	require.NoError(t, err)
	defer driver2.Close()

	_, ok := reopened.GetByUid(200)
	require.False(t, ok, "dropped child should not reappear after restore")
}
