package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/discovery-search/internal/model"
	"github.com/kart-io/discovery-search/pkg/component/sqlite"
	sqliteopts "github.com/kart-io/discovery-search/pkg/options/sqlite"
)

func ptr(s string) *string { return &s }

func newTestFactory(t *testing.T) Factory {
	t.Helper()
	client, err := sqlite.New(context.Background(), &sqliteopts.Options{Path: ":memory:", LogLevel: 1})
	require.NoError(t, err)

	f := NewFactory(client)
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.AutoMigrate())
	return f
}

func seedEntities(t *testing.T, f Factory) {
	t.Helper()
	db := f.(*datastore).db

	rows := []*model.Entity{
		{ID: "s1", EntityType: model.EntityStartup, Name: "Volta", Country: ptr("FI"), Stage: ptr("seed"), Industries: []string{"energy", "climate_tech"}, Active: true},
		{ID: "s2", EntityType: model.EntityStartup, Name: "Aalto Bio", Country: ptr("SE"), Stage: ptr("series_a"), Industries: []string{"biotech", "energy"}, Active: true},
		{ID: "i1", EntityType: model.EntityInvestor, Name: "North Fund", Country: ptr("FI"), Industries: []string{"fintech"}, Active: true},
		{ID: "p1", EntityType: model.EntityPerson, Name: "Aino", Active: true},
		{ID: "x1", EntityType: model.EntityStartup, Name: "Gone", Country: ptr("DE"), Stage: ptr("growth"), Industries: []string{"legacy"}, Active: true},
	}
	require.NoError(t, db.Create(rows).Error)
	// default:true 会吞掉零值，单独更新
	require.NoError(t, db.Model(&model.Entity{}).Where("id = ?", "x1").Update(activeColumn, false).Error)
}

func TestEntitiesListActive(t *testing.T) {
	f := newTestFactory(t)
	seedEntities(t, f)

	list, err := f.Entities().ListActive(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"i1", "p1", "s1", "s2"}, ids)
	assert.Equal(t, []string{"energy", "climate_tech"}, list[2].Industries)
}

func TestEntitiesGet(t *testing.T) {
	f := newTestFactory(t)
	seedEntities(t, f)

	e, err := f.Entities().Get(context.Background(), "x1")
	require.NoError(t, err)
	assert.Equal(t, "Gone", e.Name)
	assert.False(t, e.Active)

	_, err = f.Entities().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntitiesFacetValues(t *testing.T) {
	f := newTestFactory(t)
	seedEntities(t, f)
	ctx := context.Background()

	industries, err := f.Entities().Industries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"biotech", "climate_tech", "energy", "fintech"}, industries)

	countries, err := f.Entities().Countries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"FI", "SE"}, countries)

	stages, err := f.Entities().Stages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"seed", "series_a"}, stages)
}

func TestEntitiesListLinks(t *testing.T) {
	f := newTestFactory(t)
	seedEntities(t, f)
	db := f.(*datastore).db

	links := []*model.EntityLink{
		{FromEntityID: "p1", ToEntityID: "s1", Type: model.LinkFounded, RoleTitle: ptr("CEO")},
		{FromEntityID: "i1", ToEntityID: "s1", Type: model.LinkInvestsIn},
		{FromEntityID: "s1", ToEntityID: "ghost", Type: model.LinkRelated},
	}
	require.NoError(t, db.Create(links).Error)

	conns, err := f.Entities().ListLinks(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, conns, 2)

	assert.Equal(t, "p1", conns[0].OtherID)
	assert.Equal(t, "Aino", conns[0].OtherName)
	assert.Equal(t, model.EntityPerson, conns[0].OtherType)
	assert.Equal(t, "CEO", model.StringValue(conns[0].Link.RoleTitle))

	assert.Equal(t, "i1", conns[1].OtherID)
	assert.Equal(t, model.EntityInvestor, conns[1].OtherType)

	conns, err = f.Entities().ListLinks(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "s1", conns[0].OtherID)

	conns, err = f.Entities().ListLinks(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestEntitiesListLinksWithoutTable(t *testing.T) {
	f := newTestFactory(t)
	db := f.(*datastore).db
	require.NoError(t, db.Migrator().DropTable(&model.EntityLink{}))

	_, err := f.Entities().ListLinks(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrLinksUnavailable)
}

func TestFileLockerExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reindex.lock")
	ctx := context.Background()

	a := NewFileLocker(path)
	b := NewFileLocker(path)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "re-entry must not succeed")

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, a.Unlock(ctx))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx))
}

func TestRedisLockerExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	a := NewRedisLocker(client, "discovery:reindex", time.Minute)
	b := NewRedisLocker(client, "discovery:reindex", time.Minute)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("discovery:reindex"))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// 非持有者解锁不能删除别人的锁
	require.NoError(t, b.Unlock(ctx))
	assert.True(t, mr.Exists("discovery:reindex"))

	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, a.Unlock(ctx))
	assert.False(t, mr.Exists("discovery:reindex"))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// 持有者崩溃后锁随 TTL 过期
	mr.FastForward(2 * time.Minute)
	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
