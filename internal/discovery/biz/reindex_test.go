package biz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/discovery-search/internal/discovery/metrics"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine/query"
	errs "github.com/kart-io/discovery-search/pkg/errors"
	obsmetrics "github.com/kart-io/discovery-search/pkg/observability/metrics"
)

const (
	testAlias  = "discovery_chunks_current"
	testPrefix = "discovery_chunks_v2"
)

var successPath = []State{
	StateIdle, StateLockAcquired, StateIndexCreated, StateBulking,
	StateAliasSwapped, StateCleanup, StateSucceeded,
}

type reindexFixture struct {
	store   *fakeStore
	locker  *memLocker
	engine  *faultyEngine
	paths   *pathRecorder
	cache   *countingInvalidator
	metrics *metrics.DiscoveryMetrics
	r       *Reindexer
}

func newReindexFixture(t *testing.T, batchSize int, opts ...ReindexOption) *reindexFixture {
	t.Helper()
	f := &reindexFixture{
		store:   newFakeStore(sampleEntities()...),
		locker:  &memLocker{},
		engine:  newFaultyEngine(t),
		paths:   newPathRecorder(),
		cache:   &countingInvalidator{},
		metrics: metrics.New(obsmetrics.NewRegistry()),
	}
	opts = append([]ReindexOption{
		WithTransitionHook(f.paths.hook),
		WithCacheInvalidator(f.cache),
		WithMetrics(f.metrics),
		WithClock(tickClock()),
	}, opts...)
	f.r = NewReindexer(f.store, f.locker, f.engine, ReindexConfig{
		Alias:       testAlias,
		IndexPrefix: testPrefix,
		BatchSize:   batchSize,
	}, opts...)
	return f
}

func (f *reindexFixture) aliasIndices(t *testing.T) []string {
	t.Helper()
	indices, err := f.engine.Engine.GetIndicesForAlias(context.Background(), testAlias)
	if errors.Is(err, searchengine.ErrAliasNotFound) {
		return nil
	}
	require.NoError(t, err)
	return indices
}

func TestReindexSuccess(t *testing.T) {
	f := newReindexFixture(t, 3)
	ctx := context.Background()

	res, err := f.r.Reindex(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, res.IndexedEntities)
	assert.Equal(t, 4, res.ChunkCount)
	assert.Equal(t, testAlias, res.Alias)
	assert.True(t, strings.HasPrefix(res.IndexName, testPrefix+"_"), res.IndexName)
	assert.Empty(t, res.DeletedIndices)
	assert.Equal(t, successPath, f.paths.path(0))
	assert.Equal(t, []string{res.IndexName}, f.aliasIndices(t))
	assert.False(t, f.locker.isHeld())

	// 最后一批才 refresh
	calls := f.engine.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, bulkCall{index: res.IndexName, docs: 3, refresh: false}, calls[0])
	assert.Equal(t, bulkCall{index: res.IndexName, docs: 1, refresh: true}, calls[1])

	hits, err := f.engine.Search(ctx, &searchengine.SearchRequest{Index: testAlias, Query: query.MatchAll(), Size: 100})
	require.NoError(t, err)
	assert.Len(t, hits.Hits, 4)

	assert.Equal(t, 1, f.cache.calls)
	status := f.r.Status()
	assert.Nil(t, status.Running)
	require.NotNil(t, status.Last)
	assert.Equal(t, StateSucceeded, status.Last.Outcome)
	assert.Equal(t, res.IndexName, status.Last.Result.IndexName)

	snap := f.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.ReindexRuns)
	assert.Equal(t, int64(4), snap.LastChunks)
}

func TestReindexReplacesPreviousIndex(t *testing.T) {
	f := newReindexFixture(t, 500)
	ctx := context.Background()

	first, err := f.r.Reindex(ctx)
	require.NoError(t, err)
	second, err := f.r.Reindex(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.IndexName, second.IndexName)
	assert.Equal(t, []string{first.IndexName}, second.DeletedIndices)
	assert.Equal(t, []string{second.IndexName}, f.aliasIndices(t))
	assert.Equal(t, []string{second.IndexName}, f.engine.Indices())
	assert.Equal(t, successPath, f.paths.path(1))
}

func TestReindexAliasNeverEmpty(t *testing.T) {
	f := newReindexFixture(t, 2)
	ctx := context.Background()

	first, err := f.r.Reindex(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var observed [][]string
	probe := NewReindexer(f.store, f.locker, f.engine, ReindexConfig{
		Alias: testAlias, IndexPrefix: testPrefix, BatchSize: 2,
	}, WithClock(func() time.Time {
		// 与第一次使用不同的时间基准
		return f.r.now().Add(time.Hour)
	}), WithTransitionHook(func(Transition) {
		indices := f.aliasIndices(t)
		mu.Lock()
		observed = append(observed, indices)
		mu.Unlock()
	}))

	second, err := probe.Reindex(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, observed)
	for _, indices := range observed {
		require.Len(t, indices, 1, "alias must resolve to exactly one index at every step")
	}
	assert.Equal(t, []string{first.IndexName}, observed[0])
	assert.Equal(t, []string{second.IndexName}, observed[len(observed)-1])
}

func TestReindexRejectedWhenLocked(t *testing.T) {
	f := newReindexFixture(t, 500)
	f.locker.held = true

	_, err := f.r.Reindex(context.Background())
	assert.ErrorIs(t, err, errs.ErrReindexAlreadyRunning)
	assert.Equal(t, []State{StateIdle, StateRejected}, f.paths.path(0))
	assert.Empty(t, f.engine.Indices())
	assert.Equal(t, 0, f.store.calls["ListActive"])
	assert.Equal(t, uint64(1), f.metrics.Snapshot().ReindexRejections)
	assert.True(t, f.locker.isHeld(), "a rejected run must not release someone else's lock")
}

func TestReindexMutualExclusion(t *testing.T) {
	bulking := make(chan struct{})
	var once sync.Once
	f := newReindexFixture(t, 500, WithTransitionHook(func(tr Transition) {
		if tr.State == StateBulking {
			once.Do(func() { close(bulking) })
		}
	}))
	f.engine.bulkGate = make(chan struct{})
	ctx := context.Background()

	type outcome struct {
		res *ReindexResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.r.Reindex(ctx)
		done <- outcome{res, err}
	}()

	<-bulking
	_, err := f.r.Reindex(ctx)
	assert.ErrorIs(t, err, errs.ErrReindexAlreadyRunning)
	assert.NotNil(t, f.r.Status().Running)

	close(f.engine.bulkGate)
	out := <-done
	require.NoError(t, out.err)
	assert.NotNil(t, out.res)
	assert.False(t, f.locker.isHeld())

	// 锁已释放，可以再次执行
	_, err = f.r.Reindex(ctx)
	assert.NoError(t, err)
}

func TestReindexRollbackOnBulkFailure(t *testing.T) {
	f := newReindexFixture(t, 500)
	ctx := context.Background()

	first, err := f.r.Reindex(ctx)
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		f.engine.bulkFailed = append(f.engine.bulkFailed, searchengine.BulkItemError{
			ID: "doc", Status: 400, Type: "mapper_parsing_exception", Reason: "bad value",
		})
	}

	_, err = f.r.Reindex(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrIndexingFailure))

	var bf *BulkFailure
	require.True(t, errors.As(err, &bf))
	assert.Equal(t, 7, bf.Total)
	assert.Len(t, bf.Reasons, maxFailureReasons)

	assert.Equal(t, []State{StateIdle, StateLockAcquired, StateIndexCreated, StateBulking, StateRolledBack}, f.paths.path(1))
	assert.Equal(t, []string{first.IndexName}, f.engine.Indices(), "new index removed")
	assert.Equal(t, []string{first.IndexName}, f.aliasIndices(t), "alias unchanged")
	assert.False(t, f.locker.isHeld())
	assert.Equal(t, 1, f.cache.calls)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().ReindexFailures)
}

func TestReindexFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *reindexFixture)
		target error
		path   []State
	}{
		{
			name:   "读取实体失败",
			setup:  func(f *reindexFixture) { f.store.listErr = errBoom },
			target: errs.ErrEntityLoadFailed,
			path:   []State{StateIdle, StateLockAcquired, StateFailed},
		},
		{
			name:   "创建索引失败",
			setup:  func(f *reindexFixture) { f.engine.createErr = errBoom },
			target: errs.ErrIndexCreateFailed,
			path:   []State{StateIdle, StateLockAcquired, StateFailed},
		},
		{
			name:   "alias swap failure rolls back",
			setup:  func(f *reindexFixture) { f.engine.aliasErr = errBoom },
			target: errs.ErrAliasSwapFailed,
			path:   []State{StateIdle, StateLockAcquired, StateIndexCreated, StateBulking, StateRolledBack},
		},
		{
			name:   "panic during bulk",
			setup:  func(f *reindexFixture) { f.engine.bulkPanic = true },
			target: errs.ErrIndexingFailure,
			path:   []State{StateIdle, StateLockAcquired, StateIndexCreated, StateBulking, StateFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReindexFixture(t, 500)
			tt.setup(f)

			res, err := f.r.Reindex(context.Background())
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.path, f.paths.path(0))
			assert.Empty(t, f.engine.Indices())
			assert.Nil(t, f.aliasIndices(t))
			assert.False(t, f.locker.isHeld(), "lock released on every exit path")
			assert.Equal(t, 0, f.cache.calls)

			last := f.r.Status().Last
			require.NotNil(t, last)
			assert.NotEmpty(t, last.Error)
		})
	}
}

func TestReindexFirstBuildWithoutAlias(t *testing.T) {
	f := newReindexFixture(t, 500)

	_, err := f.engine.Engine.GetIndicesForAlias(context.Background(), testAlias)
	require.ErrorIs(t, err, searchengine.ErrAliasNotFound)

	res, err := f.r.Reindex(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.DeletedIndices)
	assert.Equal(t, []string{res.IndexName}, f.aliasIndices(t))
	assert.Equal(t, successPath, f.paths.path(0))
}

func TestReindexAliasLookupFailureRollsBack(t *testing.T) {
	f := newReindexFixture(t, 500)
	ctx := context.Background()

	first, err := f.r.Reindex(ctx)
	require.NoError(t, err)

	f.engine.lookupErr = errBoom
	res, err := f.r.Reindex(ctx)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, errs.ErrAliasLookupFailed)

	// 别名仍只指向上一次的索引，新索引已删除
	assert.Equal(t, []string{first.IndexName}, f.aliasIndices(t))
	assert.Equal(t, []string{first.IndexName}, f.engine.Indices())
	assert.Equal(t, []State{StateIdle, StateLockAcquired, StateIndexCreated, StateBulking, StateRolledBack}, f.paths.path(1))
	assert.False(t, f.locker.isHeld())
	assert.Equal(t, 1, f.cache.calls)

	last := f.r.Status().Last
	require.NotNil(t, last)
	assert.Equal(t, StateRolledBack, last.Outcome)

	// 查询恢复后下一次重建正常替换
	f.engine.lookupErr = nil
	third, err := f.r.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.IndexName}, third.DeletedIndices)
	assert.Equal(t, []string{third.IndexName}, f.aliasIndices(t))
}

func TestReindexSingleFullBatch(t *testing.T) {
	f := newReindexFixture(t, 4)

	res, err := f.r.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.ChunkCount)
	assert.Equal(t, []bulkCall{{index: res.IndexName, docs: 4, refresh: true}}, f.engine.calls())
}

func TestReindexCleanupFailureIsNotFatal(t *testing.T) {
	f := newReindexFixture(t, 500)
	ctx := context.Background()

	first, err := f.r.Reindex(ctx)
	require.NoError(t, err)

	f.engine.deleteErr = errBoom
	second, err := f.r.Reindex(ctx)
	require.NoError(t, err)

	assert.Empty(t, second.DeletedIndices)
	assert.Equal(t, []string{second.IndexName}, f.aliasIndices(t))
	assert.ElementsMatch(t, []string{first.IndexName, second.IndexName}, f.engine.Indices())
}

func TestReindexEmptySource(t *testing.T) {
	f := newReindexFixture(t, 500)
	f.store.entities = nil

	res, err := f.r.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.IndexedEntities)
	assert.Equal(t, 0, res.ChunkCount)
	assert.Empty(t, f.engine.calls())
	assert.Equal(t, []string{res.IndexName}, f.aliasIndices(t))
}

func TestBulkFailureReasons(t *testing.T) {
	bf := bulkFailure([]searchengine.BulkItemError{
		{ID: "a_0", Type: "strict_dynamic_mapping_exception", Reason: "field [x] not allowed"},
	})
	assert.Equal(t, 1, bf.Total)
	assert.Equal(t, []string{"a_0: strict_dynamic_mapping_exception: field [x] not allowed"}, bf.Reasons)
	assert.Contains(t, bf.Error(), "1 documents failed")
}
