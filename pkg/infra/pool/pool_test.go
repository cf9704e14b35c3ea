package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pooloptions "github.com/kart-io/discovery-search/pkg/options/pool"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", DefaultPool, DefaultPoolConfig())
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, DefaultPool, p.Type())
	assert.Equal(t, 200, p.Cap())
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", DefaultPool, &Config{Capacity: 10, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, int64(100), p.Stats().SubmittedTasks)
}

func TestPoolSubmitWithCanceledContext(t *testing.T) {
	p, err := NewPool("test", QueryPool, QueryPoolConfig())
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.SubmitWithContext(ctx, func() { t.Error("任务不应执行") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolSubmitAfterRelease(t *testing.T) {
	p, err := NewPool("test", DefaultPool, nil)
	require.NoError(t, err)
	p.Release()
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestPoolPanicRecovered(t *testing.T) {
	recovered := make(chan interface{}, 1)
	p, err := NewPool("test", DefaultPool, &Config{
		Capacity:     1,
		PanicHandler: func(r interface{}) { recovered <- r },
	})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(2 * time.Second):
		t.Fatal("panic handler was not called")
	}
	assert.Eventually(t, func() bool { return p.Stats().PanicRecovered == 1 }, time.Second, 10*time.Millisecond)
}

func TestManager(t *testing.T) {
	m := NewManager()
	defer m.ReleaseAll()

	require.NoError(t, m.Register(QueryPool, QueryPoolConfig()))
	assert.ErrorIs(t, m.Register(QueryPool, QueryPoolConfig()), ErrPoolAlreadyExists)

	_, err := m.Get(BackgroundPool)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	done := make(chan struct{})
	require.NoError(t, m.Submit(QueryPool, func() { close(done) }))
	<-done

	assert.Equal(t, []string{"query"}, m.List())
	stats := m.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "query", stats[0].Name)

	m.ReleaseAll()
	_, err = m.Get(QueryPool)
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestConfigsFromOptions(t *testing.T) {
	opts := pooloptions.NewOptions()
	opts.QueryCapacity = 7

	cfgs := ConfigsFromOptions(opts)
	require.Len(t, cfgs, 3)
	assert.Equal(t, 7, cfgs[QueryPool].Capacity)
	assert.Equal(t, opts.DefaultCapacity, cfgs[DefaultPool].Capacity)
}

func TestGlobalGo(t *testing.T) {
	require.NoError(t, InitGlobal(pooloptions.NewOptions()))
	defer func() { _ = ShutdownGlobal(time.Second) }()

	var ran atomic.Bool
	<-Go(context.Background(), QueryPool, func(context.Context) { ran.Store(true) })
	assert.True(t, ran.Load())
}

func TestShutdownGlobal(t *testing.T) {
	require.NoError(t, InitGlobal(pooloptions.NewOptions()))
	<-Go(context.Background(), QueryPool, func(context.Context) {})

	var submitted int64
	for _, st := range GetGlobal().Stats() {
		submitted += st.SubmittedTasks
	}
	assert.Equal(t, int64(1), submitted)

	require.NoError(t, ShutdownGlobal(time.Second))
	// 重复关闭是空操作
	assert.NoError(t, ShutdownGlobal(time.Second))
}
