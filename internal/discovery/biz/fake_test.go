package biz

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/discovery-search/internal/discovery/store"
	"github.com/kart-io/discovery-search/internal/model"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine/bleve"
)

func ptr(s string) *string { return &s }

// fakeStore 内存实体存储
type fakeStore struct {
	mu       sync.Mutex
	entities []*model.Entity
	conns    map[string][]*store.Connection
	linksErr error
	listErr  error
	calls    map[string]int

	industries, countries, stages []string
	facetErr                      error
}

var _ store.EntityStore = (*fakeStore)(nil)

func newFakeStore(entities ...*model.Entity) *fakeStore {
	return &fakeStore{entities: entities, conns: map[string][]*store.Connection{}, calls: map[string]int{}}
}

func (s *fakeStore) count(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

func (s *fakeStore) ListActive(_ context.Context) ([]*model.Entity, error) {
	s.count("ListActive")
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*model.Entity
	for _, e := range s.entities {
		if e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*model.Entity, error) {
	for _, e := range s.entities {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) ListLinks(_ context.Context, id string) ([]*store.Connection, error) {
	if s.linksErr != nil {
		return nil, s.linksErr
	}
	return s.conns[id], nil
}

func (s *fakeStore) Industries(context.Context) ([]string, error) {
	s.count("Industries")
	return s.industries, s.facetErr
}

func (s *fakeStore) Countries(context.Context) ([]string, error) {
	s.count("Countries")
	return s.countries, nil
}

func (s *fakeStore) Stages(context.Context) ([]string, error) {
	s.count("Stages")
	return s.stages, nil
}

// memLocker 进程内锁
type memLocker struct {
	mu   sync.Mutex
	held bool
}

var _ store.Locker = (*memLocker)(nil)

func (l *memLocker) TryLock(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *memLocker) Unlock(context.Context) error {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
	return nil
}

func (l *memLocker) Name() string { return "memory" }

func (l *memLocker) isHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

type bulkCall struct {
	index   string
	docs    int
	refresh bool
}

// faultyEngine wraps the in-memory bleve engine and injects failures.
type faultyEngine struct {
	*bleve.Engine

	mu         sync.Mutex
	bulkCalls  []bulkCall
	searches   int
	createErr  error
	bulkFailed []searchengine.BulkItemError
	bulkPanic  bool
	bulkGate   chan struct{}
	aliasErr   error
	lookupErr  error
	deleteErr  error
	searchErr  error
	searchWait time.Duration
}

func newFaultyEngine(t *testing.T) *faultyEngine {
	t.Helper()
	eng, err := bleve.New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return &faultyEngine{Engine: eng}
}

func (f *faultyEngine) CreateIndex(ctx context.Context, name string, schema *searchengine.Schema) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Engine.CreateIndex(ctx, name, schema)
}

func (f *faultyEngine) BulkIndex(ctx context.Context, index string, docs []searchengine.Document, refresh bool) (*searchengine.BulkResult, error) {
	f.mu.Lock()
	f.bulkCalls = append(f.bulkCalls, bulkCall{index: index, docs: len(docs), refresh: refresh})
	gate := f.bulkGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if f.bulkPanic {
		panic("bulk exploded")
	}
	if f.bulkFailed != nil {
		return &searchengine.BulkResult{Indexed: len(docs) - len(f.bulkFailed), Failed: f.bulkFailed}, nil
	}
	return f.Engine.BulkIndex(ctx, index, docs, refresh)
}

func (f *faultyEngine) UpdateAliases(ctx context.Context, actions []searchengine.AliasAction) error {
	if f.aliasErr != nil {
		return f.aliasErr
	}
	return f.Engine.UpdateAliases(ctx, actions)
}

func (f *faultyEngine) GetIndicesForAlias(ctx context.Context, alias string) ([]string, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.Engine.GetIndicesForAlias(ctx, alias)
}

func (f *faultyEngine) DeleteIndex(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Engine.DeleteIndex(ctx, name)
}

func (f *faultyEngine) Search(ctx context.Context, req *searchengine.SearchRequest) (*searchengine.SearchResponse, error) {
	f.mu.Lock()
	f.searches++
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchWait > 0 {
		time.Sleep(f.searchWait)
	}
	return f.Engine.Search(ctx, req)
}

func (f *faultyEngine) calls() []bulkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.bulkCalls)
}

// tickClock 每次调用前进 1ms，保证索引名唯一
func tickClock() func() time.Time {
	var mu sync.Mutex
	now := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

// pathRecorder collects transitions per run.
type pathRecorder struct {
	mu    sync.Mutex
	paths map[string][]State
	order []string
}

func newPathRecorder() *pathRecorder {
	return &pathRecorder{paths: map[string][]State{}}
}

func (p *pathRecorder) hook(t Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.paths[t.Run]; !ok {
		p.order = append(p.order, t.Run)
	}
	p.paths[t.Run] = append(p.paths[t.Run], t.State)
}

func (p *pathRecorder) path(i int) []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.paths[p.order[i]])
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.err
}

var errBoom = errors.New("boom")

func sampleEntities() []*model.Entity {
	return []*model.Entity{
		{
			ID: "11111111-1111-1111-1111-111111111111", EntityType: model.EntityStartup, Name: "Volta Grid",
			Description: ptr("Volta Grid builds battery storage for municipal grids.\n\nOur battery software balances peak demand across Nordic cities."),
			Country:     ptr("FI"), Stage: ptr("seed"), Industries: []string{"energy", "climate_tech"}, Active: true,
		},
		{
			ID: "22222222-2222-2222-2222-222222222222", EntityType: model.EntityInvestor, Name: "North Fund",
			Description: ptr("Early stage investor backing battery and energy startups."),
			Country:     ptr("SE"), Industries: []string{"energy"}, Active: true,
		},
		{
			ID: "33333333-3333-3333-3333-333333333333", EntityType: model.EntityPerson, Name: "Aino Virtanen",
			RoleTitle: ptr("CEO"), CompanyName: ptr("Volta Grid"), Active: true,
		},
		{
			ID: "44444444-4444-4444-4444-444444444444", EntityType: model.EntityEvent, Name: "Battery Day",
			EventType: ptr("workshop"), Active: true,
		},
		{
			ID: "55555555-5555-5555-5555-555555555555", EntityType: model.EntityStartup, Name: "Retired Co",
			Description: ptr("No longer active battery company."), Active: false,
		},
	}
}
