package biz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/discovery-search/internal/discovery/metrics"
	"github.com/kart-io/discovery-search/internal/discovery/store"
	"github.com/kart-io/discovery-search/internal/model"
	"github.com/kart-io/discovery-search/internal/pkg/projection"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	errs "github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/infra/tracing"
)

// maxFailureReasons bounds the bulk failures carried by ErrIndexingFailure.
const maxFailureReasons = 5

// State is a reindex state machine state.
type State string

// Reindex states. Succeeded, RolledBack, Rejected and Failed are terminal.
const (
	StateIdle         State = "idle"
	StateLockAcquired State = "lock_acquired"
	StateIndexCreated State = "index_created"
	StateBulking      State = "bulking"
	StateAliasSwapped State = "alias_swapped"
	StateCleanup      State = "cleanup"
	StateSucceeded    State = "succeeded"
	StateRejected     State = "rejected"
	StateRolledBack   State = "rolled_back"
	StateFailed       State = "failed"
)

// Transition records entering a state.
type Transition struct {
	Run   string    `json:"run"`
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// TransitionHook observes every transition of every run.
type TransitionHook func(Transition)

// ReindexResult summarises a successful run.
type ReindexResult struct {
	IndexedEntities int      `json:"indexed_entities"`
	ChunkCount      int      `json:"chunk_count"`
	IndexName       string   `json:"index_name"`
	Alias           string   `json:"alias"`
	DeletedIndices  []string `json:"deleted_indices"`
}

// ReindexRun is the record of one invocation.
type ReindexRun struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Path       []Transition   `json:"path"`
	Outcome    State          `json:"outcome,omitempty"`
	Result     *ReindexResult `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ReindexStatus is served by the status endpoint.
type ReindexStatus struct {
	Running *ReindexRun `json:"running,omitempty"`
	Last    *ReindexRun `json:"last,omitempty"`
}

// ReindexConfig configures the orchestrator.
type ReindexConfig struct {
	Alias       string
	IndexPrefix string
	BatchSize   int
	Projection  projection.Options
}

// CacheInvalidator drops cached search results after the alias moves.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ReindexOption customises a Reindexer.
type ReindexOption func(*Reindexer)

// WithTransitionHook registers a hook called on every transition.
func WithTransitionHook(hook TransitionHook) ReindexOption {
	return func(r *Reindexer) { r.hooks = append(r.hooks, hook) }
}

// WithCacheInvalidator adds a cache cleared after a successful swap.
func WithCacheInvalidator(c CacheInvalidator) ReindexOption {
	return func(r *Reindexer) { r.caches = append(r.caches, c) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.DiscoveryMetrics) ReindexOption {
	return func(r *Reindexer) { r.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ReindexOption {
	return func(r *Reindexer) { r.now = now }
}

// Reindexer rebuilds the search projection into a fresh physical index and
// atomically moves the alias onto it.
type Reindexer struct {
	entities store.EntityStore
	locker   store.Locker
	engine   searchengine.Engine
	cfg      ReindexConfig

	hooks   []TransitionHook
	caches  []CacheInvalidator
	metrics *metrics.DiscoveryMetrics
	now     func() time.Time

	mu      sync.Mutex
	running *ReindexRun
	last    *ReindexRun
}

// NewReindexer creates a Reindexer.
func NewReindexer(entities store.EntityStore, locker store.Locker, engine searchengine.Engine, cfg ReindexConfig, opts ...ReindexOption) *Reindexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Projection.MaxChars <= 0 {
		cfg.Projection = projection.DefaultOptions()
	}
	r := &Reindexer{
		entities: entities,
		locker:   locker,
		engine:   engine,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status returns a copy of the running and last finished runs.
func (r *Reindexer) Status() ReindexStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReindexStatus{Running: r.running.clone(), Last: r.last.clone()}
}

func (run *ReindexRun) clone() *ReindexRun {
	if run == nil {
		return nil
	}
	c := *run
	c.Path = append([]Transition(nil), run.Path...)
	if run.Result != nil {
		res := *run.Result
		res.DeletedIndices = append([]string{}, run.Result.DeletedIndices...)
		c.Result = &res
	}
	return &c
}

func (r *Reindexer) enter(run *ReindexRun, s State) {
	t := Transition{Run: run.ID, State: s, At: r.now()}

	r.mu.Lock()
	run.Path = append(run.Path, t)
	r.mu.Unlock()

	for _, hook := range r.hooks {
		hook(t)
	}
}

func (r *Reindexer) finish(run *ReindexRun, outcome State, result *ReindexResult, err error) {
	r.enter(run, outcome)

	at := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	run.FinishedAt = &at
	run.Outcome = outcome
	run.Result = result
	if err != nil {
		run.Error = err.Error()
	}
	if r.running == run {
		r.running = nil
	}
	r.last = run
}

// Reindex runs one full rebuild. It fails fast with ErrReindexAlreadyRunning
// when another run holds the lock.
func (r *Reindexer) Reindex(ctx context.Context) (result *ReindexResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "reindex.run",
		attribute.String("reindex.alias", r.cfg.Alias),
		attribute.String("reindex.lock", r.locker.Name()),
	)
	defer func() { tracing.EndSpan(span, err) }()

	run := &ReindexRun{ID: ulid.Make().String(), StartedAt: r.now()}
	ctx = logger.WithFields(ctx, "reindex_run", run.ID)
	log := logger.GetLogger(ctx)
	r.enter(run, StateIdle)

	// 1. 非阻塞加锁
	acquired, lockErr := r.locker.TryLock(ctx)
	if lockErr != nil {
		err = errs.ErrLockFailed.WithCause(lockErr)
		r.finish(run, StateFailed, nil, err)
		return nil, err
	}
	if !acquired {
		log.Infow("Reindex rejected, lock held elsewhere", "lock", r.locker.Name())
		if r.metrics != nil {
			r.metrics.RecordReindexRejected()
		}
		r.finish(run, StateRejected, nil, errs.ErrReindexAlreadyRunning)
		return nil, errs.ErrReindexAlreadyRunning
	}

	r.mu.Lock()
	r.running = run
	r.mu.Unlock()
	r.enter(run, StateLockAcquired)

	started := r.now()
	var newIndex string
	swapped := false

	defer func() {
		if p := recover(); p != nil {
			err = errs.ErrIndexingFailure.WithCause(fmt.Errorf("reindex panicked: %v", p))
			log.Errorw("Reindex panicked", "panic", p)
			if newIndex != "" && !swapped {
				r.rollback(ctx, run, newIndex)
			}
			result = nil
			r.finish(run, StateFailed, nil, err)
		}

		// 取消的 ctx 也必须释放锁
		if uerr := r.locker.Unlock(context.WithoutCancel(ctx)); uerr != nil {
			log.Errorw("Failed to release reindex lock", "lock", r.locker.Name(), "error", uerr)
		}

		if r.metrics != nil {
			var entities, chunks int
			if result != nil {
				entities, chunks = result.IndexedEntities, result.ChunkCount
			}
			r.metrics.RecordReindex(r.now().Sub(started), entities, chunks, err)
		}
	}()

	// 2. 读取全部活跃实体
	list, err := r.entities.ListActive(ctx)
	if err != nil {
		err = errs.ErrEntityLoadFailed.WithCause(err)
		r.finish(run, StateFailed, nil, err)
		return nil, err
	}

	// 3. 创建带时间戳的新索引
	newIndex = r.cfg.IndexPrefix + "_" + strconv.FormatInt(r.now().UnixMilli(), 10)
	if cerr := r.engine.CreateIndex(ctx, newIndex, searchengine.ChunkSchema()); cerr != nil {
		log.Errorw("Failed to create index", "index", newIndex, "error", cerr)
		newIndex = ""
		err = errs.ErrIndexCreateFailed.WithCause(cerr)
		r.finish(run, StateFailed, nil, err)
		return nil, err
	}
	r.enter(run, StateIndexCreated)

	// 4. 分批写入
	r.enter(run, StateBulking)
	chunks, berr := r.load(ctx, newIndex, list)
	if berr != nil {
		log.Errorw("Bulk indexing failed, rolling back", "index", newIndex, "error", berr)
		r.rollback(ctx, run, newIndex)
		err = berr
		r.finish(run, StateRolledBack, nil, err)
		return nil, err
	}

	// 5. 解析旧索引，一次提交别名切换
	oldIndices, lerr := r.previousIndices(ctx, newIndex)
	if lerr != nil {
		// 无法确定旧索引时不能切换，否则别名会同时指向新旧两个索引
		log.Errorw("Alias lookup failed, rolling back", "alias", r.cfg.Alias, "index", newIndex, "error", lerr)
		r.rollback(ctx, run, newIndex)
		err = errs.ErrAliasLookupFailed.WithCause(lerr)
		r.finish(run, StateRolledBack, nil, err)
		return nil, err
	}
	actions := searchengine.SwapActions(r.cfg.Alias, newIndex, oldIndices)
	if aerr := r.engine.UpdateAliases(ctx, actions); aerr != nil {
		log.Errorw("Alias swap failed, rolling back", "alias", r.cfg.Alias, "index", newIndex, "error", aerr)
		r.rollback(ctx, run, newIndex)
		err = errs.ErrAliasSwapFailed.WithCause(aerr)
		r.finish(run, StateRolledBack, nil, err)
		return nil, err
	}
	swapped = true
	r.enter(run, StateAliasSwapped)
	tracing.AddSpanEvent(ctx, "alias.swapped", attribute.String("index", newIndex))

	// 6. 尽力清理旧索引
	r.enter(run, StateCleanup)
	deleted := make([]string, 0, len(oldIndices))
	for _, old := range oldIndices {
		if derr := r.engine.DeleteIndex(ctx, old); derr != nil {
			log.Warnw("Failed to delete old index, manual cleanup may be needed", "index", old, "error", derr)
			continue
		}
		deleted = append(deleted, old)
	}

	for _, c := range r.caches {
		if cerr := c.Invalidate(ctx); cerr != nil {
			log.Warnw("Failed to invalidate cache", "error", cerr)
		}
	}

	result = &ReindexResult{
		IndexedEntities: len(list),
		ChunkCount:      chunks,
		IndexName:       newIndex,
		Alias:           r.cfg.Alias,
		DeletedIndices:  deleted,
	}
	log.Infow("Reindex completed",
		"index", newIndex,
		"alias", r.cfg.Alias,
		"entities", result.IndexedEntities,
		"chunks", result.ChunkCount,
		"deleted", deleted,
	)
	r.finish(run, StateSucceeded, result, nil)
	return result, nil
}

// load maps entities to chunk documents batch by batch and writes them
// sequentially. Only the final batch asks for a refresh.
func (r *Reindexer) load(ctx context.Context, index string, list []*model.Entity) (int, error) {
	size := r.cfg.BatchSize
	total := 0
	flush := func(docs []searchengine.Document, last bool) error {
		res, err := r.engine.BulkIndex(ctx, index, docs, last)
		if err != nil {
			return errs.ErrIndexingFailure.WithCause(err)
		}
		if res.HasErrors() {
			return errs.ErrIndexingFailure.WithCause(bulkFailure(res.Failed))
		}
		total += len(docs)
		return nil
	}

	buf := make([]searchengine.Document, 0, size+1)
	for _, e := range list {
		for _, d := range projection.ToDocuments(e, r.cfg.Projection) {
			buf = append(buf, searchengine.Document{ID: d.ID(), Body: d})
		}
		// 保留至少一篇给最后一批，使其带上 refresh
		for len(buf) > size {
			if err := flush(buf[:size], false); err != nil {
				return 0, err
			}
			buf = slices.Clone(buf[size:])
		}
	}
	if len(buf) > 0 {
		if err := flush(buf, true); err != nil {
			return 0, err
		}
	}

	if err := r.engine.Refresh(ctx, index); err != nil {
		return 0, errs.ErrIndexingFailure.WithCause(err)
	}
	return total, nil
}

// BulkFailure carries the first failed items of a bulk request.
type BulkFailure struct {
	Total   int
	Reasons []string
}

func (f *BulkFailure) Error() string {
	return fmt.Sprintf("%d documents failed: %v", f.Total, f.Reasons)
}

func bulkFailure(failed []searchengine.BulkItemError) *BulkFailure {
	f := &BulkFailure{Total: len(failed)}
	for _, item := range failed[:min(len(failed), maxFailureReasons)] {
		f.Reasons = append(f.Reasons, fmt.Sprintf("%s: %s: %s", item.ID, item.Type, item.Reason))
	}
	return f
}

// previousIndices returns the indices behind the alias, excluding newIndex.
// A missing alias means there is no previous index; any other lookup error
// is returned.
func (r *Reindexer) previousIndices(ctx context.Context, newIndex string) ([]string, error) {
	indices, err := r.engine.GetIndicesForAlias(ctx, r.cfg.Alias)
	if errors.Is(err, searchengine.ErrAliasNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx != newIndex {
			out = append(out, idx)
		}
	}
	return out, nil
}

func (r *Reindexer) rollback(ctx context.Context, run *ReindexRun, index string) {
	if err := r.engine.DeleteIndex(context.WithoutCancel(ctx), index); err != nil {
		logger.GetLogger(ctx).Errorw("Failed to delete rolled back index", "index", index, "run", run.ID, "error", err)
	}
}
