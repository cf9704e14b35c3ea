package biz

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/discovery-search/internal/discovery/metrics"
	"github.com/kart-io/discovery-search/internal/model"
	"github.com/kart-io/discovery-search/internal/pkg/projection"
	"github.com/kart-io/discovery-search/internal/pkg/querycompiler"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	errs "github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/infra/tracing"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

// Highlight markers around matched terms in snippets.
const (
	HighlightPreTag  = "<mark>"
	HighlightPostTag = "</mark>"
)

// SearchHit is one entity in a search result group, represented by its best
// scoring chunk.
type SearchHit struct {
	projection.ChunkDocument
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// TotalByType counts the returned hits per group.
type TotalByType struct {
	Startups  int `json:"startups"`
	Investors int `json:"investors"`
	People    int `json:"people"`
	Events    int `json:"events"`
}

// SearchMeta describes how the result was produced.
type SearchMeta struct {
	TookMs      int64       `json:"took_ms"`
	TotalByType TotalByType `json:"total_by_type"`
	Cached      bool        `json:"cached,omitempty"`
}

// SearchResults are hits grouped by entity category.
type SearchResults struct {
	Startups  []SearchHit `json:"startups"`
	Investors []SearchHit `json:"investors"`
	People    []SearchHit `json:"people"`
	Events    []SearchHit `json:"events"`
	Meta      SearchMeta  `json:"meta"`
}

// EmptyResults returns a result with four empty groups.
func EmptyResults() *SearchResults {
	return &SearchResults{
		Startups:  []SearchHit{},
		Investors: []SearchHit{},
		People:    []SearchHit{},
		Events:    []SearchHit{},
	}
}

func (r *SearchResults) add(hit SearchHit) {
	switch hit.EntityType {
	case model.EntityStartup:
		r.Startups = append(r.Startups, hit)
		r.Meta.TotalByType.Startups++
	case model.EntityInvestor:
		r.Investors = append(r.Investors, hit)
		r.Meta.TotalByType.Investors++
	case model.EntityPerson:
		r.People = append(r.People, hit)
		r.Meta.TotalByType.People++
	case model.EntityEvent:
		r.Events = append(r.Events, hit)
		r.Meta.TotalByType.Events++
	}
}

// SearchConfig configures the executor.
type SearchConfig struct {
	Alias        string
	MaxHits      int
	FragmentSize int
	// Timeout bounds one engine call, zero means no extra bound.
	Timeout time.Duration
}

// Searcher executes compiled queries against the alias.
type Searcher struct {
	engine  searchengine.Engine
	cfg     SearchConfig
	cache   *SearchCache
	metrics *metrics.DiscoveryMetrics
}

// NewSearcher creates a Searcher. cache and m may be nil.
func NewSearcher(engine searchengine.Engine, cfg SearchConfig, cache *SearchCache, m *metrics.DiscoveryMetrics) *Searcher {
	if cfg.MaxHits <= 0 {
		cfg.MaxHits = 100
	}
	if cfg.FragmentSize <= 0 {
		cfg.FragmentSize = 150
	}
	return &Searcher{engine: engine, cfg: cfg, cache: cache, metrics: m}
}

// Search runs one grouped search. A one character query returns empty
// groups without contacting the engine.
func (s *Searcher) Search(ctx context.Context, params querycompiler.Params) (results *SearchResults, err error) {
	ctx, span := tracing.StartSpan(ctx, "search.execute", attribute.String("search.q", params.TrimmedText()))
	defer func() { tracing.EndSpan(span, err) }()
	start := time.Now()

	if params.IsTooShort() {
		if s.metrics != nil {
			s.metrics.RecordShortQuery()
		}
		return EmptyResults(), nil
	}

	if cached, cerr := s.cache.Get(ctx, params); cerr == nil && cached != nil {
		s.recordCache(true)
		cached.Meta.Cached = true
		cached.Meta.TookMs = time.Since(start).Milliseconds()
		return cached, nil
	} else if s.cache.enabled() {
		s.recordCache(false)
	}

	searchCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	engineStart := time.Now()
	resp, err := s.engine.Search(searchCtx, &searchengine.SearchRequest{
		Index:          s.cfg.Alias,
		Query:          querycompiler.Compile(params),
		Size:           s.cfg.MaxHits,
		CollapseField:  querycompiler.FieldEntityID,
		TrackTotalHits: true,
		Highlight: &searchengine.Highlight{
			Field:             querycompiler.FieldContent,
			FragmentSize:      s.cfg.FragmentSize,
			NumberOfFragments: 1,
			PreTag:            HighlightPreTag,
			PostTag:           HighlightPostTag,
		},
	})
	if s.metrics != nil {
		s.metrics.RecordSearch(time.Since(engineStart), err)
	}
	if err != nil {
		logger.GetLogger(ctx).Errorw("Search failed", "alias", s.cfg.Alias, "error", err)
		return nil, errs.ErrSearchFailed.WithCause(err)
	}

	results = Group(ctx, resp.Hits)
	// 从请求进入算起，包含缓存查询和分组
	results.Meta.TookMs = time.Since(start).Milliseconds()

	if serr := s.cache.Set(ctx, params, results); serr != nil {
		logger.GetLogger(ctx).Warnw("Failed to cache search results", "alias", s.cfg.Alias, "error", serr)
	}
	return results, nil
}

func (s *Searcher) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCache(hit)
	}
}

// Group deduplicates hits by entity, keeping the first (highest scoring)
// one, and buckets them by category.
func Group(ctx context.Context, hits []searchengine.Hit) *SearchResults {
	results := EmptyResults()
	seen := make(map[string]struct{}, len(hits))

	for _, h := range hits {
		var doc projection.ChunkDocument
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			logger.GetLogger(ctx).Warnw("Skipping undecodable hit", "id", h.ID, "error", err)
			continue
		}
		if _, dup := seen[doc.EntityID]; dup {
			continue
		}
		seen[doc.EntityID] = struct{}{}

		results.add(SearchHit{
			ChunkDocument: doc,
			Snippet:       snippet(h, &doc),
			Score:         h.Score,
		})
	}
	return results
}

// snippet prefers the highlighted fragment, then the title, then the name.
func snippet(h searchengine.Hit, doc *projection.ChunkDocument) string {
	if frags := h.Highlights[querycompiler.FieldContent]; len(frags) > 0 && frags[0] != "" {
		return frags[0]
	}
	if doc.Title != "" {
		return doc.Title
	}
	return doc.Name
}
