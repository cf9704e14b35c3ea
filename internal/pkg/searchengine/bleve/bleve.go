// Package bleve implements searchengine.Engine on an embedded bleve index.
//
// Physical indices live in memory or in one directory each under Dir.
// Aliases are bleve IndexAlias values; an alias update swaps every affected
// alias under one engine lock, so searches see the old or the new index set,
// never an intermediate one.
package bleve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"

	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

const (
	// Name is the dependency name reported by health checks.
	Name = "search_engine"

	// sourceField stores the original document JSON.
	sourceField = "source_json"

	// collapseFetchFactor 折叠时多取的候选倍数
	collapseFetchFactor = 4
)

var _ searchengine.Engine = (*Engine)(nil)

type physical struct {
	index  bleve.Index
	schema *searchengine.Schema
	path   string
}

type aliasEntry struct {
	alias   bleve.IndexAlias
	members map[string]struct{}
}

// Engine is an embedded search engine.
type Engine struct {
	mu      sync.RWMutex
	dir     string
	indices map[string]*physical
	aliases map[string]*aliasEntry
	closed  bool
}

// New creates an engine. An empty dir keeps every index in memory.
func New(dir string) (*Engine, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Engine{
		dir:     dir,
		indices: make(map[string]*physical),
		aliases: make(map[string]*aliasEntry),
	}, nil
}

// Name implements searchengine.Engine.
func (e *Engine) Name() string {
	return Name
}

// Ping implements searchengine.Engine.
func (e *Engine) Ping(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return fmt.Errorf("bleve engine is closed")
	}
	return ctx.Err()
}

// Close implements searchengine.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	for name, p := range e.indices {
		if err := p.index.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close index %s: %w", name, err)
		}
	}
	return firstErr
}

// CreateIndex implements searchengine.Engine.
func (e *Engine) CreateIndex(ctx context.Context, name string, schema *searchengine.Schema) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.indices[name]; ok {
		return fmt.Errorf("create index %s: %w", name, searchengine.ErrIndexExists)
	}
	if _, ok := e.aliases[name]; ok {
		return fmt.Errorf("create index %s: name is used by an alias", name)
	}

	m, err := buildMapping(schema)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	var (
		idx  bleve.Index
		path string
	)
	if e.dir == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		path = filepath.Join(e.dir, name)
		idx, err = bleve.New(path, m)
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	e.indices[name] = &physical{index: idx, schema: schema, path: path}
	return nil
}

// BulkIndex implements searchengine.Engine. Documents carrying fields
// outside the schema are rejected per item.
func (e *Engine) BulkIndex(ctx context.Context, index string, docs []searchengine.Document, _ bool) (*searchengine.BulkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	p, ok := e.indices[index]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bulk index %s: %w", index, searchengine.ErrIndexNotFound)
	}

	result := &searchengine.BulkResult{}
	batch := p.index.NewBatch()
	for _, doc := range docs {
		fields, raw, err := flatten(doc.Body)
		if err != nil {
			result.Failed = append(result.Failed, searchengine.BulkItemError{
				ID: doc.ID, Status: 400, Type: "mapper_parsing_exception", Reason: err.Error(),
			})
			continue
		}
		if unknown := unknownField(p.schema, fields); unknown != "" {
			result.Failed = append(result.Failed, searchengine.BulkItemError{
				ID:     doc.ID,
				Status: 400,
				Type:   "strict_dynamic_mapping_exception",
				Reason: fmt.Sprintf("field [%s] is not allowed by the index mapping", unknown),
			})
			continue
		}

		fields[sourceField] = raw
		if err := batch.Index(doc.ID, fields); err != nil {
			result.Failed = append(result.Failed, searchengine.BulkItemError{
				ID: doc.ID, Status: 400, Type: "document_parsing_exception", Reason: err.Error(),
			})
			continue
		}
		result.Indexed++
	}

	if batch.Size() > 0 {
		if err := p.index.Batch(batch); err != nil {
			return nil, fmt.Errorf("bulk index %s: %w", index, err)
		}
	}
	return result, nil
}

// Refresh implements searchengine.Engine. Batches are searchable as soon as
// they are applied, so only existence is checked.
func (e *Engine) Refresh(_ context.Context, index string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.indices[index]; !ok {
		return fmt.Errorf("refresh %s: %w", index, searchengine.ErrIndexNotFound)
	}
	return nil
}

type aliasChange struct {
	in, out           []bleve.Index
	inNames, outNames []string
}

// UpdateAliases implements searchengine.Engine. The whole action list is
// validated first and then applied under the engine lock.
func (e *Engine) UpdateAliases(ctx context.Context, actions []searchengine.AliasAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	changes := make(map[string]*aliasChange)
	for _, a := range actions {
		p, ok := e.indices[a.Index]
		if !ok {
			return fmt.Errorf("update aliases: %s: %w", a.Index, searchengine.ErrIndexNotFound)
		}

		c, ok := changes[a.Alias]
		if !ok {
			c = &aliasChange{}
			changes[a.Alias] = c
		}

		switch a.Type {
		case searchengine.AliasAdd:
			c.in = append(c.in, p.index)
			c.inNames = append(c.inNames, a.Index)
		case searchengine.AliasRemove:
			entry, ok := e.aliases[a.Alias]
			if !ok {
				return fmt.Errorf("update aliases: %s: %w", a.Alias, searchengine.ErrAliasNotFound)
			}
			if _, member := entry.members[a.Index]; !member {
				return fmt.Errorf("update aliases: %s is not behind %s: %w", a.Index, a.Alias, searchengine.ErrAliasNotFound)
			}
			c.out = append(c.out, p.index)
			c.outNames = append(c.outNames, a.Index)
		default:
			return fmt.Errorf("update aliases: unknown action %q", a.Type)
		}
	}

	for alias, c := range changes {
		entry, ok := e.aliases[alias]
		if !ok {
			entry = &aliasEntry{alias: bleve.NewIndexAlias(), members: make(map[string]struct{})}
			e.aliases[alias] = entry
		}

		entry.alias.Swap(c.in, c.out)
		for _, name := range c.outNames {
			delete(entry.members, name)
		}
		for _, name := range c.inNames {
			entry.members[name] = struct{}{}
		}
		if len(entry.members) == 0 {
			delete(e.aliases, alias)
		}
	}
	return nil
}

// DeleteIndex implements searchengine.Engine. The index also leaves every
// alias it belonged to.
func (e *Engine) DeleteIndex(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.indices[name]
	if !ok {
		return fmt.Errorf("delete index %s: %w", name, searchengine.ErrIndexNotFound)
	}

	for alias, entry := range e.aliases {
		if _, member := entry.members[name]; !member {
			continue
		}
		entry.alias.Remove(p.index)
		delete(entry.members, name)
		if len(entry.members) == 0 {
			delete(e.aliases, alias)
		}
	}

	delete(e.indices, name)
	if err := p.index.Close(); err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	if p.path != "" {
		if err := os.RemoveAll(p.path); err != nil {
			return fmt.Errorf("delete index %s: %w", name, err)
		}
	}
	return nil
}

// GetIndicesForAlias implements searchengine.Engine.
func (e *Engine) GetIndicesForAlias(_ context.Context, alias string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.aliases[alias]
	if !ok {
		return nil, searchengine.ErrAliasNotFound
	}

	names := make([]string, 0, len(entry.members))
	for name := range entry.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Indices lists the physical indices.
func (e *Engine) Indices() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.indices))
	for name := range e.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search implements searchengine.Engine. Field collapse is emulated by
// fetching extra candidates and keeping the best hit per field value.
func (e *Engine) Search(ctx context.Context, req *searchengine.SearchRequest) (*searchengine.SearchResponse, error) {
	target, err := e.target(req.Index)
	if err != nil {
		return nil, err
	}

	q, err := Translate(req.Query)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Index, err)
	}

	fetch := req.Size
	if req.CollapseField != "" {
		fetch = req.Size * collapseFetchFactor
	}

	sreq := bleve.NewSearchRequestOptions(q, fetch, 0, false)
	sreq.Fields = []string{sourceField}
	if h := req.Highlight; h != nil {
		sreq.Highlight = bleve.NewHighlightWithStyle(html.Name)
		sreq.Highlight.AddField(h.Field)
	}

	res, err := target.SearchInContext(ctx, sreq)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Index, err)
	}

	out := &searchengine.SearchResponse{
		TookMs: res.Took.Milliseconds(),
		Total:  int64(res.Total),
		Hits:   make([]searchengine.Hit, 0, min(len(res.Hits), req.Size)),
	}

	seen := make(map[string]struct{})
	for _, dm := range res.Hits {
		if len(out.Hits) >= req.Size {
			break
		}

		raw, _ := dm.Fields[sourceField].(string)
		if req.CollapseField != "" {
			key := collapseKey(raw, req.CollapseField)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		hit := searchengine.Hit{ID: dm.ID, Score: dm.Score, Source: json.RawMessage(raw)}
		if req.Highlight != nil {
			if fragments := dm.Fragments[req.Highlight.Field]; len(fragments) > 0 {
				if n := req.Highlight.NumberOfFragments; n > 0 && len(fragments) > n {
					fragments = fragments[:n]
				}
				hit.Highlights = map[string][]string{req.Highlight.Field: fragments}
			}
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// target resolves an alias or an index name.
func (e *Engine) target(name string) (bleve.Index, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if entry, ok := e.aliases[name]; ok {
		return entry.alias, nil
	}
	if p, ok := e.indices[name]; ok {
		return p.index, nil
	}
	return nil, fmt.Errorf("search %s: %w", name, searchengine.ErrIndexNotFound)
}

// flatten turns a document into the field map bleve indexes plus its JSON.
func flatten(body interface{}) (map[string]interface{}, string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, "", err
	}
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	return fields, string(raw), nil
}

func unknownField(schema *searchengine.Schema, fields map[string]interface{}) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		if _, ok := schema.Field(k); !ok {
			return k
		}
	}
	return ""
}

func collapseKey(raw, field string) string {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return raw
	}
	return fmt.Sprint(doc[field])
}
