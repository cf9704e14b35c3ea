// Package searchengine defines the capabilities the service consumes from a
// search engine: index lifecycle, bulk ingest, alias indirection and ranked
// search with field collapse and highlighting.
//
// Two implementations exist: elastic (Elasticsearch over HTTP) for
// production and bleve (embedded) for single-node deployments and tests.
package searchengine

import (
	"context"
	"errors"

	"github.com/kart-io/discovery-search/internal/pkg/searchengine/query"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

var (
	// ErrAliasNotFound is returned by GetIndicesForAlias when the alias does
	// not exist yet.
	ErrAliasNotFound = errors.New("alias not found")

	// ErrIndexNotFound is returned when the target index does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexExists is returned by CreateIndex for a duplicate name.
	ErrIndexExists = errors.New("index already exists")
)

// Engine is the search engine contract.
type Engine interface {
	// Name identifies the engine in health reports.
	Name() string

	// CreateIndex creates a physical index with the given schema.
	CreateIndex(ctx context.Context, name string, schema *Schema) error

	// BulkIndex writes documents and reports per-item failures. A non-nil
	// error means the request itself failed.
	BulkIndex(ctx context.Context, index string, docs []Document, refresh bool) (*BulkResult, error)

	// Refresh makes every written document visible to search.
	Refresh(ctx context.Context, index string) error

	// UpdateAliases applies all actions as one atomic operation.
	UpdateAliases(ctx context.Context, actions []AliasAction) error

	// DeleteIndex removes a physical index.
	DeleteIndex(ctx context.Context, name string) error

	// GetIndicesForAlias returns the indices behind alias, or
	// ErrAliasNotFound.
	GetIndicesForAlias(ctx context.Context, alias string) ([]string, error)

	// Search runs a ranked query against an index or alias.
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases engine resources.
	Close() error
}

// Document is one bulk item.
type Document struct {
	ID   string
	Body interface{}
}

// BulkItemError is a failed bulk item.
type BulkItemError struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkResult is the per-item report of a bulk request.
type BulkResult struct {
	Indexed int
	Failed  []BulkItemError
}

// HasErrors reports whether any item failed.
func (r *BulkResult) HasErrors() bool {
	return r != nil && len(r.Failed) > 0
}

// AliasActionType is add or remove.
type AliasActionType string

// Alias action types.
const (
	AliasAdd    AliasActionType = "add"
	AliasRemove AliasActionType = "remove"
)

// AliasAction is one entry of an atomic alias update.
type AliasAction struct {
	Type  AliasActionType
	Index string
	Alias string
}

// SwapActions builds the action list moving alias from every old index to
// newIndex.
func SwapActions(alias, newIndex string, oldIndices []string) []AliasAction {
	actions := make([]AliasAction, 0, len(oldIndices)+1)
	for _, old := range oldIndices {
		actions = append(actions, AliasAction{Type: AliasRemove, Index: old, Alias: alias})
	}
	return append(actions, AliasAction{Type: AliasAdd, Index: newIndex, Alias: alias})
}

// Highlight asks for fragments of one field.
type Highlight struct {
	Field             string
	FragmentSize      int
	NumberOfFragments int
	PreTag            string
	PostTag           string
}

// SearchRequest is a ranked query.
type SearchRequest struct {
	// Index is an index or alias name.
	Index string
	Query query.Query
	Size  int
	// CollapseField keeps the best hit per distinct value of the field.
	CollapseField  string
	Highlight      *Highlight
	TrackTotalHits bool
}

// Hit is one ranked document.
type Hit struct {
	ID         string
	Score      float64
	Source     json.RawMessage
	Highlights map[string][]string
}

// SearchResponse is the result of Search.
type SearchResponse struct {
	TookMs int64
	Total  int64
	Hits   []Hit
}
