// Package handler provides HTTP handlers for the discovery search service.
package handler

import (
	"context"

	"github.com/kart-io/discovery-search/internal/discovery/biz"
	"github.com/kart-io/discovery-search/internal/pkg/querycompiler"
)

// Searcher runs grouped searches.
type Searcher interface {
	Search(ctx context.Context, params querycompiler.Params) (*biz.SearchResults, error)
}

// FacetLister returns the facet values of active entities.
type FacetLister interface {
	Get(ctx context.Context) (*biz.Facets, error)
}

// EntityGetter loads an entity detail view.
type EntityGetter interface {
	Get(ctx context.Context, id string) (*biz.EntityDetail, error)
}

// Reindexer rebuilds the search index.
type Reindexer interface {
	Reindex(ctx context.Context) (*biz.ReindexResult, error)
	Status() biz.ReindexStatus
}

var (
	_ Searcher     = (*biz.Searcher)(nil)
	_ FacetLister  = (*biz.FacetService)(nil)
	_ EntityGetter = (*biz.EntityService)(nil)
	_ Reindexer    = (*biz.Reindexer)(nil)
)
