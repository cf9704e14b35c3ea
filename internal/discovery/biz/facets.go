package biz

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/discovery-search/internal/discovery/store"
	errs "github.com/kart-io/discovery-search/pkg/errors"
)

const facetsKey = "facets"

var _ CacheInvalidator = (*FacetService)(nil)

// Facets are the distinct filter values of active entities.
type Facets struct {
	Industries []string `json:"industries"`
	Countries  []string `json:"countries"`
	Stages     []string `json:"stages"`
}

// FacetService loads facet values and memoises them for a short TTL.
type FacetService struct {
	entities store.EntityStore
	memo     *expirable.LRU[string, *Facets]
}

// NewFacetService creates a FacetService. A non-positive ttl disables the memo.
func NewFacetService(entities store.EntityStore, size int, ttl time.Duration) *FacetService {
	s := &FacetService{entities: entities}
	if ttl > 0 {
		if size <= 0 {
			size = 1
		}
		s.memo = expirable.NewLRU[string, *Facets](size, nil, ttl)
	}
	return s
}

// Get returns the facet values. The three lookups run concurrently.
func (s *FacetService) Get(ctx context.Context) (*Facets, error) {
	if s.memo != nil {
		if f, ok := s.memo.Get(facetsKey); ok {
			return f, nil
		}
	}

	f := &Facets{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		f.Industries, err = s.entities.Industries(gctx)
		return err
	})
	g.Go(func() (err error) {
		f.Countries, err = s.entities.Countries(gctx)
		return err
	})
	g.Go(func() (err error) {
		f.Stages, err = s.entities.Stages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errs.ErrFacetsFailed.WithCause(err)
	}

	if s.memo != nil {
		s.memo.Add(facetsKey, f)
	}
	return f, nil
}

// Invalidate drops the memoised values.
func (s *FacetService) Invalidate(_ context.Context) error {
	if s.memo != nil {
		s.memo.Purge()
	}
	return nil
}
