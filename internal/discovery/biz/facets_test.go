package biz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/kart-io/discovery-search/pkg/errors"
)

func newFacetStore() *fakeStore {
	s := newFakeStore()
	s.industries = []string{"climate_tech", "energy"}
	s.countries = []string{"FI", "SE"}
	s.stages = []string{"seed"}
	return s
}

func TestFacetServiceGet(t *testing.T) {
	s := newFacetStore()
	svc := NewFacetService(s, 1, time.Minute)

	f, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Facets{
		Industries: []string{"climate_tech", "energy"},
		Countries:  []string{"FI", "SE"},
		Stages:     []string{"seed"},
	}, f)

	_, err = svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls["Industries"], "second call served from memo")

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.calls["Industries"])
	assert.Equal(t, 2, s.calls["Countries"])
	assert.Equal(t, 2, s.calls["Stages"])
}

func TestFacetServiceNoMemo(t *testing.T) {
	s := newFacetStore()
	svc := NewFacetService(s, 1, 0)

	for range 3 {
		_, err := svc.Get(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, s.calls["Stages"])
	assert.NoError(t, svc.Invalidate(context.Background()))
}

func TestFacetServiceFailure(t *testing.T) {
	s := newFacetStore()
	s.facetErr = errBoom
	svc := NewFacetService(s, 1, time.Minute)

	_, err := svc.Get(context.Background())
	assert.ErrorIs(t, err, errs.ErrFacetsFailed)
	assert.ErrorIs(t, err, errBoom)

	// 失败结果不缓存
	s.facetErr = nil
	f, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, f.Stages)
}
