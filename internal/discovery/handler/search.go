package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/discovery-search/internal/pkg/querycompiler"
	errs "github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/response"
	"github.com/kart-io/discovery-search/pkg/validator"
)

// SearchHandler serves search and facet requests.
type SearchHandler struct {
	searcher Searcher
	facets   FacetLister
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(searcher Searcher, facets FacetLister) *SearchHandler {
	return &SearchHandler{searcher: searcher, facets: facets}
}

// Search handles GET /v1/search?q=&type=&industry=&country=&stage=.
// Facet parameters may repeat.
func (h *SearchHandler) Search(c *gin.Context) {
	var params querycompiler.Params
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Fail(c, errs.ErrBadRequest.WithMessage(err.Error()))
		return
	}
	if verr := validator.StructWithLang(&params, c.GetHeader("Accept-Language")); verr != nil {
		response.FailWithValidation(c, verr)
		return
	}

	results, err := h.searcher.Search(c.Request.Context(), params)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, results)
}

// Facets handles GET /v1/facets.
func (h *SearchHandler) Facets(c *gin.Context) {
	facets, err := h.facets.Get(c.Request.Context())
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, facets)
}
