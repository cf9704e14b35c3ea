package handler

import (
	"github.com/gin-gonic/gin"

	errs "github.com/kart-io/discovery-search/pkg/errors"
	"github.com/kart-io/discovery-search/pkg/response"
	"github.com/kart-io/discovery-search/pkg/validator"
)

// EntityHandler serves entity detail pages.
type EntityHandler struct {
	svc EntityGetter
}

// NewEntityHandler creates an EntityHandler.
func NewEntityHandler(svc EntityGetter) *EntityHandler {
	return &EntityHandler{svc: svc}
}

// Get handles GET /v1/entity/:id.
func (h *EntityHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if err := validator.Global().Engine().Var(id, "required,uuid"); err != nil {
		response.Fail(c, errs.ErrInvalidEntityID)
		return
	}

	detail, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, detail)
}
