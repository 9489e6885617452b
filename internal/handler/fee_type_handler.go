package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartcampusmng/campus-fees-api/internal/service"
	"github.com/smartcampusmng/campus-fees-api/pkg/response"
)

// FeeTypeHandler exposes the fee template catalogue.
type FeeTypeHandler struct {
	feeTypes *service.FeeTypeService
}

// NewFeeTypeHandler constructs FeeTypeHandler.
func NewFeeTypeHandler(feeTypes *service.FeeTypeService) *FeeTypeHandler {
	return &FeeTypeHandler{feeTypes: feeTypes}
}

// List godoc
// @Summary List fee templates
// @Tags Fee Types
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fee-types [get]
func (h *FeeTypeHandler) List(c *gin.Context) {
	feeTypes, err := h.feeTypes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feeTypes, nil)
}

// InvalidateCache godoc
// @Summary Drop the cached fee template catalogue
// @Description Use after changing templates directly in the database.
// @Tags Fee Types
// @Produce json
// @Success 204 "No Content"
// @Router /fee-types/cache [delete]
func (h *FeeTypeHandler) InvalidateCache(c *gin.Context) {
	if err := h.feeTypes.InvalidateCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Get a fee template
// @Tags Fee Types
// @Produce json
// @Param id path string true "Fee type ID"
// @Success 200 {object} response.Envelope
// @Router /fee-types/{id} [get]
func (h *FeeTypeHandler) Get(c *gin.Context) {
	feeType, err := h.feeTypes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feeType, nil)
}
