package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartcampusmng/campus-fees-api/internal/service"
	"github.com/smartcampusmng/campus-fees-api/pkg/response"
)

// ExportHandler streams rendered registers as attachments.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// PaymentRegister godoc
// @Summary Export the payment register for a period
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param semester query string false "Semester label"
// @Param academicYear query string false "Academic year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /payments/export [get]
func (h *ExportHandler) PaymentRegister(c *gin.Context) {
	format := exportFormat(c)
	file, err := h.exports.PaymentRegister(c.Request.Context(), c.Query("semester"), c.Query("academicYear"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveExport(c, file)
}

// OutstandingFees godoc
// @Summary Export pending fees, optionally scoped to a period
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param semester query string false "Semester label"
// @Param academicYear query string false "Academic year"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /fees/pending/export [get]
func (h *ExportHandler) OutstandingFees(c *gin.Context) {
	format := exportFormat(c)
	file, err := h.exports.OutstandingFees(c.Request.Context(), c.Query("semester"), c.Query("academicYear"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveExport(c, file)
}

func exportFormat(c *gin.Context) service.ExportFormat {
	return service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
}

func serveExport(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(200, file.ContentType, file.Payload)
}
