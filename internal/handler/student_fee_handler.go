package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartcampusmng/campus-fees-api/internal/service"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
	"github.com/smartcampusmng/campus-fees-api/pkg/response"
)

// StudentFeeHandler exposes student fee endpoints.
type StudentFeeHandler struct {
	fees *service.StudentFeeService
}

// NewStudentFeeHandler constructs StudentFeeHandler.
func NewStudentFeeHandler(fees *service.StudentFeeService) *StudentFeeHandler {
	return &StudentFeeHandler{fees: fees}
}

// ListForStudent godoc
// @Summary List a student's fees for a period
// @Description Materialises any missing fees for the period before listing.
// @Tags Student Fees
// @Produce json
// @Param studentId path string true "Student ID"
// @Param semester query string true "Semester label"
// @Param academicYear query string true "Academic year, e.g. 2025-2026"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/fees [get]
func (h *StudentFeeHandler) ListForStudent(c *gin.Context) {
	semester := c.Query("semester")
	academicYear := c.Query("academicYear")
	if semester == "" || academicYear == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester and academicYear are required"))
		return
	}
	fees, err := h.fees.FeesForPeriod(c.Request.Context(), c.Param("studentId"), semester, academicYear)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// ListPendingForStudent godoc
// @Summary List a student's pending fees
// @Tags Student Fees
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/fees/pending [get]
func (h *StudentFeeHandler) ListPendingForStudent(c *gin.Context) {
	fees, err := h.fees.PendingFees(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// CreateInitial godoc
// @Summary Seed the fee schedule for a newly registered student
// @Tags Student Fees
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Router /students/{studentId}/fees/initial [post]
func (h *StudentFeeHandler) CreateInitial(c *gin.Context) {
	if err := h.fees.CreateInitialFees(c.Request.Context(), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"status": "created"})
}

// ListPending godoc
// @Summary List pending fees across students
// @Tags Student Fees
// @Produce json
// @Param semester query string false "Semester label"
// @Param academicYear query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Router /fees/pending [get]
func (h *StudentFeeHandler) ListPending(c *gin.Context) {
	fees, err := h.fees.AllPendingFees(c.Request.Context(), c.Query("semester"), c.Query("academicYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}
