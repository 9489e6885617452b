package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	"github.com/smartcampusmng/campus-fees-api/internal/service"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
	"github.com/smartcampusmng/campus-fees-api/pkg/response"
)

// PaymentHandler exposes payment endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// @Summary Settle a student fee
// @Description Records a payment for the full fee amount and issues a receipt.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.ProcessPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Fee already paid"
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payment, err := h.payments.ProcessPayment(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// List godoc
// @Summary List payment history
// @Tags Payments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param semester query string false "Filter by semester"
// @Param academicYear query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	filter := models.PaymentFilter{
		StudentID:    c.Query("studentId"),
		Semester:     c.Query("semester"),
		AcademicYear: c.Query("academicYear"),
	}
	payments, err := h.payments.Payments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// ListForStudent godoc
// @Summary List a student's payment history
// @Tags Payments
// @Produce json
// @Param studentId path string true "Student ID"
// @Param semester query string false "Filter by semester"
// @Param academicYear query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/payments [get]
func (h *PaymentHandler) ListForStudent(c *gin.Context) {
	filter := models.PaymentFilter{
		StudentID:    c.Param("studentId"),
		Semester:     c.Query("semester"),
		AcademicYear: c.Query("academicYear"),
	}
	payments, err := h.payments.Payments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
