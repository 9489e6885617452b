package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartcampusmng/campus-fees-api/internal/service"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
	"github.com/smartcampusmng/campus-fees-api/pkg/response"
)

// FeeAlertHandler exposes fee alert endpoints.
type FeeAlertHandler struct {
	alerts *service.FeeAlertService
}

// NewFeeAlertHandler constructs FeeAlertHandler.
func NewFeeAlertHandler(alerts *service.FeeAlertService) *FeeAlertHandler {
	return &FeeAlertHandler{alerts: alerts}
}

// Create godoc
// @Summary Send a fee alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param payload body service.CreateAlertRequest true "Alert payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Alert already sent"
// @Router /alerts [post]
func (h *FeeAlertHandler) Create(c *gin.Context) {
	var req service.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	alert, err := h.alerts.CreateAlert(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, alert)
}

// CreateBatch godoc
// @Summary Send a batch of fee alerts
// @Description Failures are isolated per recipient; the result reports both counts.
// @Tags Alerts
// @Accept json
// @Produce json
// @Param payload body []service.CreateAlertRequest true "Alert payloads"
// @Success 200 {object} response.Envelope
// @Router /alerts/batch [post]
func (h *FeeAlertHandler) CreateBatch(c *gin.Context) {
	var reqs []service.CreateAlertRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.alerts.SendBatch(c.Request.Context(), reqs, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List fee alerts
// @Description Filters by student, by sender, or by student and fee together.
// @Tags Alerts
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param studentFeeId query string false "Filter by fee (with studentId)"
// @Param sentBy query string false "Filter by sender"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *FeeAlertHandler) List(c *gin.Context) {
	studentID := c.Query("studentId")
	studentFeeID := c.Query("studentFeeId")
	sentBy := c.Query("sentBy")

	switch {
	case studentID != "" && studentFeeID != "":
		alerts, err := h.alerts.AlertsForStudentAndFee(c.Request.Context(), studentID, studentFeeID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, alerts, nil)
	case studentID != "":
		alerts, err := h.alerts.AlertsForStudent(c.Request.Context(), studentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, alerts, nil)
	case sentBy != "":
		alerts, err := h.alerts.AlertsBySender(c.Request.Context(), sentBy)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, alerts, nil)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId or sentBy filter is required"))
	}
}

// Exists godoc
// @Summary Check whether the caller already alerted a fee
// @Tags Alerts
// @Produce json
// @Param studentId query string true "Student ID"
// @Param studentFeeId query string true "Student fee ID"
// @Success 200 {object} response.Envelope
// @Router /alerts/exists [get]
func (h *FeeAlertHandler) Exists(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Query("studentId")
	studentFeeID := c.Query("studentFeeId")
	if studentID == "" || studentFeeID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId and studentFeeId are required"))
		return
	}
	exists, err := h.alerts.HasAlert(c.Request.Context(), studentID, studentFeeID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"exists": exists}, nil)
}

// Delete godoc
// @Summary Delete a fee alert
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 204 "No Content"
// @Router /alerts/{id} [delete]
func (h *FeeAlertHandler) Delete(c *gin.Context) {
	if err := h.alerts.DeleteAlert(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
