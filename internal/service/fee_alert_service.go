package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	"github.com/smartcampusmng/campus-fees-api/internal/repository"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
)

type feeAlertRepository interface {
	Create(ctx context.Context, alert *models.FeeAlert) error
	FindByID(ctx context.Context, id string) (*models.FeeAlert, error)
	ExistsByStudentAndFeeAndSender(ctx context.Context, studentID, studentFeeID, sentBy string) (bool, error)
	ListByStudentAndFee(ctx context.Context, studentID, studentFeeID string) ([]models.FeeAlert, error)
	ListBySender(ctx context.Context, sentBy string) ([]models.FeeAlertDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.FeeAlertDetail, error)
	Delete(ctx context.Context, id string) error
}

const defaultAlertBatchLimit = 200

// CreateAlertRequest describes one alert send. The sender identity comes
// from the authenticated caller.
type CreateAlertRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	StudentFeeID string `json:"student_fee_id" validate:"required"`
	Message      string `json:"message" validate:"required"`
}

// AlertBatchItem reports the outcome for a single recipient in a batch
// send. A duplicate-alert conflict for one recipient never aborts the
// rest of the batch.
type AlertBatchItem struct {
	StudentID    string           `json:"student_id"`
	StudentFeeID string           `json:"student_fee_id"`
	Alert        *models.FeeAlert `json:"alert,omitempty"`
	Error        *appErrors.Error `json:"error,omitempty"`
}

// AlertBatchResult summarises a batch send.
type AlertBatchResult struct {
	Sent   int              `json:"sent"`
	Failed int              `json:"failed"`
	Items  []AlertBatchItem `json:"items"`
}

// FeeAlertService manages deduplicated fee alert notifications.
type FeeAlertService struct {
	alerts     feeAlertRepository
	fees       studentFeeRepository
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	now        func() time.Time
	batchLimit int
}

// NewFeeAlertService constructs FeeAlertService.
func NewFeeAlertService(alerts feeAlertRepository, fees studentFeeRepository, validate *validator.Validate, logger *zap.Logger, batchLimit int) *FeeAlertService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchLimit <= 0 {
		batchLimit = defaultAlertBatchLimit
	}
	return &FeeAlertService{alerts: alerts, fees: fees, validator: validate, logger: logger, now: time.Now, batchLimit: batchLimit}
}

// WithMetrics attaches Prometheus instrumentation.
func (s *FeeAlertService) WithMetrics(m *MetricsService) *FeeAlertService {
	s.metrics = m
	return s
}

// CreateAlert sends one alert. At most one alert may exist per (student,
// fee, sender); a duplicate surfaces as a conflict both from the
// pre-check and, under a concurrent race, from the unique index.
func (s *FeeAlertService) CreateAlert(ctx context.Context, req CreateAlertRequest, sentBy string) (*models.FeeAlert, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid alert payload")
	}
	if sentBy == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sender identity is required")
	}

	fee, err := s.fees.FindByID(ctx, req.StudentFeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student fee")
	}
	if fee.StudentID != req.StudentID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fee does not belong to the student")
	}

	exists, err := s.alerts.ExistsByStudentAndFeeAndSender(ctx, req.StudentID, req.StudentFeeID, sentBy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing alert")
	}
	if exists {
		s.markAlerted(ctx, fee)
		s.metrics.RecordAlertConflict()
		return nil, appErrors.Clone(appErrors.ErrDuplicateAlert, "")
	}

	alert := &models.FeeAlert{
		StudentID:    req.StudentID,
		StudentFeeID: req.StudentFeeID,
		SentBy:       sentBy,
		AlertDate:    s.now().UTC(),
		Message:      req.Message,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		if repository.IsUniqueViolation(err) {
			s.markAlerted(ctx, fee)
			s.metrics.RecordAlertConflict()
			return nil, appErrors.Clone(appErrors.ErrDuplicateAlert, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create alert")
	}

	// The flag follows the insert so a failed insert never leaves a fee
	// marked alerted with no alert on file.
	s.markAlerted(ctx, fee)
	s.metrics.RecordAlertSent()
	s.logger.Info("fee alert sent",
		zap.String("student_id", req.StudentID),
		zap.String("student_fee_id", req.StudentFeeID),
		zap.String("sent_by", sentBy))
	return alert, nil
}

// markAlerted raises the alerted flag once an alert for the fee is on
// file. The flag is only raised while the fee is still PENDING; OVERDUE
// fees keep alerted=false even after an alert is sent, the overdue
// views rely on that to keep listing them as unalerted. Called on the
// conflict paths too, so a crash between a past insert and its flag
// write heals on the next attempt.
func (s *FeeAlertService) markAlerted(ctx context.Context, fee *models.StudentFeeDetail) {
	if fee.Status != models.FeeStatusPending || fee.Alerted {
		return
	}
	if err := s.fees.SetAlerted(ctx, fee.ID, true); err != nil {
		s.logger.Warn("failed to flag fee as alerted",
			zap.String("student_fee_id", fee.ID),
			zap.Error(err))
		return
	}
	fee.Alerted = true
}

// SendBatch delivers alerts to many recipients, isolating per-recipient
// failures so one duplicate does not block the rest.
func (s *FeeAlertService) SendBatch(ctx context.Context, reqs []CreateAlertRequest, sentBy string) (*AlertBatchResult, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch is empty")
	}
	if len(reqs) > s.batchLimit {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch exceeds the configured limit")
	}

	result := &AlertBatchResult{Items: make([]AlertBatchItem, 0, len(reqs))}
	for _, req := range reqs {
		item := AlertBatchItem{StudentID: req.StudentID, StudentFeeID: req.StudentFeeID}
		alert, err := s.CreateAlert(ctx, req, sentBy)
		if err != nil {
			item.Error = appErrors.FromError(err)
			result.Failed++
		} else {
			item.Alert = alert
			result.Sent++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// AlertsForStudentAndFee returns every alert on a fee for a student.
func (s *FeeAlertService) AlertsForStudentAndFee(ctx context.Context, studentID, studentFeeID string) ([]models.FeeAlert, error) {
	alerts, err := s.alerts.ListByStudentAndFee(ctx, studentID, studentFeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	return alerts, nil
}

// AlertsBySender returns alerts sent by a user.
func (s *FeeAlertService) AlertsBySender(ctx context.Context, sentBy string) ([]models.FeeAlertDetail, error) {
	alerts, err := s.alerts.ListBySender(ctx, sentBy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	return alerts, nil
}

// AlertsForStudent returns every alert addressed to a student.
func (s *FeeAlertService) AlertsForStudent(ctx context.Context, studentID string) ([]models.FeeAlertDetail, error) {
	alerts, err := s.alerts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	return alerts, nil
}

// HasAlert reports whether the sender already alerted the student about
// the fee.
func (s *FeeAlertService) HasAlert(ctx context.Context, studentID, studentFeeID, sentBy string) (bool, error) {
	exists, err := s.alerts.ExistsByStudentAndFeeAndSender(ctx, studentID, studentFeeID, sentBy)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check alert")
	}
	return exists, nil
}

// DeleteAlert removes an alert.
func (s *FeeAlertService) DeleteAlert(ctx context.Context, id string) error {
	if _, err := s.alerts.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "alert not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alert")
	}
	if err := s.alerts.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete alert")
	}
	return nil
}
