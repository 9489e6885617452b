package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	"github.com/smartcampusmng/campus-fees-api/internal/repository"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
)

type paymentRepository interface {
	Settle(ctx context.Context, payment *models.Payment) error
	FindByStudentFee(ctx context.Context, studentFeeID string) (*models.Payment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error)
	ListByStudentAndPeriod(ctx context.Context, studentID, semester, academicYear string) ([]models.PaymentDetail, error)
	ListByPeriod(ctx context.Context, semester, academicYear string) ([]models.PaymentDetail, error)
}

const defaultReceiptRetries = 3

// ProcessPaymentRequest describes a payment submission. The recorder
// identity comes from the authenticated caller, not the payload, and the
// amount is never client-supplied: a payment always settles the fee's
// full snapshot amount.
type ProcessPaymentRequest struct {
	StudentFeeID   string               `json:"student_fee_id" validate:"required"`
	Method         models.PaymentMethod `json:"method" validate:"required"`
	TransactionRef string               `json:"transaction_ref"`
}

// PaymentService settles student fees. Recording the payment, marking
// the fee PAID and clearing its alerts commit as one transaction.
type PaymentService struct {
	payments       paymentRepository
	fees           studentFeeRepository
	students       studentReader
	validator      *validator.Validate
	logger         *zap.Logger
	metrics        *MetricsService
	now            func() time.Time
	receiptRetries int
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(payments paymentRepository, fees studentFeeRepository, students studentReader, validate *validator.Validate, logger *zap.Logger, receiptRetries int) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if receiptRetries <= 0 {
		receiptRetries = defaultReceiptRetries
	}
	return &PaymentService{
		payments:       payments,
		fees:           fees,
		students:       students,
		validator:      validate,
		logger:         logger,
		now:            time.Now,
		receiptRetries: receiptRetries,
	}
}

// WithMetrics attaches Prometheus instrumentation.
func (s *PaymentService) WithMetrics(m *MetricsService) *PaymentService {
	s.metrics = m
	return s
}

// ProcessPayment settles a fee in full. It guards against double payment
// and repairs the one inconsistency a crashed settlement can leave
// behind: a payment on file with the fee still not marked PAID. In that
// case the status flip is re-run and the original payment returned, no
// second payment is ever created.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest, recordedBy string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !models.ValidMethod(req.Method) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}
	if recordedBy == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "recorder identity is required")
	}

	fee, err := s.fees.FindByID(ctx, req.StudentFeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student fee")
	}

	existing, err := s.payments.FindByStudentFee(ctx, fee.ID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing payment")
	}
	if existing != nil {
		if fee.Status != models.FeeStatusPaid {
			// A previous settlement crashed between recording the
			// payment and flipping the status. Re-run the flip and hand
			// back the original payment.
			s.logger.Warn("payment on file without settled fee status, correcting",
				zap.String("student_fee_id", fee.ID),
				zap.String("receipt_number", existing.ReceiptNumber))
			if err := s.fees.UpdateStatus(ctx, fee.ID, models.FeeStatusPaid); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to correct fee status")
			}
			return existing, nil
		}
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "")
	}
	if fee.Status == models.FeeStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, "")
	}

	payment := &models.Payment{
		StudentID:      fee.StudentID,
		StudentFeeID:   fee.ID,
		PaymentDate:    s.now().UTC(),
		Amount:         fee.Amount,
		Method:         req.Method,
		TransactionRef: req.TransactionRef,
		RecordedBy:     recordedBy,
		Remarks:        "Payment processed for " + fee.FeeName,
	}

	for attempt := 0; attempt < s.receiptRetries; attempt++ {
		payment.ReceiptNumber = newReceiptNumber()
		err = s.payments.Settle(ctx, payment)
		if err == nil {
			s.metrics.RecordPaymentSettled(payment.Amount)
			s.logger.Info("payment settled",
				zap.String("student_fee_id", fee.ID),
				zap.String("student_id", fee.StudentID),
				zap.String("receipt_number", payment.ReceiptNumber),
				zap.Float64("amount", payment.Amount))
			return payment, nil
		}
		if repository.IsUniqueViolation(err) {
			s.logger.Warn("receipt number collision, retrying",
				zap.String("receipt_number", payment.ReceiptNumber),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment")
	}
	return nil, appErrors.Wrap(err, appErrors.ErrDuplicateReceipt.Code, appErrors.ErrDuplicateReceipt.Status, "could not issue a unique receipt number")
}

// PaymentsForStudent returns a student's payment history.
func (s *PaymentService) PaymentsForStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Payments returns payment history filtered by student and/or period.
func (s *PaymentService) Payments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error) {
	switch {
	case filter.StudentID != "" && filter.Semester != "" && filter.AcademicYear != "":
		payments, err := s.payments.ListByStudentAndPeriod(ctx, filter.StudentID, filter.Semester, filter.AcademicYear)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
		}
		return payments, nil
	case filter.StudentID != "":
		return s.PaymentsForStudent(ctx, filter.StudentID)
	case filter.Semester != "" && filter.AcademicYear != "":
		payments, err := s.payments.ListByPeriod(ctx, filter.Semester, filter.AcademicYear)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
		}
		return payments, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "studentId or semester and academicYear are required")
}

// newReceiptNumber produces a RCPT-XXXXXXXX token. Randomness is not the
// uniqueness guarantee here, the unique index on receipt_number is;
// collisions surface as retryable conflicts.
func newReceiptNumber() string {
	return "RCPT-" + strings.ToUpper(uuid.NewString()[:8])
}
