package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	"github.com/smartcampusmng/campus-fees-api/internal/repository"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
)

type studentFeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentFeeDetail, error)
	ListByStudentAndStatus(ctx context.Context, studentID string, status models.FeeStatus) ([]models.StudentFeeDetail, error)
	ListByStudentAndPeriod(ctx context.Context, studentID, semester, academicYear string) ([]models.StudentFeeDetail, error)
	ListByStatus(ctx context.Context, status models.FeeStatus) ([]models.StudentFeeDetail, error)
	ListByPeriodAndStatus(ctx context.Context, semester, academicYear string, status models.FeeStatus) ([]models.StudentFeeDetail, error)
	ExistsByStudentAndFeeType(ctx context.Context, studentID, feeTypeID string) (bool, error)
	ExistsByStudentAndFeeTypeAndPeriod(ctx context.Context, studentID, feeTypeID string, semester, academicYear *string) (bool, error)
	Create(ctx context.Context, fee *models.StudentFee) error
	UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error
	SetAlerted(ctx context.Context, id string, alerted bool) error
}

type feeTypeReader interface {
	List(ctx context.Context) ([]models.FeeType, error)
	FindByID(ctx context.Context, id string) (*models.FeeType, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// StudentFeeService materialises fee obligations from templates and
// keeps their status in line with the calendar. Generation is idempotent
// and race-tolerant: the unique index on (student, fee type, period) is
// the authoritative guard, a lost insert race counts as already created.
type StudentFeeService struct {
	fees     studentFeeRepository
	feeTypes feeTypeReader
	students studentReader
	logger   *zap.Logger
	metrics  *MetricsService
	now      func() time.Time
}

// NewStudentFeeService constructs StudentFeeService.
func NewStudentFeeService(fees studentFeeRepository, feeTypes feeTypeReader, students studentReader, logger *zap.Logger) *StudentFeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentFeeService{fees: fees, feeTypes: feeTypes, students: students, logger: logger, now: time.Now}
}

// WithMetrics attaches Prometheus instrumentation.
func (s *StudentFeeService) WithMetrics(m *MetricsService) *StudentFeeService {
	s.metrics = m
	return s
}

// EnsureFees makes sure every applicable fee template has a fee for the
// student in the given period, then re-evaluates the student's PENDING
// fees against the overdue cutoffs. Calling it repeatedly with the same
// arguments never produces duplicates.
func (s *StudentFeeService) EnsureFees(ctx context.Context, studentID, semester, academicYear string) error {
	if studentID == "" || semester == "" || academicYear == "" {
		return appErrors.Clone(appErrors.ErrValidation, "studentId, semester and academicYear are required")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	feeTypes, err := s.feeTypes.List(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee types")
	}

	today := s.now()
	for _, feeType := range feeTypes {
		due, feeSemester, feeYear, err := s.templateDue(ctx, studentID, feeType, semester, academicYear, today)
		if err != nil {
			return err
		}
		if !due {
			continue
		}
		exists, err := s.fees.ExistsByStudentAndFeeTypeAndPeriod(ctx, studentID, feeType.ID, feeSemester, feeYear)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing fee")
		}
		if exists {
			continue
		}
		if err := s.createFee(ctx, studentID, feeType, feeSemester, feeYear, today); err != nil {
			return err
		}
	}

	return s.promoteOverdue(ctx, studentID, today)
}

// FeesForPeriod ensures the student's fees exist for the period and then
// returns them, including period-less yearly and one-time fees.
func (s *StudentFeeService) FeesForPeriod(ctx context.Context, studentID, semester, academicYear string) ([]models.StudentFeeDetail, error) {
	if err := s.EnsureFees(ctx, studentID, semester, academicYear); err != nil {
		return nil, err
	}
	fees, err := s.fees.ListByStudentAndPeriod(ctx, studentID, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student fees")
	}
	return fees, nil
}

// PendingFees returns the student's fees still awaiting payment.
func (s *StudentFeeService) PendingFees(ctx context.Context, studentID string) ([]models.StudentFeeDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	fees, err := s.fees.ListByStudentAndStatus(ctx, studentID, models.FeeStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending fees")
	}
	return fees, nil
}

// AllPendingFees returns pending fees across all students, optionally
// scoped to a period when both labels are supplied.
func (s *StudentFeeService) AllPendingFees(ctx context.Context, semester, academicYear string) ([]models.StudentFeeDetail, error) {
	var (
		fees []models.StudentFeeDetail
		err  error
	)
	if semester != "" || academicYear != "" {
		fees, err = s.fees.ListByPeriodAndStatus(ctx, semester, academicYear, models.FeeStatusPending)
	} else {
		fees, err = s.fees.ListByStatus(ctx, models.FeeStatusPending)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending fees")
	}
	return fees, nil
}

// CreateInitialFees seeds the full fee schedule for a newly registered
// student using the current semester and academic year. Invoked exactly
// once by the registration flow; re-running it is harmless.
func (s *StudentFeeService) CreateInitialFees(ctx context.Context, studentID string) error {
	if studentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	feeTypes, err := s.feeTypes.List(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee types")
	}

	today := s.now()
	currentSemester := CurrentSemester(today)
	currentYear := CurrentAcademicYear(today)

	for _, feeType := range feeTypes {
		var feeSemester, feeYear *string
		switch feeType.Frequency {
		case models.FrequencySemester, models.FrequencyMonthly:
			feeSemester, feeYear = &currentSemester, &currentYear
		case models.FrequencyYearly:
			feeYear = &currentYear
		case models.FrequencyOneTime:
			// both stay nil
		default:
			continue
		}
		exists, err := s.fees.ExistsByStudentAndFeeTypeAndPeriod(ctx, studentID, feeType.ID, feeSemester, feeYear)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing fee")
		}
		if exists {
			continue
		}
		if err := s.createFee(ctx, studentID, feeType, feeSemester, feeYear, today); err != nil {
			return err
		}
	}
	return nil
}

// templateDue decides whether a fee should be materialised for the
// template on this call, and with which period labels.
func (s *StudentFeeService) templateDue(ctx context.Context, studentID string, feeType models.FeeType, semester, academicYear string, today time.Time) (bool, *string, *string, error) {
	switch feeType.Frequency {
	case models.FrequencySemester:
		// Semester fees only materialise inside their own window, so an
		// out-of-window request never pre-creates next semester's fees.
		if isFirstSemester(semester) && inFirstSemesterWindow(today.Month()) {
			return true, &semester, &academicYear, nil
		}
		if isSecondSemester(semester) && inSecondSemesterWindow(today.Month()) {
			return true, &semester, &academicYear, nil
		}
		return false, nil, nil, nil
	case models.FrequencyYearly:
		if academicYear == CurrentAcademicYear(today) {
			return true, nil, &academicYear, nil
		}
		return false, nil, nil, nil
	case models.FrequencyOneTime:
		exists, err := s.fees.ExistsByStudentAndFeeType(ctx, studentID, feeType.ID)
		if err != nil {
			return false, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check one-time fee")
		}
		return !exists, nil, nil, nil
	case models.FrequencyMonthly:
		// Callers invoke the schedule on a monthly cadence; one fee is
		// materialised per invocation if absent.
		return true, &semester, &academicYear, nil
	}
	return false, nil, nil, nil
}

func (s *StudentFeeService) createFee(ctx context.Context, studentID string, feeType models.FeeType, semester, academicYear *string, today time.Time) error {
	fee := &models.StudentFee{
		StudentID:    studentID,
		FeeTypeID:    feeType.ID,
		Semester:     semester,
		AcademicYear: academicYear,
		Amount:       feeType.Amount,
		DueDate:      dueDateFor(feeType.Frequency, semester, today),
		Status:       models.FeeStatusPending,
	}
	if err := s.fees.Create(ctx, fee); err != nil {
		if repository.IsUniqueViolation(err) {
			// A concurrent request created the same fee between our
			// existence check and the insert. That is the expected
			// outcome of the race, not a failure.
			s.logger.Debug("fee already created concurrently",
				zap.String("student_id", studentID),
				zap.String("fee_type_id", feeType.ID))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student fee")
	}
	s.metrics.RecordFeeCreated()
	s.logger.Info("student fee created",
		zap.String("student_id", studentID),
		zap.String("fee_type_id", feeType.ID),
		zap.String("fee_name", feeType.Name),
		zap.Float64("amount", feeType.Amount))
	return nil
}

// promoteOverdue sweeps the student's PENDING fees and promotes
// semester fees past their cutoff to OVERDUE. Only SEMESTER-frequency
// fees are swept; monthly, yearly and one-time fees never become
// overdue here. That asymmetry is inherited behaviour the rest of the
// system depends on, do not extend the sweep without revisiting the
// alerting flow.
func (s *StudentFeeService) promoteOverdue(ctx context.Context, studentID string, today time.Time) error {
	pending, err := s.fees.ListByStudentAndStatus(ctx, studentID, models.FeeStatusPending)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending fees")
	}
	for _, fee := range pending {
		if fee.Frequency != models.FrequencySemester || fee.Semester == nil {
			continue
		}
		// The first semester runs Aug-Dec, so its Feb 1 cutoff falls in
		// the next calendar year. While the window is still open the
		// cutoff has not been reached yet.
		firstCutoffYear := today.Year()
		if today.Month() >= time.August {
			firstCutoffYear++
		}
		firstCutoff := time.Date(firstCutoffYear, time.February, 1, 0, 0, 0, 0, time.UTC)
		secondCutoff := time.Date(today.Year(), time.August, 1, 0, 0, 0, 0, time.UTC)
		overdue := (isFirstSemester(*fee.Semester) && today.After(firstCutoff)) ||
			(isSecondSemester(*fee.Semester) && today.After(secondCutoff))
		if !overdue {
			continue
		}
		if err := s.fees.UpdateStatus(ctx, fee.ID, models.FeeStatusOverdue); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark fee overdue")
		}
		s.metrics.RecordFeeOverdue()
		s.logger.Info("student fee overdue",
			zap.String("student_fee_id", fee.ID),
			zap.String("student_id", studentID),
			zap.String("fee_name", fee.FeeName))
	}
	return nil
}

func dueDateFor(frequency models.FeeFrequency, semester *string, today time.Time) time.Time {
	switch frequency {
	case models.FrequencySemester:
		if semester != nil && isFirstSemester(*semester) {
			return time.Date(today.Year(), time.October, 1, 0, 0, 0, 0, time.UTC)
		}
		return time.Date(today.Year(), time.March, 1, 0, 0, 0, 0, time.UTC)
	case models.FrequencyYearly:
		return time.Date(today.Year(), time.July, 1, 0, 0, 0, 0, time.UTC)
	case models.FrequencyOneTime:
		return today.AddDate(0, 0, 30)
	case models.FrequencyMonthly:
		return today.AddDate(0, 0, 15)
	}
	return today
}

func isFirstSemester(label string) bool {
	return strings.Contains(label, "First")
}

func isSecondSemester(label string) bool {
	return strings.Contains(label, "Second")
}

func inFirstSemesterWindow(m time.Month) bool {
	return m >= time.August && m <= time.December
}

func inSecondSemesterWindow(m time.Month) bool {
	return m >= time.January && m <= time.May
}

// CurrentAcademicYear derives the academic year label from a date. The
// year rolls over in August: July 2024 is still "2023-2024".
func CurrentAcademicYear(t time.Time) string {
	year := t.Year()
	if t.Month() >= time.August {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}

// CurrentSemester derives the semester label from a date.
func CurrentSemester(t time.Time) string {
	if inFirstSemesterWindow(t.Month()) {
		return models.SemesterFirst
	}
	return models.SemesterSecond
}
