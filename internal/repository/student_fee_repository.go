package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
)

const studentFeeDetailColumns = `sf.id, sf.student_id, sf.fee_type_id, sf.semester, sf.academic_year,
        sf.amount, sf.due_date, sf.status, sf.alerted, sf.created_at, sf.updated_at,
        ft.name AS fee_name, ft.frequency AS frequency`

const studentFeeDetailFrom = ` FROM student_fees sf
        JOIN fee_types ft ON ft.id = sf.fee_type_id`

// StudentFeeRepository handles persistence of student fees.
type StudentFeeRepository struct {
	db *sqlx.DB
}

// NewStudentFeeRepository constructs the repository.
func NewStudentFeeRepository(db *sqlx.DB) *StudentFeeRepository {
	return &StudentFeeRepository{db: db}
}

// FindByID returns a student fee with fee type context.
func (r *StudentFeeRepository) FindByID(ctx context.Context, id string) (*models.StudentFeeDetail, error) {
	query := `SELECT ` + studentFeeDetailColumns + studentFeeDetailFrom + ` WHERE sf.id = $1`
	var fee models.StudentFeeDetail
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// ListByStudentAndStatus returns a student's fees in the given status.
func (r *StudentFeeRepository) ListByStudentAndStatus(ctx context.Context, studentID string, status models.FeeStatus) ([]models.StudentFeeDetail, error) {
	query := `SELECT ` + studentFeeDetailColumns + studentFeeDetailFrom + ` WHERE sf.student_id = $1 AND sf.status = $2 ORDER BY sf.due_date`
	var fees []models.StudentFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, studentID, status); err != nil {
		return nil, fmt.Errorf("list student fees by status: %w", err)
	}
	return fees, nil
}

// ListByStudentAndPeriod returns a student's fees for a semester and
// academic year, including period-less (yearly and one-time) fees so the
// statement a student sees is complete.
func (r *StudentFeeRepository) ListByStudentAndPeriod(ctx context.Context, studentID, semester, academicYear string) ([]models.StudentFeeDetail, error) {
	query := `SELECT ` + studentFeeDetailColumns + studentFeeDetailFrom + `
        WHERE sf.student_id = $1
          AND (sf.semester = $2 OR sf.semester IS NULL)
          AND (sf.academic_year = $3 OR sf.academic_year IS NULL)
        ORDER BY sf.due_date`
	var fees []models.StudentFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, studentID, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list student fees by period: %w", err)
	}
	return fees, nil
}

// ListByStatus returns all fees in the given status across students.
func (r *StudentFeeRepository) ListByStatus(ctx context.Context, status models.FeeStatus) ([]models.StudentFeeDetail, error) {
	query := `SELECT ` + studentFeeDetailColumns + studentFeeDetailFrom + ` WHERE sf.status = $1 ORDER BY sf.due_date`
	var fees []models.StudentFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, status); err != nil {
		return nil, fmt.Errorf("list fees by status: %w", err)
	}
	return fees, nil
}

// ListByPeriodAndStatus returns fees for a period in the given status.
func (r *StudentFeeRepository) ListByPeriodAndStatus(ctx context.Context, semester, academicYear string, status models.FeeStatus) ([]models.StudentFeeDetail, error) {
	query := `SELECT ` + studentFeeDetailColumns + studentFeeDetailFrom + `
        WHERE sf.semester IS NOT DISTINCT FROM NULLIF($1, '')
          AND sf.academic_year IS NOT DISTINCT FROM NULLIF($2, '')
          AND sf.status = $3
        ORDER BY sf.due_date`
	var fees []models.StudentFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, semester, academicYear, status); err != nil {
		return nil, fmt.Errorf("list fees by period and status: %w", err)
	}
	return fees, nil
}

// ExistsByStudentAndFeeType checks whether the student has any fee for
// the template, regardless of period. Used for ONE_TIME templates.
func (r *StudentFeeRepository) ExistsByStudentAndFeeType(ctx context.Context, studentID, feeTypeID string) (bool, error) {
	const query = `SELECT 1 FROM student_fees WHERE student_id = $1 AND fee_type_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, feeTypeID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student fee: %w", err)
	}
	return true, nil
}

// ExistsByStudentAndFeeTypeAndPeriod checks the exact (student, template,
// semester, academic year) tuple. NULL period fields compare as equal so
// one-time and yearly fees dedupe correctly.
func (r *StudentFeeRepository) ExistsByStudentAndFeeTypeAndPeriod(ctx context.Context, studentID, feeTypeID string, semester, academicYear *string) (bool, error) {
	const query = `SELECT 1 FROM student_fees
        WHERE student_id = $1 AND fee_type_id = $2
          AND semester IS NOT DISTINCT FROM $3
          AND academic_year IS NOT DISTINCT FROM $4
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, feeTypeID, semester, academicYear); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student fee period: %w", err)
	}
	return true, nil
}

// Create persists a new student fee. The unique index on (student,
// fee type, period) is the authoritative duplicate guard; callers treat
// a unique violation as "already created by a concurrent request".
func (r *StudentFeeRepository) Create(ctx context.Context, fee *models.StudentFee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	fee.UpdatedAt = now
	const query = `INSERT INTO student_fees (id, student_id, fee_type_id, semester, academic_year, amount, due_date, status, alerted, created_at, updated_at)
        VALUES (:id, :student_id, :fee_type_id, :semester, :academic_year, :amount, :due_date, :status, :alerted, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create student fee: %w", err)
	}
	return nil
}

// UpdateStatus transitions a fee to the given status.
func (r *StudentFeeRepository) UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error {
	const query = `UPDATE student_fees SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student fee status: %w", err)
	}
	return nil
}

// SetAlerted flips the alerted flag for a fee.
func (r *StudentFeeRepository) SetAlerted(ctx context.Context, id string, alerted bool) error {
	const query = `UPDATE student_fees SET alerted = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, alerted, time.Now().UTC()); err != nil {
		return fmt.Errorf("set student fee alerted: %w", err)
	}
	return nil
}
