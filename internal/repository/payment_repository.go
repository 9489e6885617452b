package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
)

const paymentDetailColumns = `p.id, p.student_id, p.student_fee_id, p.payment_date, p.amount, p.method,
        p.transaction_ref, p.receipt_number, p.recorded_by, p.remarks,
        ft.name AS fee_name, sf.semester, sf.academic_year`

const paymentDetailFrom = ` FROM payments p
        JOIN student_fees sf ON sf.id = p.student_fee_id
        JOIN fee_types ft ON ft.id = sf.fee_type_id`

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Settle atomically records a payment, marks its fee PAID and removes
// every alert outstanding on the fee, regardless of sender. A unique
// violation on the receipt number aborts the whole transaction so the
// caller can retry with a fresh token.
func (r *PaymentRepository) Settle(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const insertPayment = `INSERT INTO payments (id, student_id, student_fee_id, payment_date, amount, method, transaction_ref, receipt_number, recorded_by, remarks)
        VALUES (:id, :student_id, :student_fee_id, :payment_date, :amount, :method, :transaction_ref, :receipt_number, :recorded_by, :remarks)`
	if _, err := tx.NamedExecContext(ctx, insertPayment, payment); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert payment: %w", err)
	}

	const markPaid = `UPDATE student_fees SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, markPaid, payment.StudentFeeID, models.FeeStatusPaid, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("mark fee paid: %w", err)
	}

	const clearAlerts = `DELETE FROM fee_alerts WHERE student_fee_id = $1`
	if _, err := tx.ExecContext(ctx, clearAlerts, payment.StudentFeeID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear fee alerts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

// FindByStudentFee returns the payment recorded for a fee, if any.
func (r *PaymentRepository) FindByStudentFee(ctx context.Context, studentFeeID string) (*models.Payment, error) {
	const query = `SELECT id, student_id, student_fee_id, payment_date, amount, method, transaction_ref, receipt_number, recorded_by, remarks
        FROM payments WHERE student_fee_id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, studentFeeID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByStudent returns a student's payment history, newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	query := `SELECT ` + paymentDetailColumns + paymentDetailFrom + ` WHERE p.student_id = $1 ORDER BY p.payment_date DESC`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments by student: %w", err)
	}
	return payments, nil
}

// ListByStudentAndPeriod returns a student's payments whose fee belongs
// to the given semester and academic year.
func (r *PaymentRepository) ListByStudentAndPeriod(ctx context.Context, studentID, semester, academicYear string) ([]models.PaymentDetail, error) {
	query := `SELECT ` + paymentDetailColumns + paymentDetailFrom + `
        WHERE p.student_id = $1 AND sf.semester = $2 AND sf.academic_year = $3
        ORDER BY p.payment_date DESC`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, studentID, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list payments by student and period: %w", err)
	}
	return payments, nil
}

// ListByPeriod returns all payments for a semester and academic year.
func (r *PaymentRepository) ListByPeriod(ctx context.Context, semester, academicYear string) ([]models.PaymentDetail, error) {
	query := `SELECT ` + paymentDetailColumns + paymentDetailFrom + `
        WHERE sf.semester = $1 AND sf.academic_year = $2
        ORDER BY p.payment_date DESC`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list payments by period: %w", err)
	}
	return payments, nil
}
