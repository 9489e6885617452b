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

const alertDetailColumns = `a.id, a.student_id, a.student_fee_id, a.sent_by, a.alert_date, a.message,
        ft.name AS fee_name, sf.status`

const alertDetailFrom = ` FROM fee_alerts a
        JOIN student_fees sf ON sf.id = a.student_fee_id
        JOIN fee_types ft ON ft.id = sf.fee_type_id`

// FeeAlertRepository handles persistence of fee alerts.
type FeeAlertRepository struct {
	db *sqlx.DB
}

// NewFeeAlertRepository constructs the repository.
func NewFeeAlertRepository(db *sqlx.DB) *FeeAlertRepository {
	return &FeeAlertRepository{db: db}
}

// Create persists a new alert. The unique index on (student, fee,
// sender) is the dedup backstop under concurrent sends; callers map a
// unique violation to the duplicate-alert conflict.
func (r *FeeAlertRepository) Create(ctx context.Context, alert *models.FeeAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.AlertDate.IsZero() {
		alert.AlertDate = time.Now().UTC()
	}
	const query = `INSERT INTO fee_alerts (id, student_id, student_fee_id, sent_by, alert_date, message)
        VALUES (:id, :student_id, :student_fee_id, :sent_by, :alert_date, :message)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create fee alert: %w", err)
	}
	return nil
}

// FindByID returns an alert by its ID.
func (r *FeeAlertRepository) FindByID(ctx context.Context, id string) (*models.FeeAlert, error) {
	const query = `SELECT id, student_id, student_fee_id, sent_by, alert_date, message FROM fee_alerts WHERE id = $1`
	var alert models.FeeAlert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, err
	}
	return &alert, nil
}

// ExistsByStudentAndFeeAndSender checks the alert dedup tuple.
func (r *FeeAlertRepository) ExistsByStudentAndFeeAndSender(ctx context.Context, studentID, studentFeeID, sentBy string) (bool, error) {
	const query = `SELECT 1 FROM fee_alerts WHERE student_id = $1 AND student_fee_id = $2 AND sent_by = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, studentFeeID, sentBy); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check fee alert: %w", err)
	}
	return true, nil
}

// ListByStudentAndFee returns every alert on a fee for a student, from
// any sender.
func (r *FeeAlertRepository) ListByStudentAndFee(ctx context.Context, studentID, studentFeeID string) ([]models.FeeAlert, error) {
	const query = `SELECT id, student_id, student_fee_id, sent_by, alert_date, message
        FROM fee_alerts WHERE student_id = $1 AND student_fee_id = $2 ORDER BY alert_date DESC`
	var alerts []models.FeeAlert
	if err := r.db.SelectContext(ctx, &alerts, query, studentID, studentFeeID); err != nil {
		return nil, fmt.Errorf("list alerts by student and fee: %w", err)
	}
	return alerts, nil
}

// ListBySender returns alerts sent by a user.
func (r *FeeAlertRepository) ListBySender(ctx context.Context, sentBy string) ([]models.FeeAlertDetail, error) {
	query := `SELECT ` + alertDetailColumns + alertDetailFrom + ` WHERE a.sent_by = $1 ORDER BY a.alert_date DESC`
	var alerts []models.FeeAlertDetail
	if err := r.db.SelectContext(ctx, &alerts, query, sentBy); err != nil {
		return nil, fmt.Errorf("list alerts by sender: %w", err)
	}
	return alerts, nil
}

// ListByStudent returns every alert addressed to a student.
func (r *FeeAlertRepository) ListByStudent(ctx context.Context, studentID string) ([]models.FeeAlertDetail, error) {
	query := `SELECT ` + alertDetailColumns + alertDetailFrom + ` WHERE a.student_id = $1 ORDER BY a.alert_date DESC`
	var alerts []models.FeeAlertDetail
	if err := r.db.SelectContext(ctx, &alerts, query, studentID); err != nil {
		return nil, fmt.Errorf("list alerts by student: %w", err)
	}
	return alerts, nil
}

// Delete removes an alert.
func (r *FeeAlertRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM fee_alerts WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete fee alert: %w", err)
	}
	return nil
}
