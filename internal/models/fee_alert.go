package models

import "time"

// FeeAlert is a deduplicated overdue/pending fee notification. At most
// one alert exists per (student, fee, sender); payment of the underlying
// fee removes all of its alerts.
type FeeAlert struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	StudentFeeID string    `db:"student_fee_id" json:"student_fee_id"`
	SentBy       string    `db:"sent_by" json:"sent_by"`
	AlertDate    time.Time `db:"alert_date" json:"alert_date"`
	Message      string    `db:"message" json:"message"`
}

// FeeAlertDetail enriches FeeAlert with fee context.
type FeeAlertDetail struct {
	FeeAlert
	FeeName string    `db:"fee_name" json:"fee_name"`
	Status  FeeStatus `db:"status" json:"status"`
}
