package models

import "time"

// FeeStatus represents the lifecycle of a student fee.
type FeeStatus string

// Possible fee statuses. PAID is terminal.
const (
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusOverdue FeeStatus = "OVERDUE"
)

// Semester labels used across the fee schedule. Period matching only
// inspects the "First"/"Second" prefix, the month range is informational.
const (
	SemesterFirst  = "First Semester (Aug-Dec)"
	SemesterSecond = "Second Semester (Jan-May)"
)

// StudentFee is a student's liability for one fee type in one period.
// Semester and AcademicYear are nil for frequencies that do not scope to
// that part of the calendar (both nil for ONE_TIME, semester nil for
// YEARLY). Amount is a snapshot of the fee type amount at creation time.
type StudentFee struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	FeeTypeID    string    `db:"fee_type_id" json:"fee_type_id"`
	Semester     *string   `db:"semester" json:"semester,omitempty"`
	AcademicYear *string   `db:"academic_year" json:"academic_year,omitempty"`
	Amount       float64   `db:"amount" json:"amount"`
	DueDate      time.Time `db:"due_date" json:"due_date"`
	Status       FeeStatus `db:"status" json:"status"`
	Alerted      bool      `db:"alerted" json:"alerted"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFeeDetail enriches StudentFee with fee type context.
type StudentFeeDetail struct {
	StudentFee
	FeeName   string       `db:"fee_name" json:"fee_name"`
	Frequency FeeFrequency `db:"frequency" json:"frequency"`
}

// StudentFeeFilter provides filters for listing student fees.
type StudentFeeFilter struct {
	StudentID    string
	Semester     string
	AcademicYear string
	Status       FeeStatus
}
