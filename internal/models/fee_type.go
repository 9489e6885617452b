package models

import "time"

// FeeFrequency represents the recurrence policy of a fee type.
type FeeFrequency string

// Possible fee frequencies.
const (
	FrequencyOneTime  FeeFrequency = "ONE_TIME"
	FrequencySemester FeeFrequency = "SEMESTER"
	FrequencyYearly   FeeFrequency = "YEARLY"
	FrequencyMonthly  FeeFrequency = "MONTHLY"
)

// FeeType is an institution-wide fee template. Templates are treated as
// immutable once a student fee references them; the fee keeps its own
// amount snapshot.
type FeeType struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description *string      `db:"description" json:"description,omitempty"`
	Amount      float64      `db:"amount" json:"amount"`
	Frequency   FeeFrequency `db:"frequency" json:"frequency"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
