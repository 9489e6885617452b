package models

import "time"

// PaymentMethod enumerates accepted settlement channels.
type PaymentMethod string

// Possible payment methods.
const (
	MethodCash          PaymentMethod = "CASH"
	MethodCreditCard    PaymentMethod = "CREDIT_CARD"
	MethodDebitCard     PaymentMethod = "DEBIT_CARD"
	MethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	MethodOnlinePayment PaymentMethod = "ONLINE_PAYMENT"
)

// Payment records the settlement of exactly one student fee. The receipt
// number is generated by this service and unique across all payments;
// the transaction reference is an opaque caller-supplied string.
type Payment struct {
	ID             string        `db:"id" json:"id"`
	StudentID      string        `db:"student_id" json:"student_id"`
	StudentFeeID   string        `db:"student_fee_id" json:"student_fee_id"`
	PaymentDate    time.Time     `db:"payment_date" json:"payment_date"`
	Amount         float64       `db:"amount" json:"amount"`
	Method         PaymentMethod `db:"method" json:"method"`
	TransactionRef string        `db:"transaction_ref" json:"transaction_ref,omitempty"`
	ReceiptNumber  string        `db:"receipt_number" json:"receipt_number"`
	RecordedBy     string        `db:"recorded_by" json:"recorded_by"`
	Remarks        string        `db:"remarks" json:"remarks,omitempty"`
}

// PaymentDetail enriches Payment with fee context for history views.
type PaymentDetail struct {
	Payment
	FeeName      string  `db:"fee_name" json:"fee_name"`
	Semester     *string `db:"semester" json:"semester,omitempty"`
	AcademicYear *string `db:"academic_year" json:"academic_year,omitempty"`
}

// PaymentFilter scopes payment history queries.
type PaymentFilter struct {
	StudentID    string
	Semester     string
	AcademicYear string
}

// ValidMethod reports whether the method is one of the accepted channels.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodOnlinePayment:
		return true
	}
	return false
}
