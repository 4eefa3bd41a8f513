package entity

import "github.com/shopspring/decimal"

type ApplicationStatus string

const (
	StatusNew      ApplicationStatus = "new"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) Valid() bool {
	return s == StatusNew || s == StatusApproved || s == StatusRejected
}

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Terms lists the loan terms offered, in months.
var Terms = []int{6, 12, 24, 36}

// Application is a loan request submitted from the user dashboard.
type Application struct {
	ID         string            `db:"id" json:"id"`
	UserID     string            `db:"user_id" json:"userId"`
	Amount     decimal.Decimal   `db:"amount" json:"amount"`
	TermMonths int               `db:"term_months" json:"termMonths"`
	Purpose    string            `db:"purpose" json:"purpose"`
	Status     ApplicationStatus `db:"status" json:"status"`
	DecidedBy  string            `db:"decided_by" json:"decidedBy,omitempty"`
	CreatedAt  string            `db:"created_at" json:"createdAt"`
	UpdatedAt  string            `db:"updated_at" json:"updatedAt"`
}

// Payment is a repayment recorded against an application.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"userId"`
	ApplicationID string          `db:"application_id" json:"applicationId"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        PaymentMethod   `db:"method" json:"method"`
	CreatedAt     string          `db:"created_at" json:"createdAt"`
}
