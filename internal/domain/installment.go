package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	InstallmentStatusPending = "pending"
	InstallmentStatusPaid    = "paid"
)

var ErrInstallmentAlreadyPaid = errors.New("installment already paid")

// Installment is one scheduled weekly repayment of a loan
type Installment struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	LoanID     uuid.UUID        `json:"-" db:"loan_id"`
	Sequence   int              `json:"sequence" db:"sequence"`
	Amount     decimal.Decimal  `json:"amount" db:"amount"`
	DueDate    time.Time        `json:"due_date" db:"due_date"`
	Status     string           `json:"status" db:"status"` // pending, paid
	PaidAmount *decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	PaidDate   *time.Time       `json:"paid_date" db:"paid_date"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// MarkPaid records the repayment. A paid installment never changes again.
func (i *Installment) MarkPaid(amount decimal.Decimal, now time.Time) error {
	if i.Status == InstallmentStatusPaid {
		return ErrInstallmentAlreadyPaid
	}

	i.Status = InstallmentStatusPaid
	i.PaidAmount = &amount
	i.PaidDate = &now
	return nil
}

func (i *Installment) Clone() *Installment {
	if i == nil {
		return nil
	}

	c := *i
	if i.PaidAmount != nil {
		paid := *i.PaidAmount
		c.PaidAmount = &paid
	}
	if i.PaidDate != nil {
		paidDate := *i.PaidDate
		c.PaidDate = &paidDate
	}
	return &c
}

// DueInstallment is a pending installment joined with its loan owner, used by reminders.
type DueInstallment struct {
	InstallmentID uuid.UUID       `db:"installment_id"`
	LoanID        uuid.UUID       `db:"loan_id"`
	UserID        uuid.UUID       `db:"user_id"`
	Sequence      int             `db:"sequence"`
	Amount        decimal.Decimal `db:"amount"`
	DueDate       time.Time       `db:"due_date"`
}
