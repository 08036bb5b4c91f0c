package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	LoanStatePending  = "pending"
	LoanStateApproved = "approved"
	LoanStatePaid     = "paid"
)

var (
	ErrLoanAlreadyApproved  = errors.New("loan already approved")
	ErrLoanAlreadyPaid      = errors.New("loan already paid")
	ErrLoanNotApproved      = errors.New("loan not approved")
	ErrNoInstallments       = errors.New("loan has no installments")
	ErrNoPendingInstallment = errors.New("loan has no pending installment")
)

// Loan represents a loan entity
type Loan struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	UserID       uuid.UUID       `json:"user" db:"user_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	TermWeeks    int             `json:"term" db:"term_weeks"`
	State        string          `json:"state" db:"state"`
	ApprovedBy   *uuid.UUID      `json:"approved_by" db:"approved_by"`
	ApprovedDate *time.Time      `json:"approved_date" db:"approved_date"`
	ClosedDate   *time.Time      `json:"closed_date" db:"closed_date"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`

	Installments []*Installment `json:"loan_terms" db:"-"`
}

// NewLoan builds a pending loan owned by userID.
func NewLoan(userID uuid.UUID, amount decimal.Decimal, termWeeks int, now time.Time) *Loan {
	return &Loan{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		TermWeeks: termWeeks,
		State:     LoanStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Approve moves a pending loan to approved and stamps the approver.
func (l *Loan) Approve(approver uuid.UUID, now time.Time) error {
	switch l.State {
	case LoanStatePaid:
		return ErrLoanAlreadyPaid
	case LoanStateApproved:
		return ErrLoanAlreadyApproved
	}

	l.State = LoanStateApproved
	l.ApprovedBy = &approver
	l.ApprovedDate = &now
	l.UpdatedAt = now
	return nil
}

// Close marks an approved loan as fully paid.
func (l *Loan) Close(now time.Time) error {
	switch l.State {
	case LoanStatePaid:
		return ErrLoanAlreadyPaid
	case LoanStatePending:
		return ErrLoanNotApproved
	}

	l.State = LoanStatePaid
	l.ClosedDate = &now
	l.UpdatedAt = now
	return nil
}

// NextPending returns the earliest-due pending installment.
// Installments are expected in sequence order.
func (l *Loan) NextPending() (*Installment, error) {
	if len(l.Installments) == 0 {
		return nil, ErrNoInstallments
	}

	for _, installment := range l.Installments {
		if installment.Status == InstallmentStatusPending {
			return installment, nil
		}
	}

	return nil, ErrNoPendingInstallment
}

// PendingCount returns how many installments are still unpaid.
func (l *Loan) PendingCount() int {
	count := 0
	for _, installment := range l.Installments {
		if installment.Status == InstallmentStatusPending {
			count++
		}
	}
	return count
}

// Revision grows with every committed change to the loan: approval adds one
// per installment, each repayment adds one and closing adds one.
func (l *Loan) Revision() int {
	revision := len(l.Installments)
	for _, installment := range l.Installments {
		if installment.Status == InstallmentStatusPaid {
			revision++
		}
	}
	if l.State == LoanStatePaid {
		revision++
	}
	return revision
}

// IsOwnedBy reports whether userID owns the loan.
func (l *Loan) IsOwnedBy(userID uuid.UUID) bool {
	return l.UserID == userID
}

// Clone returns a deep copy, installments included.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}

	c := *l
	if l.ApprovedBy != nil {
		approver := *l.ApprovedBy
		c.ApprovedBy = &approver
	}
	if l.ApprovedDate != nil {
		approved := *l.ApprovedDate
		c.ApprovedDate = &approved
	}
	if l.ClosedDate != nil {
		closed := *l.ClosedDate
		c.ClosedDate = &closed
	}

	if l.Installments != nil {
		c.Installments = make([]*Installment, len(l.Installments))
		for i, installment := range l.Installments {
			c.Installments[i] = installment.Clone()
		}
	}

	return &c
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	TermWeeks int             `json:"term"`
}

type ApproveLoanRequest struct {
	State string `json:"state" validate:"required"`
}

type RepayLoanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type LoanListResponse struct {
	Count   int     `json:"count"`
	Results []*Loan `json:"results"`
}
